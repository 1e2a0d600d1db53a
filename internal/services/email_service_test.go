package services

import (
	"context"
	"testing"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/zamfin/loanpilot-api/internal/config"
	"github.com/zamfin/loanpilot-api/internal/models"
	"github.com/zamfin/loanpilot-api/pkg/logger"
)

func TestEmailService_checkEmailPreconditions(t *testing.T) {
	logger.Setup("test")

	// Test case 1: Email notifications disabled
	cfg := &config.Config{
		EnableEmailNotifications: false,
	}
	service := NewEmailService(cfg)
	user := &models.User{Email: "test@example.com", FullName: "Test User", ID: 1}

	ok, err := service.checkEmailPreconditions(user, "test operation")
	assert.False(t, ok, "Should return false when notifications are disabled")
	assert.Nil(t, err, "Should not return error when notifications are disabled")

	// Test case 2: Email configured and valid
	cfg = &config.Config{
		EnableEmailNotifications: true,
		ResendAPIKey:             "test_key",
		FromEmail:                "from@example.com",
	}
	service = NewEmailService(cfg)

	ok, err = service.checkEmailPreconditions(user, "test operation")
	assert.True(t, ok, "Should return true when properly configured")
	assert.Nil(t, err, "Should not return error when properly configured")

	// Test case 3: Email not configured (missing key)
	cfg = &config.Config{
		EnableEmailNotifications: true,
		ResendAPIKey:             "",
		FromEmail:                "from@example.com",
	}
	service = NewEmailService(cfg)

	ok, err = service.checkEmailPreconditions(user, "test operation")
	assert.False(t, ok, "Should return false when config is missing")
	assert.Error(t, err, "Should return error when config is missing")
	assert.Contains(t, err.Error(), "RESEND_API_KEY is not set")

	// Test case 4: Invalid email
	cfg = &config.Config{
		EnableEmailNotifications: true,
		ResendAPIKey:             "test_key",
		FromEmail:                "from@example.com",
	}
	service = NewEmailService(cfg)
	userInvalid := &models.User{Email: "", FullName: "Invalid User", ID: 2}

	ok, err = service.checkEmailPreconditions(userInvalid, "test operation")
	assert.False(t, ok, "Should return false when email is invalid")
	assert.Error(t, err, "Should return error when email is invalid")
	assert.Equal(t, "email address is empty", err.Error())
}

func TestEmailService_borrowerEmailsSkipWhenDisabled(t *testing.T) {
	logger.Setup("test")

	cfg := &config.Config{EnableEmailNotifications: false}
	service := NewEmailService(cfg)

	email := "borrower@example.com"
	loan := &models.Loan{
		LoanNumber: "LN-2025-0001",
		Borrower:   models.Borrower{FullName: "Chanda Mwila", Email: &email},
	}

	assert.NoError(t, service.SendLoanApproved(context.Background(), loan, "ZMW 1,200.00", "ZMW 220.00", nil))
	assert.NoError(t, service.SendLoanRejected(context.Background(), loan, "insufficient income"))
	assert.NoError(t, service.SendLoanReleased(context.Background(), loan, "ZMW 1,200.00", "2025-10-01"))
}

func TestEmailService_borrowerWithoutEmailIsSkipped(t *testing.T) {
	logger.Setup("test")

	cfg := &config.Config{
		EnableEmailNotifications: true,
		ResendAPIKey:             "test_key",
		FromEmail:                "from@example.com",
	}
	service := NewEmailService(cfg)

	loan := &models.Loan{
		LoanNumber: "LN-2025-0002",
		Borrower:   models.Borrower{FullName: "Mutale Banda"},
	}

	// No email on file is not an error for borrower-facing messages.
	assert.NoError(t, service.SendLoanApproved(context.Background(), loan, "ZMW 500.00", "ZMW 110.00", nil))
	assert.NoError(t, service.SendOverdueReminder(context.Background(), &loan.Borrower, nil))
}

type mockEmailsSvc struct {
	resend.EmailsSvc
	sent []*resend.SendEmailRequest
}

func (m *mockEmailsSvc) Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	m.sent = append(m.sent, params)
	return &resend.SendEmailResponse{Id: "test-id"}, nil
}

func newCapturingEmailService() (*EmailService, *mockEmailsSvc) {
	cfg := &config.Config{
		EnableEmailNotifications: true,
		ResendAPIKey:             "test_key",
		FromEmail:                "from@example.com",
	}
	mock := &mockEmailsSvc{}
	return &EmailService{config: cfg, emails: mock}, mock
}

func TestEmailService_SendLoanApproved_AttachesAgreement(t *testing.T) {
	logger.Setup("test")

	service, mock := newCapturingEmailService()

	email := "borrower@example.com"
	now := time.Now()
	loan := &models.Loan{
		LoanNumber: "LN-2025-0003",
		Duration:   6,
		ApprovedAt: &now,
		Borrower:   models.Borrower{FullName: "Chanda Mwila", Email: &email},
	}
	pdf := []byte("%PDF-1.4 agreement")

	assert.NoError(t, service.SendLoanApproved(context.Background(), loan, "ZMW 1,200.00", "ZMW 220.00", pdf))

	assert.Len(t, mock.sent, 1)
	sent := mock.sent[0]
	assert.Equal(t, []string{email}, sent.To)
	assert.Len(t, sent.Attachments, 1)
	assert.Equal(t, "loan_agreement_LN-2025-0003.pdf", sent.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", sent.Attachments[0].ContentType)
	assert.Equal(t, pdf, sent.Attachments[0].Content)
}

func TestEmailService_SendLoanApproved_NoPDFSendsBodyOnly(t *testing.T) {
	logger.Setup("test")

	service, mock := newCapturingEmailService()

	email := "borrower@example.com"
	now := time.Now()
	loan := &models.Loan{
		LoanNumber: "LN-2025-0004",
		Duration:   6,
		ApprovedAt: &now,
		Borrower:   models.Borrower{FullName: "Mutale Banda", Email: &email},
	}

	assert.NoError(t, service.SendLoanApproved(context.Background(), loan, "ZMW 800.00", "ZMW 150.00", nil))

	assert.Len(t, mock.sent, 1)
	assert.Empty(t, mock.sent[0].Attachments)
}

func TestEmailService_SendRepaymentReceipt_AttachesReceipt(t *testing.T) {
	logger.Setup("test")

	service, mock := newCapturingEmailService()

	email := "borrower@example.com"
	repayment := &models.Repayment{
		ID:     42,
		Amount: 220,
		Method: models.RepaymentMethodCash,
		PaidAt: time.Now(),
		Loan: models.Loan{
			LoanNumber: "LN-2025-0005",
			Borrower:   models.Borrower{FullName: "Chanda Mwila", Email: &email},
		},
	}
	pdf := []byte("%PDF-1.4 receipt")

	assert.NoError(t, service.SendRepaymentReceipt(context.Background(), repayment, "ZMW 220.00", "ZMW 880.00", pdf))

	assert.Len(t, mock.sent, 1)
	sent := mock.sent[0]
	assert.Len(t, sent.Attachments, 1)
	assert.Equal(t, "payment_receipt_RCP-000042.pdf", sent.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", sent.Attachments[0].ContentType)
	assert.Equal(t, pdf, sent.Attachments[0].Content)
}
