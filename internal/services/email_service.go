package services

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v2"
	"github.com/zamfin/loanpilot-api/internal/config"
	"github.com/zamfin/loanpilot-api/internal/models"
	"github.com/zamfin/loanpilot-api/pkg/logger"
)

//go:embed templates/email/*.html
var emailTemplates embed.FS

type EmailService struct {
	config *config.Config
	emails resend.EmailsSvc
}

func NewEmailService(cfg *config.Config) *EmailService {
	client := resend.NewClient(cfg.ResendAPIKey)
	return &EmailService{
		config: cfg,
		emails: client.Emails,
	}
}

// Helper function to safely get string from pointer
func getStringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// checkEmailPreconditions reports whether an email should be sent for the
// given user and returns an error when the service is misconfigured.
func (s *EmailService) checkEmailPreconditions(user *models.User, operation string) (bool, error) {
	if !s.config.EnableEmailNotifications {
		logger.Info(fmt.Sprintf("Email notifications disabled, skipping %s", operation))
		return false, nil
	}
	if s.config.ResendAPIKey == "" {
		return false, fmt.Errorf("RESEND_API_KEY is not set, cannot send %s", operation)
	}
	if user.Email == "" {
		return false, errors.New("email address is empty")
	}
	return true, nil
}

// emailsEnabled gates borrower-facing messages on configuration.
func (s *EmailService) emailsEnabled() bool {
	return s.config.EnableEmailNotifications && s.config.ResendAPIKey != ""
}

func (s *EmailService) SendRecoveryCode(ctx context.Context, user *models.User, code string) error {
	if ok, err := s.checkEmailPreconditions(user, "recovery code"); !ok {
		return err
	}

	data := struct {
		Name    string
		Code    string
		Minutes int
		AppURL  string
	}{
		Name:    user.FullName,
		Code:    code,
		Minutes: 15,
		AppURL:  s.config.AppURL,
	}

	body, err := s.renderTemplate("reset_code.html", data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{user.Email},
		Subject: "Password reset code",
		Html:    body,
	}
	_, err = s.emails.Send(params)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to send email to %s: %v", user.Email, err))
		return err
	}

	logger.Info(fmt.Sprintf("📧 [Email Sent] To: %s | Subject: Password reset code | Code: %s", user.Email, code))

	return nil
}

func (s *EmailService) SendAccountCreated(ctx context.Context, user *models.User) error {
	if ok, err := s.checkEmailPreconditions(user, "welcome email"); !ok {
		return err
	}

	data := struct {
		Name   string
		AppURL string
	}{
		Name:   user.FullName,
		AppURL: s.config.AppURL,
	}

	body, err := s.renderTemplate("account_created.html", data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{user.Email},
		Subject: "Welcome to LoanPilot",
		Html:    body,
	}
	_, err = s.emails.Send(params)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to send email to %s: %v", user.Email, err))
		return err
	}

	logger.Info(fmt.Sprintf("📧 [Email Sent] To: %s | Subject: Welcome to LoanPilot", user.Email))
	return nil
}

// SendLoanApproved notifies the borrower that their application was approved.
// formattedAmount and formattedInstallment are already currency formatted.
// agreementPDF, when present, goes out as an attachment.
func (s *EmailService) SendLoanApproved(ctx context.Context, loan *models.Loan, formattedAmount, formattedInstallment string, agreementPDF []byte) error {
	if !s.emailsEnabled() {
		return nil
	}
	email := getStringValue(loan.Borrower.Email)
	if email == "" {
		return nil // borrower has no email on file
	}

	data := struct {
		Name        string
		LoanNumber  string
		Amount      string
		Duration    int
		Unit        string
		Installment string
		ApprovedAt  string
		AppURL      string
	}{
		Name:        loan.Borrower.FullName,
		LoanNumber:  loan.LoanNumber,
		Amount:      formattedAmount,
		Duration:    loan.Duration,
		Unit:        loan.DurationUnit,
		Installment: formattedInstallment,
		ApprovedAt:  loan.ApprovedAt.Format("02/01/2006 15:04"),
		AppURL:      s.config.AppURL,
	}

	body, err := s.renderTemplate("loan_approved.html", data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{email},
		Subject: "Loan Approved",
		Html:    body,
	}
	if len(agreementPDF) > 0 {
		params.Attachments = []*resend.Attachment{{
			Content:     agreementPDF,
			Filename:    fmt.Sprintf("loan_agreement_%s.pdf", loan.LoanNumber),
			ContentType: "application/pdf",
		}}
	}
	_, err = s.emails.Send(params)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to send email to %s: %v", email, err))
		return err
	}

	logger.Info(fmt.Sprintf("📧 [Email Sent] To: %s | Subject: Loan Approved", email))
	return nil
}

// SendLoanRejected notifies the borrower that their application was declined.
func (s *EmailService) SendLoanRejected(ctx context.Context, loan *models.Loan, reason string) error {
	if !s.emailsEnabled() {
		return nil
	}
	email := getStringValue(loan.Borrower.Email)
	if email == "" {
		return nil
	}

	data := struct {
		Name       string
		LoanNumber string
		Reason     string
		AppURL     string
	}{
		Name:       loan.Borrower.FullName,
		LoanNumber: loan.LoanNumber,
		Reason:     reason,
		AppURL:     s.config.AppURL,
	}

	body, err := s.renderTemplate("loan_rejected.html", data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{email},
		Subject: "Loan Application Declined",
		Html:    body,
	}
	_, err = s.emails.Send(params)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to send email to %s: %v", email, err))
		return err
	}

	logger.Info(fmt.Sprintf("📧 [Email Sent] To: %s | Subject: Loan Application Declined", email))
	return nil
}

// SendLoanReleased notifies the borrower that funds were disbursed.
func (s *EmailService) SendLoanReleased(ctx context.Context, loan *models.Loan, formattedAmount, firstPaymentDate string) error {
	if !s.emailsEnabled() {
		return nil
	}
	email := getStringValue(loan.Borrower.Email)
	if email == "" {
		return nil
	}

	data := struct {
		Name             string
		LoanNumber       string
		Amount           string
		FirstPaymentDate string
		AppURL           string
	}{
		Name:             loan.Borrower.FullName,
		LoanNumber:       loan.LoanNumber,
		Amount:           formattedAmount,
		FirstPaymentDate: firstPaymentDate,
		AppURL:           s.config.AppURL,
	}

	body, err := s.renderTemplate("loan_released.html", data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{email},
		Subject: "Funds Disbursed",
		Html:    body,
	}
	_, err = s.emails.Send(params)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to send email to %s: %v", email, err))
		return err
	}

	logger.Info(fmt.Sprintf("📧 [Email Sent] To: %s | Subject: Funds Disbursed", email))
	return nil
}

// SendRepaymentReceipt confirms a recorded repayment to the borrower.
// receiptPDF, when present, goes out as an attachment.
func (s *EmailService) SendRepaymentReceipt(ctx context.Context, repayment *models.Repayment, formattedAmount, formattedBalance string, receiptPDF []byte) error {
	if !s.emailsEnabled() {
		return nil
	}
	email := getStringValue(repayment.Loan.Borrower.Email)
	if email == "" {
		return nil
	}

	data := struct {
		Name       string
		LoanNumber string
		Amount     string
		Method     string
		Reference  string
		PaidAt     string
		Balance    string
		AppURL     string
	}{
		Name:       repayment.Loan.Borrower.FullName,
		LoanNumber: repayment.Loan.LoanNumber,
		Amount:     formattedAmount,
		Method:     repayment.Method,
		Reference:  getStringValue(repayment.Reference),
		PaidAt:     repayment.PaidAt.Format("02/01/2006"),
		Balance:    formattedBalance,
		AppURL:     s.config.AppURL,
	}

	body, err := s.renderTemplate("repayment_receipt.html", data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{email},
		Subject: "Payment Received",
		Html:    body,
	}
	if len(receiptPDF) > 0 {
		params.Attachments = []*resend.Attachment{{
			Content:     receiptPDF,
			Filename:    fmt.Sprintf("payment_receipt_RCP-%06d.pdf", repayment.ID),
			ContentType: "application/pdf",
		}}
	}
	_, err = s.emails.Send(params)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to send email to %s: %v", email, err))
		return err
	}

	logger.Info(fmt.Sprintf("📧 [Email Sent] To: %s | Subject: Payment Received", email))
	return nil
}

type OverdueLoanData struct {
	LoanNumber string
	Amount     string
	DueDate    string
}

// SendOverdueReminder lists the overdue installments for one borrower.
func (s *EmailService) SendOverdueReminder(ctx context.Context, borrower *models.Borrower, loans []OverdueLoanData) error {
	if !s.emailsEnabled() {
		return nil
	}
	email := getStringValue(borrower.Email)
	if email == "" {
		return nil
	}

	data := struct {
		Name   string
		Loans  []OverdueLoanData
		AppURL string
	}{
		Name:   borrower.FullName,
		Loans:  loans,
		AppURL: s.config.AppURL,
	}

	body, err := s.renderTemplate("overdue_loans.html", data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{email},
		Subject: fmt.Sprintf("Overdue Installments (%d)", len(loans)),
		Html:    body,
	}
	_, err = s.emails.Send(params)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to send email to %s: %v", email, err))
		return err
	}

	logger.Info(fmt.Sprintf("📧 [Email Sent] To: %s | Subject: Overdue Installments (%d)", email, len(loans)))
	return nil
}

func (s *EmailService) renderTemplate(name string, data interface{}) (string, error) {
	tmpl, err := template.ParseFS(emailTemplates, "templates/email/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}
