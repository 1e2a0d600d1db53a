package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zamfin/loanpilot-api/internal/models"
	"github.com/zamfin/loanpilot-api/internal/repository"
	"github.com/zamfin/loanpilot-api/pkg/logger"
)

type mockBorrowerRepo struct {
	repository.BorrowerRepository
	mockFindByID func(ctx context.Context, id uint) (*models.Borrower, error)
}

func (m *mockBorrowerRepo) FindByID(ctx context.Context, id uint) (*models.Borrower, error) {
	return m.mockFindByID(ctx, id)
}

func TestLoanService_Create_RejectsBadTerms(t *testing.T) {
	service := NewLoanService(nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	err := service.Create(context.Background(), &models.Loan{
		BorrowerID:      1,
		PrincipalAmount: 0,
		Duration:        12,
	}, 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "principal amount")

	err = service.Create(context.Background(), &models.Loan{
		BorrowerID:      1,
		PrincipalAmount: 1000,
		InterestRate:    -5,
		Duration:        12,
	}, 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "interest rate")

	err = service.Create(context.Background(), &models.Loan{
		BorrowerID:      1,
		PrincipalAmount: 1000,
		Duration:        0,
	}, 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duration")

	err = service.Create(context.Background(), &models.Loan{
		BorrowerID:      1,
		PrincipalAmount: 1000,
		Duration:        12,
		DurationUnit:    "fortnight",
	}, 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration unit")
}

func TestLoanService_Create_UnknownBorrower(t *testing.T) {
	borrowerRepo := &mockBorrowerRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.Borrower, error) {
			return nil, ErrNotFound
		},
	}
	service := NewLoanService(nil, borrowerRepo, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	err := service.Create(context.Background(), &models.Loan{
		BorrowerID:      99,
		PrincipalAmount: 1000,
		Duration:        12,
	}, 1)
	assert.Error(t, err)
	assert.Equal(t, "borrower not found", err.Error())
}

func TestLoanService_Create_ArchivedBorrower(t *testing.T) {
	archived := time.Now()
	borrowerRepo := &mockBorrowerRepo{
		mockFindByID: func(ctx context.Context, id uint) (*models.Borrower, error) {
			return &models.Borrower{ID: id, FullName: "Chanda Mwila", DiscardedAt: &archived}, nil
		},
	}
	service := NewLoanService(nil, borrowerRepo, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	err := service.Create(context.Background(), &models.Loan{
		BorrowerID:      1,
		PrincipalAmount: 1000,
		Duration:        12,
	}, 1)
	assert.Error(t, err)
	assert.Equal(t, "borrower account is archived", err.Error())
}

func TestLoanService_generateAgreement_FailureDoesNotBlockApproval(t *testing.T) {
	logger.Setup("test")

	loanRepo := &mockLoanRepo{
		mockFindByIDWithDetails: func(ctx context.Context, id uint) (*models.Loan, error) {
			return nil, ErrNotFound
		},
	}
	reportSvc := NewReportService(loanRepo, nil, nil, nil, NewCurrencyService("ZMW"))
	service := NewLoanService(loanRepo, nil, nil, nil, nil, nil, nil, nil,
		NewCurrencyService("ZMW"), reportSvc, nil)

	pdf := service.generateAgreement(context.Background(), &models.Loan{
		ID:         1,
		LoanNumber: "LN-2025-0010",
	})
	assert.Nil(t, pdf)
}

func TestLoanService_Update_OnlyWhileProcessing(t *testing.T) {
	service := NewLoanService(nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	err := service.Update(context.Background(), &models.Loan{
		Status:       models.LoanStatusActive,
		DurationUnit: models.DurationUnitMonth,
	})
	assert.ErrorIs(t, err, ErrInvalidState)
}
