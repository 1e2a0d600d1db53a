package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zamfin/loanpilot-api/internal/models"
)

func TestRepaymentService_Record_RejectsBadInput(t *testing.T) {
	service := NewRepaymentService(nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	_, err := service.Record(context.Background(), &models.Repayment{
		LoanID: 1,
		Amount: 0,
	}, 1, "", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "greater than zero")

	_, err = service.Record(context.Background(), &models.Repayment{
		LoanID: 1,
		Amount: 100,
		Method: "barter",
	}, 1, "", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid repayment method")
}

func TestRepaymentService_Record_RequiresOutstandingLoan(t *testing.T) {
	loanRepo := &mockLoanRepo{
		mockFindByIDWithDetails: func(ctx context.Context, id uint) (*models.Loan, error) {
			return &models.Loan{
				ID:         id,
				LoanNumber: "LN-2025-0001",
				Status:     models.LoanStatusClosed,
			}, nil
		},
	}
	service := NewRepaymentService(nil, loanRepo, nil, nil, nil, nil, nil, nil, nil, nil)

	_, err := service.Record(context.Background(), &models.Repayment{
		LoanID: 1,
		Amount: 100,
	}, 1, "", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "closed loan")
}

func TestRepaymentService_Record_RequiresOpeningBalance(t *testing.T) {
	loanRepo := &mockLoanRepo{
		mockFindByIDWithDetails: func(ctx context.Context, id uint) (*models.Loan, error) {
			return &models.Loan{
				ID:         id,
				LoanNumber: "LN-2025-0002",
				Status:     models.LoanStatusActive,
			}, nil
		},
	}
	service := NewRepaymentService(nil, loanRepo, nil, nil, nil, nil, nil, nil, nil, nil)

	_, err := service.Record(context.Background(), &models.Repayment{
		LoanID: 1,
		Amount: 100,
	}, 1, "", "")
	assert.Error(t, err)
	assert.Equal(t, "loan has no opening balance", err.Error())
}

func TestDisplayBalanceFloorsAtZero(t *testing.T) {
	assert.Equal(t, 120.5, displayBalance(120.5))
	assert.Equal(t, 0.0, displayBalance(0))
	assert.Equal(t, 0.0, displayBalance(-35.25))
}
