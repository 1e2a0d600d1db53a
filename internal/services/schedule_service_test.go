package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zamfin/loanpilot-api/internal/models"
	"github.com/zamfin/loanpilot-api/internal/repository"
	"github.com/zamfin/loanpilot-api/internal/schedule"
	"gorm.io/gorm"
)

type mockLoanRepo struct {
	repository.LoanRepository
	mockFindByIDWithDetails func(ctx context.Context, id uint) (*models.Loan, error)
	mockUpdate              func(ctx context.Context, loan *models.Loan) error
	mockNextSequence        func(ctx context.Context, year int) (int, error)
}

func (m *mockLoanRepo) FindByIDWithDetails(ctx context.Context, id uint) (*models.Loan, error) {
	return m.mockFindByIDWithDetails(ctx, id)
}

func (m *mockLoanRepo) Update(ctx context.Context, loan *models.Loan) error {
	return m.mockUpdate(ctx, loan)
}

func (m *mockLoanRepo) NextSequence(ctx context.Context, year int) (int, error) {
	return m.mockNextSequence(ctx, year)
}

func activeTestLoan() *models.Loan {
	release := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Loan{
		ID:              1,
		LoanNumber:      "LN-2024-0001",
		PrincipalAmount: 1200,
		InterestRate:    10,
		Duration:        12,
		DurationUnit:    models.DurationUnitMonth,
		Status:          models.LoanStatusActive,
		ReleaseDate:     &release,
	}
}

func TestScheduleService_GetSchedule(t *testing.T) {
	loan := activeTestLoan()
	repo := &mockLoanRepo{
		mockFindByIDWithDetails: func(ctx context.Context, id uint) (*models.Loan, error) {
			return loan, nil
		},
	}
	svc := NewScheduleService(repo)

	asOf := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	sched, err := svc.GetSchedule(context.Background(), 1, asOf)
	assert.NoError(t, err)
	assert.Len(t, sched.Installments, 12)
	assert.Equal(t, 2640.0, sched.Summary.OriginalTotalRepayment)
	assert.Equal(t, 220.0, sched.Summary.OriginalPaymentPerInstallment)
}

func TestScheduleService_GetSchedule_MissingLoan(t *testing.T) {
	repo := &mockLoanRepo{
		mockFindByIDWithDetails: func(ctx context.Context, id uint) (*models.Loan, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := NewScheduleService(repo)

	_, err := svc.GetSchedule(context.Background(), 99, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScheduleService_GetSchedule_RepoFailureIsNotNotFound(t *testing.T) {
	dbErr := errors.New("connection reset")
	repo := &mockLoanRepo{
		mockFindByIDWithDetails: func(ctx context.Context, id uint) (*models.Loan, error) {
			return nil, dbErr
		},
	}
	svc := NewScheduleService(repo)

	_, err := svc.GetSchedule(context.Background(), 1, time.Now())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, dbErr)
}

func TestScheduleService_UnreleasedLoanHasNoSchedule(t *testing.T) {
	loan := activeTestLoan()
	loan.ReleaseDate = nil
	loan.Status = models.LoanStatusProcessing

	svc := NewScheduleService(nil)
	_, err := svc.ComputeForLoan(loan, time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "has not been released")
}

func TestScheduleService_NextPaymentDate(t *testing.T) {
	loan := activeTestLoan()
	svc := NewScheduleService(nil)

	asOf := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	next, err := svc.NextPaymentDate(loan, asOf)
	assert.NoError(t, err)
	assert.NotNil(t, next)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), *next)

	// Settled loan has no next payment.
	zero := 0.0
	loan.Balance = &zero
	next, err = svc.NextPaymentDate(loan, asOf)
	assert.NoError(t, err)
	assert.Nil(t, next)
}

func TestScheduleService_OverdueInstallments(t *testing.T) {
	loan := activeTestLoan()
	svc := NewScheduleService(nil)

	asOf := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	overdue, err := svc.OverdueInstallments(loan, asOf)
	assert.NoError(t, err)
	// Installments due Feb 1, Mar 1 and Apr 1 are all past due.
	assert.Len(t, overdue, 3)
	for _, inst := range overdue {
		assert.Equal(t, schedule.StatusOverdue, inst.Status)
	}
}
