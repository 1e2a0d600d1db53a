package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zamfin/loanpilot-api/internal/models"
	"github.com/zamfin/loanpilot-api/internal/repository"
	"github.com/zamfin/loanpilot-api/internal/schedule"
	"gorm.io/gorm"
)

// ScheduleService computes repayment schedules for loans.
type ScheduleService struct {
	loanRepo repository.LoanRepository
}

// NewScheduleService creates a new schedule service
func NewScheduleService(loanRepo repository.LoanRepository) *ScheduleService {
	return &ScheduleService{loanRepo: loanRepo}
}

// GetSchedule computes the repayment schedule for a loan as of the given
// date. Loans that have not been released yet have no schedule.
func (s *ScheduleService) GetSchedule(ctx context.Context, loanID uint, asOf time.Time) (*schedule.Schedule, error) {
	loan, err := s.loanRepo.FindByIDWithDetails(ctx, loanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load loan %d: %w", loanID, err)
	}

	return s.ComputeForLoan(loan, asOf)
}

// ComputeForLoan builds a schedule snapshot from a loan record and runs
// the schedule computation against it.
func (s *ScheduleService) ComputeForLoan(loan *models.Loan, asOf time.Time) (*schedule.Schedule, error) {
	if loan.ReleaseDate == nil {
		return nil, fmt.Errorf("loan %s has not been released", loan.LoanNumber)
	}

	snap := schedule.Snapshot{
		PrincipalAmount: loan.PrincipalAmount,
		InterestRate:    loan.InterestRate,
		Duration:        loan.Duration,
		Unit:            schedule.ParseUnit(loan.DurationUnit),
		ReleaseDate:     *loan.ReleaseDate,
		Balance:         loan.Balance,
		LoanNumber:      loan.LoanNumber,
		Status:          loan.Status,
	}

	return schedule.Compute(snap, asOf)
}

// NextPaymentDate returns the due date of the next unpaid installment,
// or nil when the loan is settled.
func (s *ScheduleService) NextPaymentDate(loan *models.Loan, asOf time.Time) (*time.Time, error) {
	sched, err := s.ComputeForLoan(loan, asOf)
	if err != nil {
		return nil, err
	}
	if sched.NextPayment == nil {
		return nil, nil
	}
	d := sched.NextPayment.PaymentDate
	return &d, nil
}

// OverdueInstallments returns the unpaid installments whose due date has
// passed as of the given date.
func (s *ScheduleService) OverdueInstallments(loan *models.Loan, asOf time.Time) ([]schedule.Installment, error) {
	sched, err := s.ComputeForLoan(loan, asOf)
	if err != nil {
		return nil, err
	}

	var overdue []schedule.Installment
	for _, inst := range sched.Installments {
		if inst.Status == schedule.StatusOverdue {
			overdue = append(overdue, inst)
		}
	}
	return overdue, nil
}
