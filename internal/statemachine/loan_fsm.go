package statemachine

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/zamfin/loanpilot-api/internal/models"
)

// LoanFSM wraps a loan with its state machine
type LoanFSM struct {
	loan *models.Loan
	fsm  *fsm.FSM
}

// NewLoanFSM creates a new loan state machine
func NewLoanFSM(loan *models.Loan) *LoanFSM {
	lfsm := &LoanFSM{
		loan: loan,
	}

	lfsm.fsm = fsm.NewFSM(
		loan.Status,
		fsm.Events{
			// processing → approved
			{Name: "approve", Src: []string{models.LoanStatusProcessing}, Dst: models.LoanStatusApproved},

			// processing → rejected
			{Name: "reject", Src: []string{models.LoanStatusProcessing}, Dst: models.LoanStatusRejected},

			// approved → active (funds disbursed)
			{Name: "release", Src: []string{models.LoanStatusApproved}, Dst: models.LoanStatusActive},

			// active/defaulted → closed
			{Name: "close", Src: []string{models.LoanStatusActive, models.LoanStatusDefaulted}, Dst: models.LoanStatusClosed},

			// active → defaulted
			{Name: "default", Src: []string{models.LoanStatusActive}, Dst: models.LoanStatusDefaulted},

			// defaulted → active (borrower resumed paying)
			{Name: "reinstate", Src: []string{models.LoanStatusDefaulted}, Dst: models.LoanStatusActive},

			// closed → active (a repayment was reversed)
			{Name: "reopen", Src: []string{models.LoanStatusClosed}, Dst: models.LoanStatusActive},
		},
		fsm.Callbacks{},
	)

	return lfsm
}

// Approve transitions loan to approved state
func (l *LoanFSM) Approve(ctx context.Context) error {
	if !l.loan.MayApprove() {
		return fmt.Errorf("loan cannot be approved in current state: %s", l.loan.Status)
	}

	if err := l.fsm.Event(ctx, "approve"); err != nil {
		return fmt.Errorf("failed to approve loan: %w", err)
	}

	l.loan.Status = l.fsm.Current()
	return nil
}

// Reject transitions loan to rejected state
func (l *LoanFSM) Reject(ctx context.Context) error {
	if !l.loan.MayReject() {
		return fmt.Errorf("loan cannot be rejected in current state: %s", l.loan.Status)
	}

	if err := l.fsm.Event(ctx, "reject"); err != nil {
		return fmt.Errorf("failed to reject loan: %w", err)
	}

	l.loan.Status = l.fsm.Current()
	return nil
}

// Release transitions loan to active state once funds are disbursed
func (l *LoanFSM) Release(ctx context.Context) error {
	if !l.loan.MayRelease() {
		return fmt.Errorf("loan cannot be released in current state: %s", l.loan.Status)
	}

	if err := l.fsm.Event(ctx, "release"); err != nil {
		return fmt.Errorf("failed to release loan: %w", err)
	}

	l.loan.Status = l.fsm.Current()
	return nil
}

// Close transitions loan to closed state
func (l *LoanFSM) Close(ctx context.Context) error {
	if !l.loan.MayClose() {
		return fmt.Errorf("loan cannot be closed: balance must be <= 0")
	}

	if err := l.fsm.Event(ctx, "close"); err != nil {
		return fmt.Errorf("failed to close loan: %w", err)
	}

	l.loan.Status = l.fsm.Current()
	return nil
}

// Default transitions loan to defaulted state
func (l *LoanFSM) Default(ctx context.Context) error {
	if !l.loan.MayDefault() {
		return fmt.Errorf("loan cannot be defaulted in current state: %s", l.loan.Status)
	}

	if err := l.fsm.Event(ctx, "default"); err != nil {
		return fmt.Errorf("failed to default loan: %w", err)
	}

	l.loan.Status = l.fsm.Current()
	return nil
}

// Reinstate transitions a defaulted loan back to active
func (l *LoanFSM) Reinstate(ctx context.Context) error {
	if l.loan.Status != models.LoanStatusDefaulted {
		return fmt.Errorf("loan cannot be reinstated in current state: %s", l.loan.Status)
	}

	if err := l.fsm.Event(ctx, "reinstate"); err != nil {
		return fmt.Errorf("failed to reinstate loan: %w", err)
	}

	l.loan.Status = l.fsm.Current()
	return nil
}

// Reopen returns a closed loan to active after a repayment reversal
func (l *LoanFSM) Reopen(ctx context.Context) error {
	if !l.loan.MayReopen() {
		return fmt.Errorf("loan cannot be reopened in current state: %s", l.loan.Status)
	}

	if err := l.fsm.Event(ctx, "reopen"); err != nil {
		return fmt.Errorf("failed to reopen loan: %w", err)
	}

	l.loan.Status = l.fsm.Current()
	return nil
}

// Current returns the current state
func (l *LoanFSM) Current() string {
	return l.fsm.Current()
}

// Can checks if a transition is possible
func (l *LoanFSM) Can(event string) bool {
	return l.fsm.Can(event)
}
