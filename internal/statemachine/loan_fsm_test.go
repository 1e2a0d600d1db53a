package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zamfin/loanpilot-api/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestLoanLifecycle(t *testing.T) {
	ctx := context.Background()
	loan := &models.Loan{Status: models.LoanStatusProcessing}

	m := NewLoanFSM(loan)
	require.NoError(t, m.Approve(ctx))
	assert.Equal(t, models.LoanStatusApproved, loan.Status)

	require.NoError(t, m.Release(ctx))
	assert.Equal(t, models.LoanStatusActive, loan.Status)

	loan.Balance = floatPtr(0)
	require.NoError(t, m.Close(ctx))
	assert.Equal(t, models.LoanStatusClosed, loan.Status)
}

func TestLoanRejection(t *testing.T) {
	ctx := context.Background()
	loan := &models.Loan{Status: models.LoanStatusProcessing}

	m := NewLoanFSM(loan)
	require.NoError(t, m.Reject(ctx))
	assert.Equal(t, models.LoanStatusRejected, loan.Status)

	err := m.Approve(ctx)
	assert.Error(t, err, "a rejected loan cannot be approved")
}

func TestLoanDefaultAndReinstate(t *testing.T) {
	ctx := context.Background()
	loan := &models.Loan{Status: models.LoanStatusActive}

	m := NewLoanFSM(loan)
	require.NoError(t, m.Default(ctx))
	assert.Equal(t, models.LoanStatusDefaulted, loan.Status)

	require.NoError(t, m.Reinstate(ctx))
	assert.Equal(t, models.LoanStatusActive, loan.Status)
}

func TestCloseRequiresSettledBalance(t *testing.T) {
	ctx := context.Background()
	loan := &models.Loan{Status: models.LoanStatusActive, Balance: floatPtr(150)}

	m := NewLoanFSM(loan)
	err := m.Close(ctx)
	assert.Error(t, err)
	assert.Equal(t, models.LoanStatusActive, loan.Status)
}

func TestReleaseRequiresApproval(t *testing.T) {
	ctx := context.Background()
	loan := &models.Loan{Status: models.LoanStatusProcessing}

	m := NewLoanFSM(loan)
	err := m.Release(ctx)
	assert.Error(t, err)
	assert.Equal(t, models.LoanStatusProcessing, loan.Status)
}
