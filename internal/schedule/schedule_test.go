package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func floatPtr(v float64) *float64 { return &v }

// Reference loan used across tests: 1200 at 10% per month over 12 months.
// Flat interest 1440, original total 2640, 220 per installment.
func referenceLoan() Snapshot {
	return Snapshot{
		PrincipalAmount: 1200,
		InterestRate:    10,
		Duration:        12,
		Unit:            UnitMonth,
		ReleaseDate:     date(2024, time.January, 1),
		LoanNumber:      "LN-2024-0001",
		Status:          "active",
	}
}

func TestComputeFreshLoan(t *testing.T) {
	asOf := date(2024, time.January, 15)

	sched, err := Compute(referenceLoan(), asOf)
	require.NoError(t, err)

	s := sched.Summary
	assert.Equal(t, 1440.0, s.TotalInterest)
	assert.Equal(t, 2640.0, s.OriginalTotalRepayment)
	assert.Equal(t, 2640.0, s.CurrentBalance, "nil balance defaults to original total")
	assert.Equal(t, 0.0, s.TotalPaid)
	assert.Equal(t, 220.0, s.OriginalPaymentPerInstallment)
	assert.Equal(t, 220.0, s.CurrentPaymentPerInstallment)
	assert.Equal(t, 0, s.PaymentsMade)
	assert.Equal(t, 12, s.RemainingPayments)

	require.Len(t, sched.Installments, 12)

	first := sched.Installments[0]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, date(2024, time.February, 1), first.PaymentDate)
	assert.Equal(t, 220.0, first.PaymentAmount)
	assert.Equal(t, 120.0, first.InterestPortion)
	assert.Equal(t, 100.0, first.PrincipalPortion)
	assert.Equal(t, 2640.0, first.BalanceBefore)
	assert.Equal(t, 2420.0, first.BalanceAfter)
	assert.Equal(t, StatusUpcoming, first.Status)

	last := sched.Installments[11]
	assert.Equal(t, date(2025, time.January, 1), last.PaymentDate)
	assert.Equal(t, 0.0, last.BalanceAfter)

	require.NotNil(t, sched.NextPayment)
	assert.Equal(t, 1, sched.NextPayment.Number)
}

func TestComputeHalfPaid(t *testing.T) {
	snap := referenceLoan()
	snap.Balance = floatPtr(1320)

	sched, err := Compute(snap, date(2024, time.June, 15))
	require.NoError(t, err)

	s := sched.Summary
	assert.Equal(t, 1320.0, s.TotalPaid)
	assert.Equal(t, 6, s.PaymentsMade)
	assert.Equal(t, 6, s.RemainingPayments)
	assert.Equal(t, 220.0, s.CurrentPaymentPerInstallment)

	for _, inst := range sched.Installments[:6] {
		assert.True(t, inst.IsPaid, "installment %d should be paid", inst.Number)
		assert.Equal(t, StatusPaid, inst.Status)
		assert.Equal(t, 220.0, inst.PaymentAmount)
	}
	for _, inst := range sched.Installments[6:] {
		assert.False(t, inst.IsPaid, "installment %d should be unpaid", inst.Number)
	}

	require.NotNil(t, sched.NextPayment)
	assert.Equal(t, 7, sched.NextPayment.Number)
}

func TestComputeRevisedInstallmentAmount(t *testing.T) {
	// Irregular payments left 2000 owing: the 640 paid absorbs 2 full
	// installments; the remaining 10 are revised to 200 each.
	snap := referenceLoan()
	snap.Balance = floatPtr(2000)

	sched, err := Compute(snap, date(2024, time.March, 15))
	require.NoError(t, err)

	s := sched.Summary
	assert.Equal(t, 2, s.PaymentsMade)
	assert.Equal(t, 10, s.RemainingPayments)
	assert.Equal(t, 200.0, s.CurrentPaymentPerInstallment)

	paid := sched.Installments[0]
	assert.Equal(t, 220.0, paid.PaymentAmount, "paid installments keep the original amount")

	unpaid := sched.Installments[2]
	assert.Equal(t, 200.0, unpaid.PaymentAmount)
	assert.Equal(t, 120.0, unpaid.InterestPortion, "interest allocation stays flat")
	assert.Equal(t, 80.0, unpaid.PrincipalPortion)

	// The displayed running balance tracks the original curve, not the
	// revised amounts.
	assert.Equal(t, 2200.0, unpaid.BalanceBefore)
	assert.Equal(t, 1980.0, unpaid.BalanceAfter)
}

func TestComputeFullyPaid(t *testing.T) {
	snap := referenceLoan()
	snap.Balance = floatPtr(0)

	sched, err := Compute(snap, date(2025, time.June, 1))
	require.NoError(t, err)

	assert.Equal(t, 12, sched.Summary.PaymentsMade)
	assert.Equal(t, 0, sched.Summary.RemainingPayments)
	assert.Equal(t, 0.0, sched.Summary.CurrentPaymentPerInstallment)
	assert.Nil(t, sched.NextPayment)

	for _, inst := range sched.Installments {
		assert.True(t, inst.IsPaid)
		assert.Equal(t, StatusPaid, inst.Status)
	}
}

func TestStatusClassification(t *testing.T) {
	snap := Snapshot{
		PrincipalAmount: 300,
		InterestRate:    0,
		Duration:        3,
		Unit:            UnitDay,
		ReleaseDate:     date(2024, time.May, 1),
	}
	// Installments fall on May 2, 3, 4. As-of May 3.
	sched, err := Compute(snap, date(2024, time.May, 3))
	require.NoError(t, err)

	assert.Equal(t, StatusOverdue, sched.Installments[0].Status)
	assert.Equal(t, StatusDueToday, sched.Installments[1].Status)
	assert.Equal(t, StatusUpcoming, sched.Installments[2].Status)
}

func TestPaidInstallmentIgnoresDate(t *testing.T) {
	snap := referenceLoan()
	snap.Balance = floatPtr(2420) // one payment absorbed

	sched, err := Compute(snap, date(2099, time.January, 1))
	require.NoError(t, err)

	assert.Equal(t, StatusPaid, sched.Installments[0].Status,
		"a paid installment is Paid no matter how far in the past its date is")
	assert.Equal(t, StatusOverdue, sched.Installments[1].Status)
}

func TestInvalidInput(t *testing.T) {
	base := referenceLoan()

	tests := []struct {
		name   string
		mutate func(*Snapshot)
		field  string
	}{
		{"zero duration", func(s *Snapshot) { s.Duration = 0 }, "duration"},
		{"negative duration", func(s *Snapshot) { s.Duration = -4 }, "duration"},
		{"negative principal", func(s *Snapshot) { s.PrincipalAmount = -1 }, "principal_amount"},
		{"negative rate", func(s *Snapshot) { s.InterestRate = -0.5 }, "interest_rate"},
		{"negative balance", func(s *Snapshot) { s.Balance = floatPtr(-10) }, "balance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := base
			tt.mutate(&snap)

			sched, err := Compute(snap, date(2024, time.June, 1))
			assert.Nil(t, sched)

			var invalid *InvalidInputError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tt.field, invalid.Field)
		})
	}
}

func TestZeroPrincipalAndRate(t *testing.T) {
	snap := Snapshot{
		Duration:    6,
		Unit:        UnitMonth,
		ReleaseDate: date(2024, time.March, 10),
	}

	sched, err := Compute(snap, date(2024, time.March, 10))
	require.NoError(t, err)
	assert.Equal(t, 0.0, sched.Summary.OriginalTotalRepayment)
	assert.Equal(t, 0, sched.Summary.PaymentsMade)
	require.Len(t, sched.Installments, 6)
	for _, inst := range sched.Installments {
		assert.Equal(t, 0.0, inst.PaymentAmount)
	}
}

func TestDateCycles(t *testing.T) {
	release := date(2024, time.January, 31)

	tests := []struct {
		unit   Unit
		second time.Time
	}{
		{UnitDay, date(2024, time.February, 2)},
		{UnitWeek, date(2024, time.February, 14)},
		{UnitMonth, date(2024, time.March, 31)}, // direct from release, no drift via Feb
		{UnitYear, date(2026, time.January, 31)},
	}

	for _, tt := range tests {
		t.Run(string(tt.unit), func(t *testing.T) {
			snap := Snapshot{
				PrincipalAmount: 100,
				Duration:        4,
				Unit:            tt.unit,
				ReleaseDate:     release,
			}
			sched, err := Compute(snap, release)
			require.NoError(t, err)

			assert.Equal(t, tt.second, sched.Installments[1].PaymentDate)
			for i := 1; i < len(sched.Installments); i++ {
				assert.True(t, sched.Installments[i].PaymentDate.After(sched.Installments[i-1].PaymentDate),
					"payment dates must be strictly increasing")
			}
		})
	}
}

func TestInterestPortionsSumToTotal(t *testing.T) {
	// Amounts chosen so the flat split does not divide evenly.
	snap := Snapshot{
		PrincipalAmount: 1000,
		InterestRate:    7,
		Duration:        7,
		Unit:            UnitWeek,
		ReleaseDate:     date(2024, time.April, 1),
	}

	sched, err := Compute(snap, date(2024, time.April, 1))
	require.NoError(t, err)

	var sum float64
	for _, inst := range sched.Installments {
		sum += inst.InterestPortion
	}
	tolerance := float64(snap.Duration) * 0.005
	assert.InDelta(t, sched.Summary.TotalInterest, sum, tolerance)
}

func TestIdempotence(t *testing.T) {
	snap := referenceLoan()
	snap.Balance = floatPtr(1573.40)
	asOf := date(2024, time.August, 9)

	a, err := Compute(snap, asOf)
	require.NoError(t, err)
	b, err := Compute(snap, asOf)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestParseUnit(t *testing.T) {
	assert.Equal(t, UnitDay, ParseUnit("day(s)"))
	assert.Equal(t, UnitWeek, ParseUnit("weeks"))
	assert.Equal(t, UnitMonth, ParseUnit("month"))
	assert.Equal(t, UnitYear, ParseUnit("year(s)"))
	assert.Equal(t, UnitMonth, ParseUnit("fortnight"), "unknown units fall back to monthly")
}
