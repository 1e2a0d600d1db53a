// Package schedule reconstructs loan repayment schedules from a loan
// snapshot. It is pure: no clock reads, no I/O, safe for concurrent use.
package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Unit is the cadence between installments.
type Unit string

const (
	UnitDay   Unit = "day"
	UnitWeek  Unit = "week"
	UnitMonth Unit = "month"
	UnitYear  Unit = "year"
)

// ParseUnit normalizes a stored duration unit. Legacy records use spellings
// like "month(s)"; anything unrecognized falls back to monthly, matching the
// behavior the rest of the system has always assumed.
func ParseUnit(s string) Unit {
	switch s {
	case "day", "day(s)", "days":
		return UnitDay
	case "week", "week(s)", "weeks":
		return UnitWeek
	case "month", "month(s)", "months":
		return UnitMonth
	case "year", "year(s)", "years":
		return UnitYear
	default:
		return UnitMonth
	}
}

// Status classifies an installment relative to the as-of date.
type Status string

const (
	StatusPaid     Status = "Paid"
	StatusOverdue  Status = "Overdue"
	StatusDueToday Status = "Due Today"
	StatusUpcoming Status = "Upcoming"
)

// Snapshot is the immutable view of a loan the engine computes from.
// Balance reflects payments made so far; nil means no payments have been
// recorded and the balance defaults to the original total repayment.
type Snapshot struct {
	PrincipalAmount float64
	InterestRate    float64 // percent per cycle, flat
	Duration        int     // number of installments
	Unit            Unit
	ReleaseDate     time.Time
	Balance         *float64
	LoanNumber      string
	Status          string
}

// Summary holds the derived totals for a schedule.
type Summary struct {
	PrincipalAmount               float64 `json:"principal_amount"`
	InterestRate                  float64 `json:"interest_rate"`
	TotalInterest                 float64 `json:"total_interest"`
	OriginalTotalRepayment        float64 `json:"original_total_repayment"`
	CurrentBalance                float64 `json:"current_balance"`
	TotalPaid                     float64 `json:"total_paid"`
	Duration                      int     `json:"duration"`
	Unit                          Unit    `json:"duration_unit"`
	ReleaseDate                   string  `json:"release_date"`
	OriginalPaymentPerInstallment float64 `json:"original_payment_per_installment"`
	CurrentPaymentPerInstallment  float64 `json:"current_payment_per_installment"`
	PaymentsMade                  int     `json:"payments_made"`
	RemainingPayments             int     `json:"remaining_payments"`
}

// Installment is one scheduled repayment unit.
type Installment struct {
	Number           int       `json:"installment_number"`
	PaymentDate      time.Time `json:"payment_date"`
	PaymentAmount    float64   `json:"payment_amount"`
	PrincipalPortion float64   `json:"principal_portion"`
	InterestPortion  float64   `json:"interest_portion"`
	BalanceBefore    float64   `json:"balance_before"`
	BalanceAfter     float64   `json:"balance_after"`
	IsPaid           bool      `json:"is_paid"`
	Status           Status    `json:"status"`
}

// Schedule is the full result of a computation.
type Schedule struct {
	Summary      Summary       `json:"summary"`
	Installments []Installment `json:"schedule"`
	NextPayment  *Installment  `json:"next_payment"`
}

// InvalidInputError reports a snapshot field that makes the schedule
// arithmetic undefined. It is returned before any output is constructed.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid loan snapshot: %s %s", e.Field, e.Reason)
}

// Compute builds the repayment schedule for a loan snapshot.
//
// Interest is flat-rate: principal * (rate/100) * duration, spread evenly
// across installments regardless of the declining balance. The number of
// installments already absorbed is inferred from the balance gap against the
// original per-installment amount; this is an approximation, not a ledger
// read, and callers holding real payment records should prefer those for
// anything beyond display.
//
// asOf is the reference "today" for Overdue/Due Today/Upcoming
// classification. It must be supplied by the caller; the engine never reads
// the system clock, so identical inputs always produce identical output.
func Compute(snap Snapshot, asOf time.Time) (*Schedule, error) {
	if err := validate(snap); err != nil {
		return nil, err
	}

	n := snap.Duration
	totalInterest := snap.PrincipalAmount * (snap.InterestRate / 100) * float64(n)
	originalTotal := snap.PrincipalAmount + totalInterest

	balance := originalTotal
	if snap.Balance != nil {
		balance = *snap.Balance
	}

	totalPaid := originalTotal - balance
	perOriginal := originalTotal / float64(n)

	made := 0
	if totalPaid > 0 && perOriginal > 0 {
		// The epsilon absorbs float noise at exact-installment boundaries
		// (e.g. balance 0 must infer exactly n payments).
		made = int(math.Floor(totalPaid/perOriginal + 1e-9))
	}
	if made > n {
		made = n
	}

	remaining := n - made
	perCurrent := 0.0
	if remaining > 0 {
		perCurrent = balance / float64(remaining)
	}

	interestPortion := totalInterest / float64(n)

	installments := make([]Installment, 0, n)
	running := originalTotal
	for i := 1; i <= n; i++ {
		date := advance(snap.ReleaseDate, i, snap.Unit)
		paid := i <= made

		amount := perCurrent
		if paid {
			amount = perOriginal
		}

		after := running - perOriginal

		installments = append(installments, Installment{
			Number:           i,
			PaymentDate:      date,
			PaymentAmount:    round2(amount),
			PrincipalPortion: round2(amount - interestPortion),
			InterestPortion:  round2(interestPortion),
			BalanceBefore:    round2(running),
			BalanceAfter:     round2(math.Max(0, after)),
			IsPaid:           paid,
			Status:           classify(paid, date, asOf),
		})

		// The carried balance is deliberately not clamped; only the
		// displayed balance_after is floored at zero. Downstream renderers
		// depend on this.
		running = after
	}

	sched := &Schedule{
		Summary: Summary{
			PrincipalAmount:               snap.PrincipalAmount,
			InterestRate:                  snap.InterestRate,
			TotalInterest:                 round2(totalInterest),
			OriginalTotalRepayment:        round2(originalTotal),
			CurrentBalance:                round2(balance),
			TotalPaid:                     round2(totalPaid),
			Duration:                      n,
			Unit:                          snap.Unit,
			ReleaseDate:                   snap.ReleaseDate.Format("2006-01-02"),
			OriginalPaymentPerInstallment: round2(perOriginal),
			CurrentPaymentPerInstallment:  round2(perCurrent),
			PaymentsMade:                  made,
			RemainingPayments:             remaining,
		},
		Installments: installments,
	}

	for i := range sched.Installments {
		if !sched.Installments[i].IsPaid {
			next := sched.Installments[i]
			sched.NextPayment = &next
			break
		}
	}

	return sched, nil
}

func validate(snap Snapshot) error {
	if snap.Duration <= 0 {
		return &InvalidInputError{Field: "duration", Reason: "must be a positive number of installments"}
	}
	if snap.PrincipalAmount < 0 {
		return &InvalidInputError{Field: "principal_amount", Reason: "must not be negative"}
	}
	if snap.InterestRate < 0 {
		return &InvalidInputError{Field: "interest_rate", Reason: "must not be negative"}
	}
	if snap.Balance != nil && *snap.Balance < 0 {
		return &InvalidInputError{Field: "balance", Reason: "must not be negative"}
	}
	return nil
}

// advance computes installment i's due date directly from the release date
// rather than stepping the previous date forward, so variable month lengths
// cannot accumulate drift.
func advance(release time.Time, i int, unit Unit) time.Time {
	switch unit {
	case UnitDay:
		return release.AddDate(0, 0, i)
	case UnitWeek:
		return release.AddDate(0, 0, 7*i)
	case UnitYear:
		return release.AddDate(i, 0, 0)
	default:
		return release.AddDate(0, i, 0)
	}
}

func classify(paid bool, date, asOf time.Time) Status {
	if paid {
		return StatusPaid
	}
	y1, m1, d1 := date.Date()
	y2, m2, d2 := asOf.Date()
	switch {
	case y1 == y2 && m1 == m2 && d1 == d2:
		return StatusDueToday
	case date.Before(asOf):
		return StatusOverdue
	default:
		return StatusUpcoming
	}
}

// round2 rounds to two decimal places, half away from zero, the same rule
// applied to every currency field in the output.
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
