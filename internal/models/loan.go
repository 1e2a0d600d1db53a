package models

import (
	"time"
)

// Loan represents a loan account for a borrower
type Loan struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	LoanNumber       string     `gorm:"uniqueIndex;not null" json:"loan_number"`
	BorrowerID       uint       `gorm:"not null;index" json:"borrower_id"`
	OfficerID        *uint      `gorm:"index" json:"officer_id"`
	PrincipalAmount  float64    `gorm:"type:decimal(15,2);not null" json:"principal_amount"`
	InterestRate     float64    `gorm:"type:decimal(8,4);not null" json:"interest_rate"`
	Duration         int        `gorm:"not null" json:"duration"`
	DurationUnit     string     `gorm:"default:month;not null" json:"duration_unit"`
	Purpose          *string    `gorm:"type:text" json:"purpose"`
	Status           string     `gorm:"default:processing;index" json:"status"`
	Currency         string     `gorm:"default:ZMW;not null" json:"currency"`
	RepaymentAmount  *float64   `gorm:"type:decimal(15,2)" json:"repayment_amount"`
	Balance          *float64   `gorm:"type:decimal(15,2)" json:"balance"`
	ReleaseDate      *time.Time `gorm:"type:date;index" json:"release_date"`
	ApprovedAt       *time.Time `gorm:"index" json:"approved_at"`
	ApprovedByUserID *uint      `gorm:"index" json:"approved_by_user_id"`
	RejectionReason  *string    `gorm:"type:text" json:"rejection_reason"`
	ClosedAt         *time.Time `json:"closed_at"`
	DefaultedAt      *time.Time `json:"defaulted_at"`
	AgreementPath    *string    `json:"-"`
	Note             *string    `gorm:"type:text" json:"note"`

	// AI risk assessment fields
	AICreditScore      *int       `gorm:"column:ai_credit_score" json:"ai_credit_score"`
	DefaultProbability *float64   `gorm:"type:decimal(5,4)" json:"default_probability"`
	RiskFactors        *string    `gorm:"type:text" json:"risk_factors"` // JSON array of factor strings
	AIRecommendation   *string    `gorm:"column:ai_recommendation" json:"ai_recommendation"`
	AIDecisionReason   *string    `gorm:"column:ai_decision_reason;type:text" json:"ai_decision_reason"`
	AIScoredAt         *time.Time `gorm:"column:ai_scored_at" json:"ai_scored_at"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	Borrower       Borrower    `gorm:"foreignKey:BorrowerID" json:"borrower,omitempty"`
	Officer        *User       `gorm:"foreignKey:OfficerID" json:"officer,omitempty"`
	ApprovedByUser *User       `gorm:"foreignKey:ApprovedByUserID" json:"approved_by_user,omitempty"`
	Repayments     []Repayment `gorm:"foreignKey:LoanID" json:"repayments,omitempty"`
}

// TableName specifies the table name for Loan
func (Loan) TableName() string {
	return "loans"
}

// Loan status constants
const (
	LoanStatusProcessing = "processing"
	LoanStatusApproved   = "approved"
	LoanStatusRejected   = "rejected"
	LoanStatusActive     = "active"
	LoanStatusClosed     = "closed"
	LoanStatusDefaulted  = "defaulted"
)

// Duration unit constants
const (
	DurationUnitDay   = "day"
	DurationUnitWeek  = "week"
	DurationUnitMonth = "month"
	DurationUnitYear  = "year"
)

// ValidDurationUnit checks a repayment cycle unit
func ValidDurationUnit(u string) bool {
	switch u {
	case DurationUnitDay, DurationUnitWeek, DurationUnitMonth, DurationUnitYear:
		return true
	}
	return false
}

// AI recommendation constants
const (
	AIRecommendApprove = "approve"
	AIRecommendReview  = "review"
	AIRecommendReject  = "reject"
)

// MayApprove returns true if the loan can be approved
func (l *Loan) MayApprove() bool {
	return l.Status == LoanStatusProcessing
}

// MayReject returns true if the loan can be rejected
func (l *Loan) MayReject() bool {
	return l.Status == LoanStatusProcessing
}

// MayRelease returns true if funds can be disbursed
func (l *Loan) MayRelease() bool {
	return l.Status == LoanStatusApproved
}

// MayClose returns true if the loan can be settled
func (l *Loan) MayClose() bool {
	if l.Status != LoanStatusActive && l.Status != LoanStatusDefaulted {
		return false
	}
	return l.Balance != nil && *l.Balance <= 0
}

// MayDefault returns true if the loan can be marked defaulted
func (l *Loan) MayDefault() bool {
	return l.Status == LoanStatusActive
}

// MayReopen returns true if a settled loan can go back to active
func (l *Loan) MayReopen() bool {
	if l.Status != LoanStatusClosed {
		return false
	}
	return l.Balance != nil && *l.Balance > 0
}

// IsOutstanding returns true while the borrower still owes money
func (l *Loan) IsOutstanding() bool {
	return l.Status == LoanStatusActive || l.Status == LoanStatusDefaulted
}

// TotalInterest is the flat interest over the full term
func (l *Loan) TotalInterest() float64 {
	return l.PrincipalAmount * (l.InterestRate / 100) * float64(l.Duration)
}

// TotalRepayable is principal plus flat interest
func (l *Loan) TotalRepayable() float64 {
	return l.PrincipalAmount + l.TotalInterest()
}

// TotalPaid is the amount repaid so far, derived from the balance
func (l *Loan) TotalPaid() float64 {
	if l.Balance == nil {
		return 0
	}
	paid := l.TotalRepayable() - *l.Balance
	if paid < 0 {
		return 0
	}
	return paid
}

// LoanResponse is the JSON response format for loans
type LoanResponse struct {
	ID              uint       `json:"id"`
	LoanNumber      string     `json:"loan_number"`
	BorrowerID      uint       `json:"borrower_id"`
	BorrowerName    string     `json:"borrower_name"`
	BorrowerPhone   string     `json:"borrower_phone"`
	BorrowerNRC     string     `json:"borrower_nrc"`
	OfficerName     string     `json:"officer_name,omitempty"`
	PrincipalAmount float64    `json:"principal_amount"`
	InterestRate    float64    `json:"interest_rate"`
	Duration        int        `json:"duration"`
	DurationUnit    string     `json:"duration_unit"`
	Purpose         *string    `json:"purpose"`
	Status          string     `json:"status"`
	Currency        string     `json:"currency"`
	TotalInterest   float64    `json:"total_interest"`
	TotalRepayable  float64    `json:"total_repayable"`
	Balance         *float64   `json:"balance"`
	TotalPaid       float64    `json:"total_paid"`
	ReleaseDate     *time.Time `json:"release_date"`
	ApprovedAt      *time.Time `json:"approved_at"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	ClosedAt        *time.Time `json:"closed_at"`
	DefaultedAt     *time.Time `json:"defaulted_at"`
	HasAgreement    bool       `json:"has_agreement"`
	Note            *string    `json:"note"`

	AICreditScore      *int       `json:"ai_credit_score"`
	DefaultProbability *float64   `json:"default_probability"`
	AIRecommendation   *string    `json:"ai_recommendation"`
	AIDecisionReason   *string    `json:"ai_decision_reason"`
	AIScoredAt         *time.Time `json:"ai_scored_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Repayments []RepaymentResponse `json:"repayments,omitempty"`
}

// ToResponse converts Loan to LoanResponse
func (l *Loan) ToResponse() LoanResponse {
	resp := LoanResponse{
		ID:                 l.ID,
		LoanNumber:         l.LoanNumber,
		BorrowerID:         l.BorrowerID,
		PrincipalAmount:    l.PrincipalAmount,
		InterestRate:       l.InterestRate,
		Duration:           l.Duration,
		DurationUnit:       l.DurationUnit,
		Purpose:            l.Purpose,
		Status:             l.Status,
		Currency:           l.Currency,
		TotalInterest:      l.TotalInterest(),
		TotalRepayable:     l.TotalRepayable(),
		Balance:            l.Balance,
		TotalPaid:          l.TotalPaid(),
		ReleaseDate:        l.ReleaseDate,
		ApprovedAt:         l.ApprovedAt,
		RejectionReason:    l.RejectionReason,
		ClosedAt:           l.ClosedAt,
		DefaultedAt:        l.DefaultedAt,
		HasAgreement:       l.AgreementPath != nil && *l.AgreementPath != "",
		Note:               l.Note,
		AICreditScore:      l.AICreditScore,
		DefaultProbability: l.DefaultProbability,
		AIRecommendation:   l.AIRecommendation,
		AIDecisionReason:   l.AIDecisionReason,
		AIScoredAt:         l.AIScoredAt,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}

	if l.Borrower.ID != 0 {
		resp.BorrowerName = l.Borrower.FullName
		resp.BorrowerPhone = l.Borrower.Phone
		resp.BorrowerNRC = maskNRC(l.Borrower.NRC)
	}
	if l.Officer != nil {
		resp.OfficerName = l.Officer.FullName
	}
	if l.ApprovedByUser != nil {
		resp.ApprovedBy = l.ApprovedByUser.FullName
	}

	for _, r := range l.Repayments {
		resp.Repayments = append(resp.Repayments, r.ToResponse())
	}

	return resp
}
