package models

import (
	"time"
)

// Borrower represents a loan applicant / customer
type Borrower struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	FullName      string     `gorm:"not null" json:"full_name"`
	Phone         string     `gorm:"not null;index" json:"phone"`
	Email         *string    `gorm:"index" json:"email"`
	NRC           string     `gorm:"column:nrc;uniqueIndex" json:"nrc"`
	Gender        *string    `json:"gender"`
	DateOfBirth   *time.Time `gorm:"type:date" json:"date_of_birth"`
	Address       *string    `gorm:"type:text" json:"address"`
	Occupation    *string    `json:"occupation"`
	Employer      *string    `json:"employer"`
	MonthlyIncome *float64   `gorm:"type:decimal(15,2)" json:"monthly_income"`
	CreditScore   int        `gorm:"default:0" json:"credit_score"`
	PhotoPath     *string    `json:"-"`
	Note          *string    `gorm:"type:text" json:"note"`
	CreatedBy     *uint      `json:"created_by"`
	DiscardedAt   *time.Time `gorm:"index" json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Associations
	Creator *User  `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Loans   []Loan `gorm:"foreignKey:BorrowerID" json:"loans,omitempty"`
}

// TableName specifies the table name for Borrower
func (Borrower) TableName() string {
	return "borrowers"
}

// IsDiscarded returns true if borrower is soft-deleted
func (b *Borrower) IsDiscarded() bool {
	return b.DiscardedAt != nil
}

// ActiveLoanCount counts loans currently being repaid
func (b *Borrower) ActiveLoanCount() int {
	count := 0
	for _, l := range b.Loans {
		if l.Status == LoanStatusActive || l.Status == LoanStatusDefaulted {
			count++
		}
	}
	return count
}

// BorrowerResponse is the JSON response format for borrowers
type BorrowerResponse struct {
	ID            uint       `json:"id"`
	FullName      string     `json:"full_name"`
	Phone         string     `json:"phone"`
	Email         *string    `json:"email"`
	NRC           string     `json:"nrc"`
	Gender        *string    `json:"gender"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	Address       *string    `json:"address"`
	Occupation    *string    `json:"occupation"`
	Employer      *string    `json:"employer"`
	MonthlyIncome *float64   `json:"monthly_income"`
	CreditScore   int        `json:"credit_score"`
	ActiveLoans   int        `json:"active_loans"`
	Note          *string    `json:"note"`
	CreatedBy     string     `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ToResponse converts Borrower to BorrowerResponse
func (b *Borrower) ToResponse() BorrowerResponse {
	resp := BorrowerResponse{
		ID:            b.ID,
		FullName:      b.FullName,
		Phone:         b.Phone,
		Email:         b.Email,
		NRC:           maskNRC(b.NRC),
		Gender:        b.Gender,
		DateOfBirth:   b.DateOfBirth,
		Address:       b.Address,
		Occupation:    b.Occupation,
		Employer:      b.Employer,
		MonthlyIncome: b.MonthlyIncome,
		CreditScore:   b.CreditScore,
		ActiveLoans:   b.ActiveLoanCount(),
		Note:          b.Note,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	if b.Creator != nil {
		resp.CreatedBy = b.Creator.FullName
	}
	return resp
}

// maskNRC masks a national registration number for privacy
func maskNRC(nrc string) string {
	if len(nrc) <= 4 {
		masked := ""
		for range nrc {
			masked += "*"
		}
		return masked
	}
	masked := nrc[:4]
	for i := 4; i < len(nrc)-3; i++ {
		masked += "*"
	}
	masked += nrc[len(nrc)-3:]
	return masked
}
