package models

import (
	"time"
)

// Repayment represents a payment received against a loan
type Repayment struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	LoanID           uint      `gorm:"not null;index" json:"loan_id"`
	Amount           float64   `gorm:"type:decimal(15,2);not null" json:"amount"`
	Method           string    `gorm:"default:cash;not null" json:"method"`
	Reference        *string   `gorm:"index" json:"reference"`
	PaidAt           time.Time `gorm:"not null;index" json:"paid_at"`
	BalanceAfter     float64   `gorm:"type:decimal(15,2)" json:"balance_after"`
	RecordedByUserID *uint     `gorm:"index" json:"recorded_by_user_id"`
	ReceiptPath      *string   `json:"-"`
	Note             *string   `gorm:"type:text" json:"note"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Associations
	Loan       Loan  `gorm:"foreignKey:LoanID" json:"loan,omitempty"`
	RecordedBy *User `gorm:"foreignKey:RecordedByUserID" json:"recorded_by,omitempty"`
}

// TableName specifies the table name for Repayment
func (Repayment) TableName() string {
	return "repayments"
}

// Repayment method constants
const (
	RepaymentMethodCash         = "cash"
	RepaymentMethodMobileMoney  = "mobile_money"
	RepaymentMethodBankTransfer = "bank_transfer"
	RepaymentMethodCheque       = "cheque"
)

// ValidRepaymentMethod reports whether m is a supported payment method
func ValidRepaymentMethod(m string) bool {
	switch m {
	case RepaymentMethodCash, RepaymentMethodMobileMoney,
		RepaymentMethodBankTransfer, RepaymentMethodCheque:
		return true
	}
	return false
}

// RepaymentResponse is the JSON response format for repayments
type RepaymentResponse struct {
	ID           uint      `json:"id"`
	LoanID       uint      `json:"loan_id"`
	LoanNumber   string    `json:"loan_number,omitempty"`
	BorrowerName string    `json:"borrower_name,omitempty"`
	Amount       float64   `json:"amount"`
	Method       string    `json:"method"`
	Reference    *string   `json:"reference"`
	PaidAt       time.Time `json:"paid_at"`
	BalanceAfter float64   `json:"balance_after"`
	RecordedBy   string    `json:"recorded_by,omitempty"`
	HasReceipt   bool      `json:"has_receipt"`
	Note         *string   `json:"note"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToResponse converts Repayment to RepaymentResponse
func (r *Repayment) ToResponse() RepaymentResponse {
	resp := RepaymentResponse{
		ID:           r.ID,
		LoanID:       r.LoanID,
		Amount:       r.Amount,
		Method:       r.Method,
		Reference:    r.Reference,
		PaidAt:       r.PaidAt,
		BalanceAfter: r.BalanceAfter,
		HasReceipt:   r.ReceiptPath != nil && *r.ReceiptPath != "",
		Note:         r.Note,
		CreatedAt:    r.CreatedAt,
	}
	if r.Loan.ID != 0 {
		resp.LoanNumber = r.Loan.LoanNumber
		if r.Loan.Borrower.ID != 0 {
			resp.BorrowerName = r.Loan.Borrower.FullName
		}
	}
	if r.RecordedBy != nil {
		resp.RecordedBy = r.RecordedBy.FullName
	}
	return resp
}
