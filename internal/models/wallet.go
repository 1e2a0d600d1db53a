package models

import (
	"time"
)

// Wallet tracks the organisation's cash position per branch
type Wallet struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"uniqueIndex;not null" json:"name"`
	Currency       string    `gorm:"default:ZMW;not null" json:"currency"`
	Balance        float64   `gorm:"type:decimal(15,2);default:0" json:"balance"`
	TotalDisbursed float64   `gorm:"type:decimal(15,2);default:0" json:"total_disbursed"`
	TotalCollected float64   `gorm:"type:decimal(15,2);default:0" json:"total_collected"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for Wallet
func (Wallet) TableName() string {
	return "wallets"
}

// DefaultWalletName is the wallet used when no branch is specified
const DefaultWalletName = "main"

// DefaultCurrency is the currency assumed when none is given
const DefaultCurrency = "ZMW"

// CanDisburse reports whether the wallet holds enough cash for amount
func (w *Wallet) CanDisburse(amount float64) bool {
	return w.Balance >= amount
}
