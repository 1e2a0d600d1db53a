package repository

import (
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	User         UserRepository
	Borrower     BorrowerRepository
	Loan         LoanRepository
	Repayment    RepaymentRepository
	Notification NotificationRepository
	RefreshToken RefreshTokenRepository
	Wallet       WalletRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Borrower:     NewBorrowerRepository(db),
		Loan:         NewLoanRepository(db),
		Repayment:    NewRepaymentRepository(db),
		Notification: NewNotificationRepository(db),
		RefreshToken: NewRefreshTokenRepository(db),
		Wallet:       NewWalletRepository(db),
	}
}
