package handlers

import (
	"github.com/zamfin/loanpilot-api/internal/services"
	"github.com/zamfin/loanpilot-api/internal/storage"
)

// Handlers holds all handler instances
type Handlers struct {
	Health       *HealthHandler
	Auth         *AuthHandler
	User         *UserHandler
	Borrower     *BorrowerHandler
	Loan         *LoanHandler
	Repayment    *RepaymentHandler
	Notification *NotificationHandler
	Report       *ReportHandler
	Wallet       *WalletHandler
	Audit        *AuditHandler
	Job          *JobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services, storage *storage.LocalStorage) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(),
		Auth:         NewAuthHandler(svcs.Auth),
		User:         NewUserHandler(svcs.User),
		Borrower:     NewBorrowerHandler(svcs.Borrower, svcs.CreditScore),
		Loan:         NewLoanHandler(svcs.Loan, svcs.Schedule, svcs.CreditScore, svcs.Report, svcs.Export),
		Repayment:    NewRepaymentHandler(svcs.Repayment, svcs.Report, storage),
		Notification: NewNotificationHandler(svcs.Notification),
		Report:       NewReportHandler(svcs.Report),
		Wallet:       NewWalletHandler(svcs.Wallet),
		Audit:        NewAuditHandler(svcs.Audit),
		Job:          NewJobHandler(svcs.Job),
	}
}
