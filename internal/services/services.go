package services

import (
	"github.com/zamfin/loanpilot-api/internal/config"
	"github.com/zamfin/loanpilot-api/internal/jobs"
	"github.com/zamfin/loanpilot-api/internal/repository"
	"github.com/zamfin/loanpilot-api/internal/storage"
	"gorm.io/gorm"
)

// Services holds all service instances
type Services struct {
	Auth         *AuthService
	User         *UserService
	Borrower     *BorrowerService
	Loan         *LoanService
	Repayment    *RepaymentService
	Schedule     *ScheduleService
	Notification *NotificationService
	Report       *ReportService
	Wallet       *WalletService
	Audit        *AuditService
	CreditScore  *CreditScoreService
	Currency     *CurrencyService
	Email        *EmailService
	Export       *ExportService
	Job          *JobService
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, storage *storage.LocalStorage, cfg *config.Config, db *gorm.DB) *Services {
	notificationSvc := NewNotificationService(repos.Notification, repos.User)
	emailSvc := NewEmailService(cfg)
	auditSvc := NewAuditService(db)
	currencySvc := NewCurrencyService(cfg.DefaultCurrency)
	scheduleSvc := NewScheduleService(repos.Loan)

	imageSvc := NewImageService(cfg.StoragePath + "/uploads")

	jobSvc := NewJobService(worker)

	reportSvc := NewReportService(repos.Loan, repos.Repayment, repos.Borrower, scheduleSvc, currencySvc)

	return &Services{
		Auth:     NewAuthService(repos.User, repos.RefreshToken, cfg),
		User:     NewUserService(repos.User, worker, emailSvc, auditSvc),
		Borrower: NewBorrowerService(repos.Borrower, repos.Loan, imageSvc, auditSvc, worker),
		Loan: NewLoanService(repos.Loan, repos.Borrower, repos.Wallet,
			notificationSvc, emailSvc, auditSvc, worker, scheduleSvc, currencySvc,
			reportSvc, storage),
		Repayment: NewRepaymentService(repos.Repayment, repos.Loan, repos.Wallet,
			notificationSvc, emailSvc, auditSvc, worker, scheduleSvc, currencySvc,
			reportSvc),
		Schedule:     scheduleSvc,
		Notification: notificationSvc,
		Report:       reportSvc,
		Wallet:       NewWalletService(repos.Wallet, auditSvc),
		Audit:        auditSvc,
		CreditScore:  NewCreditScoreService(repos.Borrower, repos.Loan, repos.Repayment, scheduleSvc, cfg.ScoringServiceURL),
		Currency:     currencySvc,
		Email:        emailSvc,
		Export:       NewExportService(repos.Loan),
		Job:          jobSvc,
	}
}
