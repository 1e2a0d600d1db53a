package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zamfin/loanpilot-api/internal/jobs"
	"github.com/zamfin/loanpilot-api/internal/models"
	"github.com/zamfin/loanpilot-api/internal/repository"
	"github.com/zamfin/loanpilot-api/internal/statemachine"
	"github.com/zamfin/loanpilot-api/internal/storage"
	"github.com/zamfin/loanpilot-api/pkg/logger"
)

type LoanService struct {
	repo            repository.LoanRepository
	borrowerRepo    repository.BorrowerRepository
	walletRepo      repository.WalletRepository
	notificationSvc *NotificationService
	emailSvc        *EmailService
	auditSvc        *AuditService
	worker          *jobs.Worker
	scheduleSvc     *ScheduleService
	currencySvc     *CurrencyService
	reportSvc       *ReportService
	storage         *storage.LocalStorage
}

func NewLoanService(
	repo repository.LoanRepository,
	borrowerRepo repository.BorrowerRepository,
	walletRepo repository.WalletRepository,
	notificationSvc *NotificationService,
	emailSvc *EmailService,
	auditSvc *AuditService,
	worker *jobs.Worker,
	scheduleSvc *ScheduleService,
	currencySvc *CurrencyService,
	reportSvc *ReportService,
	store *storage.LocalStorage,
) *LoanService {
	return &LoanService{
		repo:            repo,
		borrowerRepo:    borrowerRepo,
		walletRepo:      walletRepo,
		notificationSvc: notificationSvc,
		emailSvc:        emailSvc,
		auditSvc:        auditSvc,
		worker:          worker,
		scheduleSvc:     scheduleSvc,
		currencySvc:     currencySvc,
		reportSvc:       reportSvc,
		storage:         store,
	}
}

// FindByID gets a loan by ID
func (s *LoanService) FindByID(ctx context.Context, id uint) (*models.Loan, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByIDWithDetails gets a loan with borrower, officer and repayments preloaded
func (s *LoanService) FindByIDWithDetails(ctx context.Context, id uint) (*models.Loan, error) {
	return s.repo.FindByIDWithDetails(ctx, id)
}

func (s *LoanService) List(ctx context.Context, query *repository.LoanQuery) ([]models.Loan, int64, error) {
	return s.repo.List(ctx, query)
}

func (s *LoanService) GetStats(ctx context.Context) (*repository.LoanStats, error) {
	return s.repo.GetStats(ctx)
}

func (s *LoanService) GetPortfolioStats(ctx context.Context) (*repository.PortfolioStats, error) {
	return s.repo.GetPortfolioStats(ctx)
}

// Create registers a new loan application in processing state.
func (s *LoanService) Create(ctx context.Context, loan *models.Loan, actorID uint) error {
	if loan.PrincipalAmount <= 0 {
		return errors.New("principal amount must be greater than zero")
	}
	if loan.InterestRate < 0 {
		return errors.New("interest rate cannot be negative")
	}
	if loan.Duration <= 0 {
		return errors.New("duration must be at least one installment")
	}
	if loan.DurationUnit == "" {
		loan.DurationUnit = models.DurationUnitMonth
	}
	if !models.ValidDurationUnit(loan.DurationUnit) {
		return fmt.Errorf("invalid duration unit: %s", loan.DurationUnit)
	}

	borrower, err := s.borrowerRepo.FindByID(ctx, loan.BorrowerID)
	if err != nil {
		return errors.New("borrower not found")
	}
	if borrower.DiscardedAt != nil {
		return errors.New("borrower account is archived")
	}

	year := time.Now().Year()
	seq, err := s.repo.NextSequence(ctx, year)
	if err != nil {
		return fmt.Errorf("failed to allocate loan number: %w", err)
	}
	loan.LoanNumber = fmt.Sprintf("LN-%d-%04d", year, seq)
	loan.Status = models.LoanStatusProcessing
	if loan.Currency == "" {
		loan.Currency = "ZMW"
	}

	if err := s.repo.Create(ctx, loan); err != nil {
		return err
	}

	// Notify admins asynchronously
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.notificationSvc.NotifyAdmins(ctx,
			"New loan application",
			fmt.Sprintf("Loan %s for %s is awaiting review", loan.LoanNumber, borrower.FullName),
			models.NotificationTypeLoanApproved)
	})

	s.auditSvc.Log(ctx, actorID, "CREATE", "Loan", loan.ID,
		fmt.Sprintf("Loan %s created for borrower %s. Principal: %s over %d %s(s)",
			loan.LoanNumber, borrower.FullName,
			s.currencySvc.FormatMoney(loan.PrincipalAmount, loan.Currency),
			loan.Duration, loan.DurationUnit), "", "")

	return nil
}

// Update edits a loan application. Only loans still in processing can change terms.
func (s *LoanService) Update(ctx context.Context, loan *models.Loan) error {
	if loan.Status != models.LoanStatusProcessing {
		return ErrInvalidState
	}
	if !models.ValidDurationUnit(loan.DurationUnit) {
		return fmt.Errorf("invalid duration unit: %s", loan.DurationUnit)
	}
	return s.repo.Update(ctx, loan)
}

// Approve moves a loan from processing to approved.
func (s *LoanService) Approve(ctx context.Context, id uint, approverID uint) (*models.Loan, error) {
	loan, err := s.repo.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}

	fsm := statemachine.NewLoanFSM(loan)
	if err := fsm.Approve(ctx); err != nil {
		return nil, fmt.Errorf("cannot approve loan: %w", err)
	}

	now := time.Now()
	loan.ApprovedAt = &now
	loan.ApprovedByUserID = &approverID

	if err := s.repo.Update(ctx, loan); err != nil {
		return nil, err
	}

	agreementPDF := s.generateAgreement(ctx, loan)

	installment := loan.TotalRepayable() / float64(loan.Duration)
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.emailSvc.SendLoanApproved(ctx, loan,
			s.currencySvc.FormatMoney(loan.PrincipalAmount, loan.Currency),
			s.currencySvc.FormatMoney(installment, loan.Currency),
			agreementPDF)
	})

	if loan.OfficerID != nil {
		officerID := *loan.OfficerID
		s.worker.EnqueueAsync(func(ctx context.Context) error {
			return s.notificationSvc.NotifyUser(ctx, officerID,
				"Loan approved",
				fmt.Sprintf("Loan %s has been approved and is ready for disbursement", loan.LoanNumber),
				models.NotificationTypeLoanApproved)
		})
	}

	s.auditSvc.Log(ctx, approverID, "APPROVE", "Loan", loan.ID,
		fmt.Sprintf("Loan %s approved. Borrower: %s, Principal: %s",
			loan.LoanNumber, loan.Borrower.FullName,
			s.currencySvc.FormatMoney(loan.PrincipalAmount, loan.Currency)), "", "")

	return loan, nil
}

// generateAgreement renders the agreement PDF for an approved loan, stores
// it and records the path on the loan. PDF generation is best-effort; a
// failure never blocks the approval, it only means the email goes out
// without the attachment.
func (s *LoanService) generateAgreement(ctx context.Context, loan *models.Loan) []byte {
	buf, err := s.reportSvc.GenerateAgreementPDF(ctx, loan.ID)
	if err != nil {
		logger.Warn(fmt.Sprintf("Failed to generate agreement for loan %s: %v", loan.LoanNumber, err))
		return nil
	}

	pdfBytes := buf.Bytes()
	path, err := s.storage.UploadFromBytes(pdfBytes, fmt.Sprintf("loan_agreement_%s.pdf", loan.LoanNumber), "agreements")
	if err != nil {
		logger.Warn(fmt.Sprintf("Failed to store agreement for loan %s: %v", loan.LoanNumber, err))
		return pdfBytes
	}

	loan.AgreementPath = &path
	if err := s.repo.Update(ctx, loan); err != nil {
		logger.Warn(fmt.Sprintf("Failed to record agreement path for loan %s: %v", loan.LoanNumber, err))
	}
	return pdfBytes
}

// Reject declines a loan application with a reason.
func (s *LoanService) Reject(ctx context.Context, id uint, approverID uint, reason string) (*models.Loan, error) {
	loan, err := s.repo.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}

	fsm := statemachine.NewLoanFSM(loan)
	if err := fsm.Reject(ctx); err != nil {
		return nil, fmt.Errorf("cannot reject loan: %w", err)
	}

	loan.RejectionReason = &reason

	if err := s.repo.Update(ctx, loan); err != nil {
		return nil, err
	}

	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.emailSvc.SendLoanRejected(ctx, loan, reason)
	})

	if loan.OfficerID != nil {
		officerID := *loan.OfficerID
		s.worker.EnqueueAsync(func(ctx context.Context) error {
			return s.notificationSvc.NotifyUser(ctx, officerID,
				"Loan rejected",
				fmt.Sprintf("Loan %s was rejected: %s", loan.LoanNumber, reason),
				models.NotificationTypeLoanRejected)
		})
	}

	s.auditSvc.Log(ctx, approverID, "REJECT", "Loan", loan.ID,
		fmt.Sprintf("Loan %s rejected. Reason: %s", loan.LoanNumber, reason), "", "")

	return loan, nil
}

// Release disburses an approved loan from the main wallet and activates it.
// The full repayment amount becomes the opening balance.
func (s *LoanService) Release(ctx context.Context, id uint, actorID uint, releaseDate time.Time) (*models.Loan, error) {
	loan, err := s.repo.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}

	fsm := statemachine.NewLoanFSM(loan)
	if !fsm.Can("release") {
		return nil, fmt.Errorf("cannot release loan in %s state", loan.Status)
	}

	wallet, err := s.walletRepo.FindOrCreate(ctx, models.DefaultWalletName, loan.Currency)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	if err := s.walletRepo.Disburse(ctx, wallet.ID, loan.PrincipalAmount); err != nil {
		return nil, err
	}

	if err := fsm.Release(ctx); err != nil {
		return nil, fmt.Errorf("cannot release loan: %w", err)
	}

	if releaseDate.IsZero() {
		releaseDate = time.Now()
	}
	balance := loan.TotalRepayable()
	installment := balance / float64(loan.Duration)
	loan.ReleaseDate = &releaseDate
	loan.Balance = &balance
	loan.RepaymentAmount = &installment

	if err := s.repo.Update(ctx, loan); err != nil {
		return nil, err
	}

	firstDue := ""
	if next, err := s.scheduleSvc.NextPaymentDate(loan, releaseDate); err == nil && next != nil {
		firstDue = next.Format("2006-01-02")
	}

	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.emailSvc.SendLoanReleased(ctx, loan,
			s.currencySvc.FormatMoney(loan.PrincipalAmount, loan.Currency), firstDue)
	})

	if loan.OfficerID != nil {
		officerID := *loan.OfficerID
		s.worker.EnqueueAsync(func(ctx context.Context) error {
			return s.notificationSvc.NotifyUser(ctx, officerID,
				"Loan released",
				fmt.Sprintf("Loan %s has been disbursed to %s", loan.LoanNumber, loan.Borrower.FullName),
				models.NotificationTypeLoanReleased)
		})
	}

	s.auditSvc.Log(ctx, actorID, "RELEASE", "Loan", loan.ID,
		fmt.Sprintf("Loan %s released. Disbursed: %s, Opening balance: %s",
			loan.LoanNumber,
			s.currencySvc.FormatMoney(loan.PrincipalAmount, loan.Currency),
			s.currencySvc.FormatMoney(balance, loan.Currency)), "", "")

	return loan, nil
}

// Close settles a loan whose balance has reached zero.
func (s *LoanService) Close(ctx context.Context, id uint, actorID uint) (*models.Loan, error) {
	loan, err := s.repo.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}

	fsm := statemachine.NewLoanFSM(loan)
	if err := fsm.Close(ctx); err != nil {
		return nil, fmt.Errorf("cannot close loan: %w", err)
	}

	now := time.Now()
	loan.ClosedAt = &now

	if err := s.repo.Update(ctx, loan); err != nil {
		return nil, err
	}

	if loan.OfficerID != nil {
		officerID := *loan.OfficerID
		s.worker.EnqueueAsync(func(ctx context.Context) error {
			return s.notificationSvc.NotifyUser(ctx, officerID,
				"Loan settled",
				fmt.Sprintf("Loan %s has been fully repaid and closed", loan.LoanNumber),
				models.NotificationTypeLoanClosed)
		})
	}

	s.auditSvc.Log(ctx, actorID, "CLOSE", "Loan", loan.ID,
		fmt.Sprintf("Loan %s closed", loan.LoanNumber), "", "")

	return loan, nil
}

// MarkDefaulted flags an active loan the borrower has stopped servicing.
func (s *LoanService) MarkDefaulted(ctx context.Context, id uint, actorID uint, note string) (*models.Loan, error) {
	loan, err := s.repo.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}

	fsm := statemachine.NewLoanFSM(loan)
	if err := fsm.Default(ctx); err != nil {
		return nil, fmt.Errorf("cannot default loan: %w", err)
	}

	now := time.Now()
	loan.DefaultedAt = &now
	if note != "" {
		loan.Note = &note
	}

	if err := s.repo.Update(ctx, loan); err != nil {
		return nil, err
	}

	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.notificationSvc.NotifyAdmins(ctx,
			"Loan defaulted",
			fmt.Sprintf("Loan %s for %s has been marked as defaulted", loan.LoanNumber, loan.Borrower.FullName),
			models.NotificationTypeLoanDefaulted)
	})

	s.auditSvc.Log(ctx, actorID, "DEFAULT", "Loan", loan.ID,
		fmt.Sprintf("Loan %s marked defaulted. Note: %s", loan.LoanNumber, note), "", "")

	return loan, nil
}

// Reinstate returns a defaulted loan to active once the borrower resumes paying.
func (s *LoanService) Reinstate(ctx context.Context, id uint, actorID uint) (*models.Loan, error) {
	loan, err := s.repo.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}

	fsm := statemachine.NewLoanFSM(loan)
	if err := fsm.Reinstate(ctx); err != nil {
		return nil, fmt.Errorf("cannot reinstate loan: %w", err)
	}

	loan.DefaultedAt = nil

	if err := s.repo.Update(ctx, loan); err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, actorID, "REINSTATE", "Loan", loan.ID,
		fmt.Sprintf("Loan %s reinstated to active", loan.LoanNumber), "", "")

	return loan, nil
}

// Delete removes a loan application. Only applications that never reached
// disbursement can be deleted.
func (s *LoanService) Delete(ctx context.Context, id uint, actorID uint) error {
	loan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if loan.Status != models.LoanStatusProcessing && loan.Status != models.LoanStatusRejected {
		return ErrInvalidState
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.auditSvc.Log(ctx, actorID, "DELETE", "Loan", id,
		fmt.Sprintf("Loan %s deleted", loan.LoanNumber), "", "")

	return nil
}
