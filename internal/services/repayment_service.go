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
	"github.com/zamfin/loanpilot-api/pkg/logger"
)

type RepaymentService struct {
	repo            repository.RepaymentRepository
	loanRepo        repository.LoanRepository
	walletRepo      repository.WalletRepository
	notificationSvc *NotificationService
	emailSvc        *EmailService
	auditSvc        *AuditService
	worker          *jobs.Worker
	scheduleSvc     *ScheduleService
	currencySvc     *CurrencyService
	reportSvc       *ReportService
}

func NewRepaymentService(
	repo repository.RepaymentRepository,
	loanRepo repository.LoanRepository,
	walletRepo repository.WalletRepository,
	notificationSvc *NotificationService,
	emailSvc *EmailService,
	auditSvc *AuditService,
	worker *jobs.Worker,
	scheduleSvc *ScheduleService,
	currencySvc *CurrencyService,
	reportSvc *ReportService,
) *RepaymentService {
	return &RepaymentService{
		repo:            repo,
		loanRepo:        loanRepo,
		walletRepo:      walletRepo,
		notificationSvc: notificationSvc,
		emailSvc:        emailSvc,
		auditSvc:        auditSvc,
		worker:          worker,
		scheduleSvc:     scheduleSvc,
		currencySvc:     currencySvc,
		reportSvc:       reportSvc,
	}
}

func (s *RepaymentService) FindByID(ctx context.Context, id uint) (*models.Repayment, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *RepaymentService) FindByLoan(ctx context.Context, loanID uint) ([]models.Repayment, error) {
	return s.repo.FindByLoan(ctx, loanID)
}

func (s *RepaymentService) List(ctx context.Context, query *repository.ListQuery) ([]models.Repayment, int64, error) {
	return s.repo.List(ctx, query)
}

// Record posts a repayment against an outstanding loan. The loan balance
// drops by the paid amount, cash flows into the main wallet, and the loan
// closes automatically once the balance reaches zero.
func (s *RepaymentService) Record(ctx context.Context, repayment *models.Repayment, actorID uint, ip, userAgent string) (*models.Repayment, error) {
	if repayment.Amount <= 0 {
		return nil, errors.New("repayment amount must be greater than zero")
	}
	if repayment.Method == "" {
		repayment.Method = models.RepaymentMethodCash
	}
	if !models.ValidRepaymentMethod(repayment.Method) {
		return nil, fmt.Errorf("invalid repayment method: %s", repayment.Method)
	}

	loan, err := s.loanRepo.FindByIDWithDetails(ctx, repayment.LoanID)
	if err != nil {
		return nil, err
	}
	if !loan.IsOutstanding() {
		return nil, fmt.Errorf("cannot record repayment on a %s loan", loan.Status)
	}
	if loan.Balance == nil {
		return nil, errors.New("loan has no opening balance")
	}

	if repayment.PaidAt.IsZero() {
		repayment.PaidAt = time.Now()
	}

	newBalance := *loan.Balance - repayment.Amount
	repayment.BalanceAfter = newBalance
	repayment.RecordedByUserID = &actorID

	if err := s.repo.Create(ctx, repayment); err != nil {
		return nil, err
	}

	loan.Balance = &newBalance
	if err := s.loanRepo.Update(ctx, loan); err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.FindOrCreate(ctx, models.DefaultWalletName, loan.Currency)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	if err := s.walletRepo.Collect(ctx, wallet.ID, repayment.Amount); err != nil {
		return nil, err
	}

	closed := false
	if newBalance <= 0 {
		fsm := statemachine.NewLoanFSM(loan)
		if err := fsm.Close(ctx); err == nil {
			now := time.Now()
			loan.ClosedAt = &now
			if err := s.loanRepo.Update(ctx, loan); err != nil {
				return nil, err
			}
			closed = true
		}
	}

	repayment.Loan = *loan
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		// Receipt PDF is best-effort; the confirmation still goes out without it
		var receiptPDF []byte
		if buf, err := s.reportSvc.GenerateReceiptPDF(ctx, repayment.ID); err != nil {
			logger.Warn(fmt.Sprintf("Failed to generate receipt for repayment %d: %v", repayment.ID, err))
		} else {
			receiptPDF = buf.Bytes()
		}
		return s.emailSvc.SendRepaymentReceipt(ctx, repayment,
			s.currencySvc.FormatMoney(repayment.Amount, loan.Currency),
			s.currencySvc.FormatMoney(displayBalance(newBalance), loan.Currency),
			receiptPDF)
	})

	if closed && loan.OfficerID != nil {
		officerID := *loan.OfficerID
		s.worker.EnqueueAsync(func(ctx context.Context) error {
			return s.notificationSvc.NotifyUser(ctx, officerID,
				"Loan settled",
				fmt.Sprintf("Loan %s has been fully repaid and closed", loan.LoanNumber),
				models.NotificationTypeLoanClosed)
		})
	}

	s.auditSvc.Log(ctx, actorID, "RECORD", "Repayment", repayment.ID,
		fmt.Sprintf("Repayment of %s recorded on loan %s via %s. Balance: %s",
			s.currencySvc.FormatMoney(repayment.Amount, loan.Currency),
			loan.LoanNumber, repayment.Method,
			s.currencySvc.FormatMoney(displayBalance(newBalance), loan.Currency)), ip, userAgent)

	return repayment, nil
}

// Reverse deletes a mistakenly recorded repayment and restores the loan
// balance. A loan the reversal leaves owing again is reopened.
func (s *RepaymentService) Reverse(ctx context.Context, id uint, actorID uint, reason, ip, userAgent string) error {
	repayment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	loan, err := s.loanRepo.FindByID(ctx, repayment.LoanID)
	if err != nil {
		return err
	}
	if loan.Balance == nil {
		return errors.New("loan has no balance to restore")
	}

	restored := *loan.Balance + repayment.Amount
	loan.Balance = &restored

	if loan.Status == models.LoanStatusClosed && restored > 0 {
		fsm := statemachine.NewLoanFSM(loan)
		if err := fsm.Reopen(ctx); err != nil {
			return err
		}
		loan.ClosedAt = nil
	}

	if err := s.loanRepo.Update(ctx, loan); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	wallet, err := s.walletRepo.FindOrCreate(ctx, models.DefaultWalletName, loan.Currency)
	if err != nil {
		return fmt.Errorf("failed to load wallet: %w", err)
	}
	if err := s.walletRepo.Collect(ctx, wallet.ID, -repayment.Amount); err != nil {
		return err
	}

	s.auditSvc.Log(ctx, actorID, "REVERSE", "Repayment", id,
		fmt.Sprintf("Repayment of %s on loan %s reversed. Reason: %s",
			s.currencySvc.FormatMoney(repayment.Amount, loan.Currency),
			loan.LoanNumber, reason), ip, userAgent)

	return nil
}

// UpdateReceiptPath stores the path of an uploaded receipt document.
func (s *RepaymentService) UpdateReceiptPath(ctx context.Context, id uint, path string) error {
	repayment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	repayment.ReceiptPath = &path
	return s.repo.Update(ctx, repayment)
}

// CheckOverdueLoans scans outstanding loans for installments past their
// due date and notifies the assigned officers. Intended to run hourly.
func (s *RepaymentService) CheckOverdueLoans(ctx context.Context) error {
	loans, err := s.loanRepo.FindOutstanding(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	flagged := 0
	for i := range loans {
		loan := &loans[i]
		overdue, err := s.scheduleSvc.OverdueInstallments(loan, now)
		if err != nil {
			logger.Warn(fmt.Sprintf("[Overdue check] Failed to compute schedule for loan %s: %v", loan.LoanNumber, err))
			continue
		}
		if len(overdue) == 0 {
			continue
		}

		flagged++
		if loan.OfficerID != nil {
			s.notificationSvc.NotifyUser(ctx, *loan.OfficerID,
				"Overdue loan",
				fmt.Sprintf("Loan %s for %s has %d overdue installment(s)",
					loan.LoanNumber, loan.Borrower.FullName, len(overdue)),
				models.NotificationTypeLoanOverdue)
		}
	}

	logger.Info(fmt.Sprintf("[Overdue check] Flagged %d of %d outstanding loan(s)", flagged, len(loans)))
	return nil
}

// SendDailyOverdueReminderEmails emails each borrower one summary of their
// overdue installments. Intended to run once per day.
func (s *RepaymentService) SendDailyOverdueReminderEmails(ctx context.Context) error {
	loans, err := s.loanRepo.FindOutstanding(ctx)
	if err != nil {
		return fmt.Errorf("find outstanding loans: %w", err)
	}

	now := time.Now()

	type borrowerOverdue struct {
		borrower *models.Borrower
		items    []OverdueLoanData
	}
	byBorrower := make(map[uint]*borrowerOverdue)

	for i := range loans {
		loan := &loans[i]
		overdue, err := s.scheduleSvc.OverdueInstallments(loan, now)
		if err != nil {
			continue
		}
		for _, inst := range overdue {
			entry := byBorrower[loan.BorrowerID]
			if entry == nil {
				entry = &borrowerOverdue{borrower: &loan.Borrower}
				byBorrower[loan.BorrowerID] = entry
			}
			entry.items = append(entry.items, OverdueLoanData{
				LoanNumber: loan.LoanNumber,
				Amount:     s.currencySvc.FormatMoney(inst.PaymentAmount, loan.Currency),
				DueDate:    inst.PaymentDate.Format("2006-01-02"),
			})
		}
	}

	sent := 0
	for borrowerID, entry := range byBorrower {
		if err := s.emailSvc.SendOverdueReminder(ctx, entry.borrower, entry.items); err != nil {
			logger.Warn(fmt.Sprintf("[Daily reminder] Failed to send overdue email to borrower %d: %v", borrowerID, err))
			continue
		}
		sent++
	}

	logger.Info(fmt.Sprintf("[Daily reminder] Sent %d overdue reminder email(s)", sent))
	return nil
}

// CollectionPoint is one month of collections for the revenue chart.
type CollectionPoint struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// GetMonthlyCollections sums recorded repayments per day for one month.
func (s *RepaymentService) GetMonthlyCollections(ctx context.Context, month, year int) ([]CollectionPoint, error) {
	repayments, err := s.repo.FindByMonth(ctx, month, year)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]float64)
	for _, r := range repayments {
		day := r.PaidAt.Format("2006-01-02")
		byDay[day] += r.Amount
	}

	daysInMonth := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	points := make([]CollectionPoint, 0, daysInMonth)
	for d := 1; d <= daysInMonth; d++ {
		day := time.Date(year, time.Month(month), d, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		points = append(points, CollectionPoint{Date: day, Amount: byDay[day]})
	}
	return points, nil
}

// displayBalance floors a carried balance at zero for user-facing output.
func displayBalance(balance float64) float64 {
	if balance < 0 {
		return 0
	}
	return balance
}
