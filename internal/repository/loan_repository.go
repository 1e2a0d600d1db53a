package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/zamfin/loanpilot-api/internal/models"
	"gorm.io/gorm"
)

// LoanRepository defines the interface for loan data access
type LoanRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Loan, error)
	FindByIDWithDetails(ctx context.Context, id uint) (*models.Loan, error)
	FindByNumber(ctx context.Context, loanNumber string) (*models.Loan, error)
	FindByBorrower(ctx context.Context, borrowerID uint) ([]models.Loan, error)
	Create(ctx context.Context, loan *models.Loan) error
	Update(ctx context.Context, loan *models.Loan) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, query *LoanQuery) ([]models.Loan, int64, error)
	FindOutstanding(ctx context.Context) ([]models.Loan, error)
	FindUnscored(ctx context.Context, limit int) ([]models.Loan, error)
	NextSequence(ctx context.Context, year int) (int, error)
	GetStats(ctx context.Context) (*LoanStats, error)
	GetPortfolioStats(ctx context.Context) (*PortfolioStats, error)
}

// LoanQuery extends ListQuery with loan-specific filters
type LoanQuery struct {
	*ListQuery
	UserID     uint
	IsAdmin    bool
	Status     string
	BorrowerID uint
}

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) FindByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).First(&loan, id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) FindByIDWithDetails(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	// Borrower, Officer and ApprovedByUser come in one query via Joins;
	// Repayments are one-to-many so they stay a Preload.
	err := r.db.WithContext(ctx).
		Joins("Borrower").
		Joins("Officer").
		Joins("ApprovedByUser").
		Preload("Repayments", func(db *gorm.DB) *gorm.DB {
			return db.Order("paid_at ASC")
		}).
		First(&loan, id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) FindByNumber(ctx context.Context, loanNumber string) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Where("loan_number = ?", loanNumber).
		Preload("Borrower").
		First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) FindByBorrower(ctx context.Context, borrowerID uint) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("borrower_id = ?", borrowerID).
		Preload("Repayments").
		Order("created_at DESC").
		Find(&loans).Error
	return loans, err
}

func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

func (r *loanRepository) Update(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Save(loan).Error
}

func (r *loanRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Loan{}, id).Error
}

func (r *loanRepository) List(ctx context.Context, query *LoanQuery) ([]models.Loan, int64, error) {
	var loans []models.Loan
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Loan{})

	// Officers only see their own portfolio
	if !query.IsAdmin && query.UserID > 0 {
		db = db.Where("loans.officer_id = ?", query.UserID)
	}

	// Apply status filter (single or multiple via status_in)
	if query.Filters != nil {
		if val, ok := query.Filters["status_in"]; ok && val != "" {
			statuses := strings.Split(val, ",")
			for i, s := range statuses {
				statuses[i] = strings.TrimSpace(s)
			}
			if len(statuses) > 0 {
				db = db.Where("loans.status IN ?", statuses)
			}
		}
	}
	if query.Filters == nil || query.Filters["status_in"] == "" {
		if query.Status != "" {
			db = db.Where("loans.status = ?", query.Status)
		}
	}

	if query.BorrowerID > 0 {
		db = db.Where("loans.borrower_id = ?", query.BorrowerID)
	}

	// Apply date filters
	if query.Filters != nil {
		if val, ok := query.Filters["released_from"]; ok && val != "" {
			db = db.Where("loans.release_date >= ?", val)
		}
		if val, ok := query.Filters["released_to"]; ok && val != "" {
			db = db.Where("loans.release_date <= ?", val)
		}
		if val, ok := query.Filters["start_date"]; ok && val != "" {
			db = db.Where("loans.created_at >= ?", val)
		}
		if val, ok := query.Filters["end_date"]; ok && val != "" {
			// Include the full day if only a date is provided
			if len(val) == 10 { // YYYY-MM-DD
				val += " 23:59:59"
			}
			db = db.Where("loans.created_at <= ?", val)
		}
	}

	// Apply search (JOIN only for filtering; associations loaded via Preload below)
	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Joins("LEFT JOIN borrowers ON borrowers.id = loans.borrower_id").
			Where("borrowers.full_name ILIKE ? OR borrowers.phone ILIKE ? OR borrowers.nrc ILIKE ? OR loans.loan_number ILIKE ?",
				search, search, search, search)
	}

	// Count using a separate session so the main query is not altered by Count()
	countDB := db.Session(&gorm.Session{})
	if err := countDB.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply sorting
	if query.SortBy != "" {
		order := query.SortBy
		if query.SortDir == "desc" {
			order += " DESC"
		}
		db = db.Order(order)
	} else {
		db = db.Order("loans.created_at DESC")
	}

	// Apply pagination
	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.
		Preload("Borrower").
		Preload("Officer").
		Find(&loans).Error
	if err != nil {
		return nil, 0, err
	}

	return loans, total, nil
}

// FindOutstanding returns loans still being repaid, with borrower loaded.
// Used by the overdue check and reminder jobs.
func (r *loanRepository) FindOutstanding(ctx context.Context) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("loans.status IN ?", []string{models.LoanStatusActive, models.LoanStatusDefaulted}).
		Preload("Borrower").
		Order("loans.release_date ASC").
		Find(&loans).Error
	return loans, err
}

// FindUnscored returns processing loans that have no AI assessment yet.
func (r *loanRepository) FindUnscored(ctx context.Context, limit int) ([]models.Loan, error) {
	var loans []models.Loan
	db := r.db.WithContext(ctx).
		Where("loans.status = ? AND loans.ai_scored_at IS NULL", models.LoanStatusProcessing).
		Preload("Borrower").
		Order("loans.created_at ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&loans).Error
	return loans, err
}

// NextSequence returns the next per-year sequence used to build loan numbers.
func (r *loanRepository) NextSequence(ctx context.Context, year int) (int, error) {
	var count int64
	prefix := fmt.Sprintf("LN-%d-%%", year)
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("loan_number LIKE ?", prefix).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count) + 1, nil
}

// LoanStats holds the count of loans by status
type LoanStats struct {
	Total      int64 `json:"total"`
	Processing int64 `json:"processing"`
	Approved   int64 `json:"approved"`
	Rejected   int64 `json:"rejected"`
	Active     int64 `json:"active"`
	Closed     int64 `json:"closed"`
	Defaulted  int64 `json:"defaulted"`
}

func (r *loanRepository) GetStats(ctx context.Context) (*LoanStats, error) {
	stats := &LoanStats{}

	rows, err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Select("status, count(*) as count").
		Group("status").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var total int64
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		total += count
		switch status {
		case models.LoanStatusProcessing:
			stats.Processing = count
		case models.LoanStatusApproved:
			stats.Approved = count
		case models.LoanStatusRejected:
			stats.Rejected = count
		case models.LoanStatusActive:
			stats.Active = count
		case models.LoanStatusClosed:
			stats.Closed = count
		case models.LoanStatusDefaulted:
			stats.Defaulted = count
		}
	}
	stats.Total = total

	return stats, nil
}

// PortfolioStats holds aggregate amounts across the loan book
type PortfolioStats struct {
	TotalDisbursed     float64 `json:"total_disbursed"`
	TotalOutstanding   float64 `json:"total_outstanding"`
	CollectedThisMonth float64 `json:"collected_this_month"`
	DefaultedAmount    float64 `json:"defaulted_amount"`
}

func (r *loanRepository) GetPortfolioStats(ctx context.Context) (*PortfolioStats, error) {
	stats := &PortfolioStats{}

	// 1. Principal released to date
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Select("COALESCE(SUM(principal_amount), 0)").
		Where("loans.release_date IS NOT NULL").
		Scan(&stats.TotalDisbursed).Error
	if err != nil {
		return nil, err
	}

	// 2. Balance still owed on open loans
	err = r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Select("COALESCE(SUM(balance), 0)").
		Where("loans.status IN ?", []string{models.LoanStatusActive, models.LoanStatusDefaulted}).
		Scan(&stats.TotalOutstanding).Error
	if err != nil {
		return nil, err
	}

	// 3. Repayments collected in the current month
	err = r.db.WithContext(ctx).
		Model(&models.Repayment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("EXTRACT(MONTH FROM paid_at) = EXTRACT(MONTH FROM CURRENT_DATE) AND EXTRACT(YEAR FROM paid_at) = EXTRACT(YEAR FROM CURRENT_DATE)").
		Scan(&stats.CollectedThisMonth).Error
	if err != nil {
		return nil, err
	}

	// 4. Balance tied up in defaulted loans
	err = r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Select("COALESCE(SUM(balance), 0)").
		Where("loans.status = ?", models.LoanStatusDefaulted).
		Scan(&stats.DefaultedAmount).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}
