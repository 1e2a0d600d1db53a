package repository

import (
	"context"
	"strings"

	"github.com/zamfin/loanpilot-api/internal/models"
	"gorm.io/gorm"
)

// RepaymentRepository defines the interface for repayment data access
type RepaymentRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Repayment, error)
	FindByLoan(ctx context.Context, loanID uint) ([]models.Repayment, error)
	Create(ctx context.Context, repayment *models.Repayment) error
	Update(ctx context.Context, repayment *models.Repayment) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, query *ListQuery) ([]models.Repayment, int64, error)
	FindByMonth(ctx context.Context, month, year int) ([]models.Repayment, error)
	CountByLoan(ctx context.Context, loanID uint) (int64, error)
	SumByLoan(ctx context.Context, loanID uint) (float64, error)
}

type repaymentRepository struct {
	db *gorm.DB
}

// NewRepaymentRepository creates a new repayment repository
func NewRepaymentRepository(db *gorm.DB) RepaymentRepository {
	return &repaymentRepository{db: db}
}

func (r *repaymentRepository) FindByID(ctx context.Context, id uint) (*models.Repayment, error) {
	var repayment models.Repayment
	err := r.db.WithContext(ctx).
		Preload("Loan.Borrower").
		Preload("RecordedBy").
		First(&repayment, id).Error
	if err != nil {
		return nil, err
	}
	return &repayment, nil
}

func (r *repaymentRepository) FindByLoan(ctx context.Context, loanID uint) ([]models.Repayment, error) {
	var repayments []models.Repayment
	err := r.db.WithContext(ctx).
		Preload("RecordedBy").
		Where("loan_id = ?", loanID).
		Order("paid_at ASC").
		Find(&repayments).Error
	return repayments, err
}

func (r *repaymentRepository) Create(ctx context.Context, repayment *models.Repayment) error {
	return r.db.WithContext(ctx).Create(repayment).Error
}

func (r *repaymentRepository) Update(ctx context.Context, repayment *models.Repayment) error {
	return r.db.WithContext(ctx).Save(repayment).Error
}

func (r *repaymentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Repayment{}, id).Error
}

func (r *repaymentRepository) List(ctx context.Context, query *ListQuery) ([]models.Repayment, int64, error) {
	var repayments []models.Repayment
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Repayment{})

	if query.Filters["method"] != "" {
		db = db.Where("repayments.method = ?", query.Filters["method"])
	}

	// Apply date filters
	if val, ok := query.Filters["start_date"]; ok && val != "" {
		db = db.Where("repayments.paid_at >= ?", val)
	}
	if val, ok := query.Filters["end_date"]; ok && val != "" {
		endDate := val
		if len(endDate) == 10 {
			endDate += " 23:59:59"
		}
		db = db.Where("repayments.paid_at <= ?", endDate)
	}

	// Apply search across borrower and loan fields
	if query.Search != "" {
		term := "%" + query.Search + "%"
		db = db.Joins("JOIN loans ON loans.id = repayments.loan_id").
			Joins("JOIN borrowers ON borrowers.id = loans.borrower_id").
			Where("borrowers.full_name ILIKE ? OR borrowers.phone ILIKE ? OR loans.loan_number ILIKE ? OR COALESCE(repayments.reference, '') ILIKE ?",
				term, term, term, term)
	}

	// Clone the session for count to avoid affecting the main query
	countDB := db.Session(&gorm.Session{})
	if err := countDB.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply sorting
	if query.SortBy != "" {
		field := query.SortBy
		switch field {
		case "paid_at", "amount", "created_at":
			field = "repayments." + field
		}
		order := field
		if strings.ToLower(query.SortDir) == "desc" {
			order += " DESC"
		} else {
			order += " ASC"
		}
		db = db.Order(order)
	} else {
		db = db.Order("repayments.paid_at DESC")
	}

	// Apply pagination
	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.
		Select("repayments.*").
		Preload("Loan.Borrower").
		Preload("RecordedBy").
		Find(&repayments).Error

	return repayments, total, err
}

func (r *repaymentRepository) FindByMonth(ctx context.Context, month, year int) ([]models.Repayment, error) {
	var repayments []models.Repayment
	err := r.db.WithContext(ctx).
		Preload("Loan.Borrower").
		Preload("RecordedBy").
		Where("EXTRACT(MONTH FROM paid_at) = ? AND EXTRACT(YEAR FROM paid_at) = ?", month, year).
		Order("paid_at ASC").
		Find(&repayments).Error
	return repayments, err
}

func (r *repaymentRepository) CountByLoan(ctx context.Context, loanID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Repayment{}).
		Where("loan_id = ?", loanID).
		Count(&count).Error
	return count, err
}

func (r *repaymentRepository) SumByLoan(ctx context.Context, loanID uint) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&models.Repayment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("loan_id = ?", loanID).
		Scan(&total).Error
	return total, err
}
