package repository

import (
	"context"
	"errors"

	"github.com/zamfin/loanpilot-api/internal/models"
	"gorm.io/gorm"
)

// BorrowerRepository defines the interface for borrower data access
type BorrowerRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Borrower, error)
	FindByIDWithLoans(ctx context.Context, id uint) (*models.Borrower, error)
	FindByNRC(ctx context.Context, nrc string) (*models.Borrower, error)
	Create(ctx context.Context, borrower *models.Borrower) error
	Update(ctx context.Context, borrower *models.Borrower) error
	SoftDelete(ctx context.Context, id uint) error
	Restore(ctx context.Context, id uint) error
	List(ctx context.Context, query *ListQuery) ([]models.Borrower, int64, error)
	HasOutstandingLoans(ctx context.Context, borrowerID uint) (bool, error)
	UpdateCreditScore(ctx context.Context, borrowerID uint, score int) error
}

type borrowerRepository struct {
	db *gorm.DB
}

// NewBorrowerRepository creates a new borrower repository
func NewBorrowerRepository(db *gorm.DB) BorrowerRepository {
	return &borrowerRepository{db: db}
}

func (r *borrowerRepository) FindByID(ctx context.Context, id uint) (*models.Borrower, error) {
	var borrower models.Borrower
	err := r.db.WithContext(ctx).
		Where("discarded_at IS NULL").
		First(&borrower, id).Error
	if err != nil {
		return nil, err
	}
	return &borrower, nil
}

func (r *borrowerRepository) FindByIDWithLoans(ctx context.Context, id uint) (*models.Borrower, error) {
	var borrower models.Borrower
	err := r.db.WithContext(ctx).
		Where("discarded_at IS NULL").
		Preload("Loans", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Preload("Creator").
		First(&borrower, id).Error
	if err != nil {
		return nil, err
	}
	return &borrower, nil
}

func (r *borrowerRepository) FindByNRC(ctx context.Context, nrc string) (*models.Borrower, error) {
	var borrower models.Borrower
	err := r.db.WithContext(ctx).
		Where("nrc = ? AND discarded_at IS NULL", nrc).
		First(&borrower).Error
	if err != nil {
		return nil, err
	}
	return &borrower, nil
}

func (r *borrowerRepository) Create(ctx context.Context, borrower *models.Borrower) error {
	if err := r.db.WithContext(ctx).Create(borrower).Error; err != nil {
		if isDuplicateKeyError(err, "borrowers_nrc_key") {
			return errors.New("a borrower with this NRC already exists")
		}
		return err
	}
	return nil
}

func (r *borrowerRepository) Update(ctx context.Context, borrower *models.Borrower) error {
	return r.db.WithContext(ctx).Save(borrower).Error
}

func (r *borrowerRepository) SoftDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Borrower{}).
		Where("id = ?", id).
		Update("discarded_at", gorm.Expr("NOW()")).Error
}

func (r *borrowerRepository) Restore(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Borrower{}).
		Where("id = ?", id).
		Update("discarded_at", nil).Error
}

func (r *borrowerRepository) List(ctx context.Context, query *ListQuery) ([]models.Borrower, int64, error) {
	var borrowers []models.Borrower
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Borrower{})

	switch query.Filters["status"] {
	case "archived":
		db = db.Where("discarded_at IS NOT NULL")
	case "all":
	default:
		db = db.Where("discarded_at IS NULL")
	}

	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Where("full_name ILIKE ? OR phone ILIKE ? OR nrc ILIKE ? OR COALESCE(email, '') ILIKE ?",
			search, search, search, search)
	}

	if query.Filters["employer"] != "" {
		db = db.Where("employer ILIKE ?", "%"+query.Filters["employer"]+"%")
	}

	db.Count(&total)

	if query.SortBy != "" {
		order := query.SortBy
		if query.SortDir == "desc" {
			order += " DESC"
		}
		db = db.Order(order)
	} else {
		db = db.Order("created_at DESC")
	}

	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	err := db.Preload("Creator").Find(&borrowers).Error
	return borrowers, total, err
}

func (r *borrowerRepository) HasOutstandingLoans(ctx context.Context, borrowerID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("borrower_id = ? AND status IN ?", borrowerID,
			[]string{models.LoanStatusActive, models.LoanStatusDefaulted}).
		Count(&count).Error
	return count > 0, err
}

func (r *borrowerRepository) UpdateCreditScore(ctx context.Context, borrowerID uint, score int) error {
	return r.db.WithContext(ctx).
		Model(&models.Borrower{}).
		Where("id = ?", borrowerID).
		Update("credit_score", score).Error
}
