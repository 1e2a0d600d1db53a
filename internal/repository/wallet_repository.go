package repository

import (
	"context"
	"errors"

	"github.com/zamfin/loanpilot-api/internal/models"
	"gorm.io/gorm"
)

// ErrInsufficientFunds is returned when a disbursement exceeds the wallet balance
var ErrInsufficientFunds = errors.New("wallet has insufficient funds")

// WalletRepository defines the interface for wallet data access
type WalletRepository interface {
	FindByName(ctx context.Context, name string) (*models.Wallet, error)
	FindOrCreate(ctx context.Context, name, currency string) (*models.Wallet, error)
	FindAll(ctx context.Context) ([]models.Wallet, error)
	Deposit(ctx context.Context, walletID uint, amount float64) error
	Disburse(ctx context.Context, walletID uint, amount float64) error
	Collect(ctx context.Context, walletID uint, amount float64) error
}

type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) FindByName(ctx context.Context, name string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) FindOrCreate(ctx context.Context, name, currency string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	wallet = models.Wallet{Name: name, Currency: currency}
	if err := r.db.WithContext(ctx).Create(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) FindAll(ctx context.Context) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := r.db.WithContext(ctx).Order("name ASC").Find(&wallets).Error
	return wallets, err
}

func (r *walletRepository) Deposit(ctx context.Context, walletID uint, amount float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
}

// Disburse debits the wallet for a loan release. The balance check and
// debit happen in one transaction with a row lock so concurrent releases
// cannot overdraw.
func (r *walletRepository) Disburse(ctx context.Context, walletID uint, amount float64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet models.Wallet
		if err := tx.Set("gorm:query_option", "FOR UPDATE").First(&wallet, walletID).Error; err != nil {
			return err
		}
		if !wallet.CanDisburse(amount) {
			return ErrInsufficientFunds
		}
		return tx.Model(&wallet).Updates(map[string]interface{}{
			"balance":         gorm.Expr("balance - ?", amount),
			"total_disbursed": gorm.Expr("total_disbursed + ?", amount),
		}).Error
	})
}

// Collect credits the wallet with a repayment.
func (r *walletRepository) Collect(ctx context.Context, walletID uint, amount float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]interface{}{
			"balance":         gorm.Expr("balance + ?", amount),
			"total_collected": gorm.Expr("total_collected + ?", amount),
		}).Error
}
