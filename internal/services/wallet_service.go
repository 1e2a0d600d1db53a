package services

import (
	"context"
	"errors"

	"github.com/zamfin/loanpilot-api/internal/models"
	"github.com/zamfin/loanpilot-api/internal/repository"
)

// WalletService exposes the organisation's cash position
type WalletService struct {
	repo     repository.WalletRepository
	auditSvc *AuditService
}

func NewWalletService(repo repository.WalletRepository, auditSvc *AuditService) *WalletService {
	return &WalletService{repo: repo, auditSvc: auditSvc}
}

func (s *WalletService) FindAll(ctx context.Context) ([]models.Wallet, error) {
	return s.repo.FindAll(ctx)
}

func (s *WalletService) FindByName(ctx context.Context, name string) (*models.Wallet, error) {
	return s.repo.FindByName(ctx, name)
}

// Deposit adds operating capital to a wallet, creating it if needed.
func (s *WalletService) Deposit(ctx context.Context, name, currency string, amount float64, actorID uint) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, errors.New("deposit amount must be greater than zero")
	}
	if name == "" {
		name = models.DefaultWalletName
	}

	wallet, err := s.repo.FindOrCreate(ctx, name, currency)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Deposit(ctx, wallet.ID, amount); err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, actorID, "DEPOSIT", "Wallet", wallet.ID,
		"Deposited funds into wallet "+wallet.Name, "", "")

	return s.repo.FindByName(ctx, name)
}
