package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/zamfin/loanpilot-api/internal/jobs"
	"github.com/zamfin/loanpilot-api/internal/models"
	"github.com/zamfin/loanpilot-api/internal/repository"
)

type BorrowerService struct {
	repo     repository.BorrowerRepository
	loanRepo repository.LoanRepository
	imageSvc *ImageService
	auditSvc *AuditService
	worker   *jobs.Worker
}

func NewBorrowerService(
	repo repository.BorrowerRepository,
	loanRepo repository.LoanRepository,
	imageSvc *ImageService,
	auditSvc *AuditService,
	worker *jobs.Worker,
) *BorrowerService {
	return &BorrowerService{
		repo:     repo,
		loanRepo: loanRepo,
		imageSvc: imageSvc,
		auditSvc: auditSvc,
		worker:   worker,
	}
}

func (s *BorrowerService) FindByID(ctx context.Context, id uint) (*models.Borrower, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *BorrowerService) FindByIDWithLoans(ctx context.Context, id uint) (*models.Borrower, error) {
	return s.repo.FindByIDWithLoans(ctx, id)
}

func (s *BorrowerService) FindByNRC(ctx context.Context, nrc string) (*models.Borrower, error) {
	return s.repo.FindByNRC(ctx, nrc)
}

func (s *BorrowerService) List(ctx context.Context, query *repository.ListQuery) ([]models.Borrower, int64, error) {
	return s.repo.List(ctx, query)
}

// Create registers a new borrower. The NRC must be unique.
func (s *BorrowerService) Create(ctx context.Context, borrower *models.Borrower, actorID uint) error {
	if borrower.FullName == "" {
		return errors.New("full name is required")
	}
	if borrower.NRC == "" {
		return errors.New("NRC is required")
	}
	if borrower.Phone == "" {
		return errors.New("phone number is required")
	}

	borrower.CreatedBy = &actorID

	if err := s.repo.Create(ctx, borrower); err != nil {
		return err
	}

	s.auditSvc.Log(ctx, actorID, "CREATE", "Borrower", borrower.ID,
		fmt.Sprintf("Borrower %s registered", borrower.FullName), "", "")

	return nil
}

func (s *BorrowerService) Update(ctx context.Context, borrower *models.Borrower, actorID uint) error {
	if err := s.repo.Update(ctx, borrower); err != nil {
		return err
	}

	s.auditSvc.Log(ctx, actorID, "UPDATE", "Borrower", borrower.ID,
		fmt.Sprintf("Borrower %s updated", borrower.FullName), "", "")

	return nil
}

// Archive soft-deletes a borrower. Borrowers with outstanding loans
// cannot be archived.
func (s *BorrowerService) Archive(ctx context.Context, id uint, actorID uint) error {
	borrower, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	outstanding, err := s.repo.HasOutstandingLoans(ctx, id)
	if err != nil {
		return err
	}
	if outstanding {
		return errors.New("cannot archive a borrower with outstanding loans")
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.auditSvc.Log(ctx, actorID, "ARCHIVE", "Borrower", id,
		fmt.Sprintf("Borrower %s archived", borrower.FullName), "", "")

	return nil
}

// Restore brings an archived borrower back.
func (s *BorrowerService) Restore(ctx context.Context, id uint, actorID uint) error {
	if err := s.repo.Restore(ctx, id); err != nil {
		return err
	}

	s.auditSvc.Log(ctx, actorID, "RESTORE", "Borrower", id, "Borrower restored", "", "")

	return nil
}

// UploadPhoto stores a borrower ID photo and saves its path.
func (s *BorrowerService) UploadPhoto(ctx context.Context, id uint, file multipart.File, header *multipart.FileHeader, actorID uint) (string, error) {
	borrower, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}

	photoPath, _, err := s.imageSvc.ProcessAndSavePhoto(file, header)
	if err != nil {
		return "", err
	}

	borrower.PhotoPath = &photoPath
	if err := s.repo.Update(ctx, borrower); err != nil {
		return "", err
	}

	s.auditSvc.Log(ctx, actorID, "UPLOAD_PHOTO", "Borrower", id,
		fmt.Sprintf("Photo uploaded for borrower %s", borrower.FullName), "", "")

	return photoPath, nil
}

// GetLoans returns all loans for one borrower.
func (s *BorrowerService) GetLoans(ctx context.Context, borrowerID uint) ([]models.Loan, error) {
	if _, err := s.repo.FindByID(ctx, borrowerID); err != nil {
		return nil, err
	}
	return s.loanRepo.FindByBorrower(ctx, borrowerID)
}
