package services

import (
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zamfin/loanpilot-api/internal/models"
	"github.com/zamfin/loanpilot-api/internal/repository"
)

// Mock LoanRepository
type mockLoanRepository struct {
	repository.LoanRepository
	mockList                func(ctx context.Context, query *repository.LoanQuery) ([]models.Loan, int64, error)
	mockFindOutstanding     func(ctx context.Context) ([]models.Loan, error)
	mockFindByIDWithDetails func(ctx context.Context, id uint) (*models.Loan, error)
}

func (m *mockLoanRepository) List(ctx context.Context, query *repository.LoanQuery) ([]models.Loan, int64, error) {
	if m.mockList != nil {
		return m.mockList(ctx, query)
	}
	return nil, 0, nil
}

func (m *mockLoanRepository) FindOutstanding(ctx context.Context) ([]models.Loan, error) {
	if m.mockFindOutstanding != nil {
		return m.mockFindOutstanding(ctx)
	}
	return nil, nil
}

func (m *mockLoanRepository) FindByIDWithDetails(ctx context.Context, id uint) (*models.Loan, error) {
	if m.mockFindByIDWithDetails != nil {
		return m.mockFindByIDWithDetails(ctx, id)
	}
	return nil, nil
}

// Mock RepaymentRepository
type mockRepaymentRepository struct {
	repository.RepaymentRepository
	mockList     func(ctx context.Context, query *repository.ListQuery) ([]models.Repayment, int64, error)
	mockFindByID func(ctx context.Context, id uint) (*models.Repayment, error)
}

func (m *mockRepaymentRepository) List(ctx context.Context, query *repository.ListQuery) ([]models.Repayment, int64, error) {
	if m.mockList != nil {
		return m.mockList(ctx, query)
	}
	return nil, 0, nil
}

func (m *mockRepaymentRepository) FindByID(ctx context.Context, id uint) (*models.Repayment, error) {
	if m.mockFindByID != nil {
		return m.mockFindByID(ctx, id)
	}
	return nil, nil
}

func TestGenerateLoanBookCSV(t *testing.T) {
	mockRepo := &mockLoanRepository{}
	currencySvc := NewCurrencyService("ZMW")
	service := NewReportService(mockRepo, nil, nil, nil, currencySvc)

	release := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	balance := 1320.0
	mockRepo.mockList = func(ctx context.Context, query *repository.LoanQuery) ([]models.Loan, int64, error) {
		loans := []models.Loan{
			{
				ID:              1,
				LoanNumber:      "LN-2025-0001",
				PrincipalAmount: 1200,
				InterestRate:    10,
				Duration:        12,
				DurationUnit:    models.DurationUnitMonth,
				Status:          models.LoanStatusActive,
				ReleaseDate:     &release,
				Balance:         &balance,
				Borrower: models.Borrower{
					ID:       10,
					FullName: "Chanda Mwila",
					NRC:      "123456/78/9",
				},
				Officer: &models.User{
					ID:       5,
					FullName: "Grace Tembo",
				},
			},
		}
		return loans, int64(len(loans)), nil
	}

	buf, err := service.GenerateLoanBookCSV(context.Background(), "", "")
	assert.NoError(t, err)
	assert.NotNil(t, buf)

	reader := csv.NewReader(buf)
	records, err := reader.ReadAll()
	assert.NoError(t, err)

	expectedHeader := []string{
		"Loan Number", "Borrower", "NRC", "Principal", "Interest Rate",
		"Term", "Status", "Release Date", "Balance", "Total Paid", "Officer",
	}
	assert.Equal(t, expectedHeader, records[0])

	row := records[1]
	assert.Equal(t, "LN-2025-0001", row[0])
	assert.Equal(t, "Chanda Mwila", row[1])
	assert.Equal(t, "123456/78/9", row[2])
	assert.Equal(t, "1200.00", row[3])
	assert.Equal(t, "10.00%", row[4])
	assert.Equal(t, "12 month(s)", row[5])
	assert.Equal(t, "active", row[6])
	assert.Equal(t, "2025-03-01", row[7])
	assert.Equal(t, "1320.00", row[8])
	// 2640 repayable minus 1320 balance
	assert.Equal(t, "1320.00", row[9])
	assert.Equal(t, "Grace Tembo", row[10])
}

func TestGenerateLoanBookCSV_DateFilter(t *testing.T) {
	mockRepo := &mockLoanRepository{}
	service := NewReportService(mockRepo, nil, nil, nil, NewCurrencyService("ZMW"))

	inRange := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	outOfRange := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mockRepo.mockList = func(ctx context.Context, query *repository.LoanQuery) ([]models.Loan, int64, error) {
		return []models.Loan{
			{ID: 1, LoanNumber: "LN-2025-0001", Duration: 6, ReleaseDate: &inRange},
			{ID: 2, LoanNumber: "LN-2025-0002", Duration: 6, ReleaseDate: &outOfRange},
			{ID: 3, LoanNumber: "LN-2025-0003", Duration: 6},
		}, 3, nil
	}

	buf, err := service.GenerateLoanBookCSV(context.Background(), "2025-03-01", "2025-03-31")
	assert.NoError(t, err)

	records, err := csv.NewReader(buf).ReadAll()
	assert.NoError(t, err)
	// Header plus the single loan released in March
	assert.Len(t, records, 2)
	assert.Equal(t, "LN-2025-0001", records[1][0])
}

func TestGenerateCollectionsCSV(t *testing.T) {
	mockRepayments := &mockRepaymentRepository{}
	service := NewReportService(nil, mockRepayments, nil, nil, NewCurrencyService("ZMW"))

	paidAt := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	ref := "MM-778812"
	mockRepayments.mockList = func(ctx context.Context, query *repository.ListQuery) ([]models.Repayment, int64, error) {
		return []models.Repayment{
			{
				ID:           1,
				LoanID:       1,
				Amount:       220,
				Method:       models.RepaymentMethodMobileMoney,
				Reference:    &ref,
				PaidAt:       paidAt,
				BalanceAfter: 2420,
				Loan: models.Loan{
					ID:         1,
					LoanNumber: "LN-2025-0001",
					Borrower:   models.Borrower{ID: 10, FullName: "Chanda Mwila"},
				},
				RecordedBy: &models.User{ID: 5, FullName: "Grace Tembo"},
			},
		}, 1, nil
	}

	buf, err := service.GenerateCollectionsCSV(context.Background())
	assert.NoError(t, err)

	records, err := csv.NewReader(buf).ReadAll()
	assert.NoError(t, err)

	row := records[1]
	assert.Equal(t, "1", row[0])
	assert.Equal(t, "LN-2025-0001", row[1])
	assert.Equal(t, "Chanda Mwila", row[2])
	assert.Equal(t, "220.00", row[3])
	assert.Equal(t, "Mobile Money", row[4])
	assert.Equal(t, "MM-778812", row[5])
	assert.Equal(t, "2025-04-10", row[6])
	assert.Equal(t, "2420.00", row[7])
	assert.Equal(t, "Grace Tembo", row[8])
}

func TestGenerateOverdueLoansCSV(t *testing.T) {
	mockRepo := &mockLoanRepository{}
	scheduleSvc := NewScheduleService(nil)
	service := NewReportService(mockRepo, nil, nil, scheduleSvc, NewCurrencyService("ZMW"))

	release := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	balance := 2640.0
	mockRepo.mockFindOutstanding = func(ctx context.Context) ([]models.Loan, error) {
		return []models.Loan{
			{
				ID:              1,
				LoanNumber:      "LN-2024-0001",
				PrincipalAmount: 1200,
				InterestRate:    10,
				Duration:        12,
				DurationUnit:    models.DurationUnitMonth,
				Status:          models.LoanStatusActive,
				ReleaseDate:     &release,
				Balance:         &balance,
				Borrower: models.Borrower{
					ID:       10,
					FullName: "Chanda Mwila",
					Phone:    "+260977123456",
				},
			},
		}, nil
	}

	buf, err := service.GenerateOverdueLoansCSV(context.Background())
	assert.NoError(t, err)

	records, err := csv.NewReader(buf).ReadAll()
	assert.NoError(t, err)
	assert.Len(t, records, 2)

	row := records[1]
	assert.Equal(t, "LN-2024-0001", row[0])
	assert.Equal(t, "Chanda Mwila", row[1])
	assert.Equal(t, "+260977123456", row[2])
	// First installment fell due 2024-02-01
	assert.Equal(t, "2024-02-01", row[4])
	assert.Equal(t, "2640.00", row[6])
}

func TestGenerateSchedulePDF(t *testing.T) {
	mockRepo := &mockLoanRepository{}
	scheduleSvc := NewScheduleService(nil)
	service := NewReportService(mockRepo, nil, nil, scheduleSvc, NewCurrencyService("ZMW"))

	release := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mockRepo.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Loan, error) {
		return &models.Loan{
			ID:              1,
			LoanNumber:      "LN-2024-0001",
			PrincipalAmount: 1200,
			InterestRate:    10,
			Duration:        12,
			DurationUnit:    models.DurationUnitMonth,
			Status:          models.LoanStatusActive,
			ReleaseDate:     &release,
			Borrower:        models.Borrower{ID: 10, FullName: "Chanda Mwila"},
		}, nil
	}

	buf, err := service.GenerateSchedulePDF(context.Background(), 1, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.NotNil(t, buf)
	assert.Greater(t, buf.Len(), 0, "PDF buffer should not be empty")
}

func TestGenerateReceiptPDF(t *testing.T) {
	mockRepo := &mockLoanRepository{}
	mockRepayments := &mockRepaymentRepository{}
	service := NewReportService(mockRepo, mockRepayments, nil, nil, NewCurrencyService("ZMW"))

	mockRepayments.mockFindByID = func(ctx context.Context, id uint) (*models.Repayment, error) {
		return &models.Repayment{
			ID:           7,
			LoanID:       1,
			Amount:       220,
			Method:       models.RepaymentMethodCash,
			PaidAt:       time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
			BalanceAfter: 2420,
		}, nil
	}
	mockRepo.mockFindByIDWithDetails = func(ctx context.Context, id uint) (*models.Loan, error) {
		return &models.Loan{
			ID:         1,
			LoanNumber: "LN-2025-0001",
			Borrower:   models.Borrower{ID: 10, FullName: "Chanda Mwila"},
		}, nil
	}

	buf, err := service.GenerateReceiptPDF(context.Background(), 7)
	assert.NoError(t, err)
	assert.NotNil(t, buf)
	assert.Greater(t, buf.Len(), 0, "PDF buffer should not be empty")
}
