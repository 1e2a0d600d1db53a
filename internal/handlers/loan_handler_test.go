package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zamfin/loanpilot-api/internal/models"
	"github.com/zamfin/loanpilot-api/internal/repository"
	"github.com/zamfin/loanpilot-api/internal/services"
	"gorm.io/gorm"
)

type mockLoanRepo struct {
	repository.LoanRepository
	mockFindByIDWithDetails func(ctx context.Context, id uint) (*models.Loan, error)
}

func (m *mockLoanRepo) FindByIDWithDetails(ctx context.Context, id uint) (*models.Loan, error) {
	return m.mockFindByIDWithDetails(ctx, id)
}

func newScheduleTestHandler(repo repository.LoanRepository) *LoanHandler {
	scheduleSvc := services.NewScheduleService(repo)
	return NewLoanHandler(nil, scheduleSvc, nil, nil, nil)
}

func TestLoanHandler_Schedule_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	repo := &mockLoanRepo{
		mockFindByIDWithDetails: func(ctx context.Context, id uint) (*models.Loan, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	handler := newScheduleTestHandler(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/loans/99/schedule", nil)
	c.Params = gin.Params{{Key: "loan_id", Value: "99"}}
	handler.Schedule(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Loan not found")
}

func TestLoanHandler_Schedule_RepoFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	repo := &mockLoanRepo{
		mockFindByIDWithDetails: func(ctx context.Context, id uint) (*models.Loan, error) {
			return nil, errors.New("connection reset")
		},
	}
	handler := newScheduleTestHandler(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/loans/1/schedule", nil)
	c.Params = gin.Params{{Key: "loan_id", Value: "1"}}
	handler.Schedule(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to compute schedule")
}

func TestLoanHandler_Schedule_UnreleasedLoan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	repo := &mockLoanRepo{
		mockFindByIDWithDetails: func(ctx context.Context, id uint) (*models.Loan, error) {
			return &models.Loan{
				ID:              id,
				LoanNumber:      "LN-2025-000001",
				PrincipalAmount: 10000,
				InterestRate:    5,
				Duration:        6,
				DurationUnit:    models.DurationUnitMonth,
				Status:          models.LoanStatusApproved,
			}, nil
		},
	}
	handler := newScheduleTestHandler(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/loans/1/schedule", nil)
	c.Params = gin.Params{{Key: "loan_id", Value: "1"}}
	handler.Schedule(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "not been released")
}

func TestLoanHandler_Schedule_InvalidAsOf(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := newScheduleTestHandler(&mockLoanRepo{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/loans/1/schedule?as_of=01-06-2025", nil)
	c.Params = gin.Params{{Key: "loan_id", Value: "1"}}
	handler.Schedule(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "as_of must have format YYYY-MM-DD")
}

func TestLoanHandler_Schedule_ReleasedLoan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	release := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	balance := 10500.0
	repo := &mockLoanRepo{
		mockFindByIDWithDetails: func(ctx context.Context, id uint) (*models.Loan, error) {
			return &models.Loan{
				ID:              id,
				LoanNumber:      "LN-2025-000002",
				PrincipalAmount: 10000,
				InterestRate:    5,
				Duration:        6,
				DurationUnit:    models.DurationUnitMonth,
				Status:          models.LoanStatusActive,
				ReleaseDate:     &release,
				Balance:         &balance,
			}, nil
		},
	}
	handler := newScheduleTestHandler(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/loans/2/schedule?as_of=2025-03-01", nil)
	c.Params = gin.Params{{Key: "loan_id", Value: "2"}}
	handler.Schedule(c)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "summary")
	assert.Contains(t, body, "schedule")
	assert.Contains(t, body, "next_payment")

	installments, ok := body["schedule"].([]interface{})
	require.True(t, ok)
	assert.Len(t, installments, 6)
}

func TestLoanHandler_Create_InvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := NewLoanHandler(nil, nil, nil, nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("POST", "/loans", nil)
	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
