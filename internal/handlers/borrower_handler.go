package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zamfin/loanpilot-api/internal/middleware"
	"github.com/zamfin/loanpilot-api/internal/models"
	"github.com/zamfin/loanpilot-api/internal/repository"
	"github.com/zamfin/loanpilot-api/internal/services"
	"github.com/zamfin/loanpilot-api/internal/storage"
)

type BorrowerHandler struct {
	borrowerService *services.BorrowerService
	creditScoreSvc  *services.CreditScoreService
}

func NewBorrowerHandler(borrowerService *services.BorrowerService, creditScoreSvc *services.CreditScoreService) *BorrowerHandler {
	return &BorrowerHandler{borrowerService: borrowerService, creditScoreSvc: creditScoreSvc}
}

// @Summary List Borrowers
// @Description Get a paginated list of borrowers
// @Tags Borrowers
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param search_term query string false "Search by name, phone or NRC"
// @Param status query string false "Filter by status (active, archived, all)"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /borrowers [get]
func (h *BorrowerHandler) Index(c *gin.Context) {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Search = c.Query("search_term")
	query.Filters["status"] = c.DefaultQuery("status", "active")

	// Parse sort parameter (format: field-direction)
	if sort := c.Query("sort"); sort != "" {
		parts := strings.Split(sort, "-")
		query.SortBy = parts[0]
		if len(parts) > 1 {
			query.SortDir = parts[1]
		}
	}

	borrowers, total, err := h.borrowerService.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []interface{}
	for _, b := range borrowers {
		responses = append(responses, b.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"borrowers": responses,
		"pagination": gin.H{
			"page":        query.Page,
			"per_page":    query.PerPage,
			"total":       total,
			"total_pages": (total + int64(query.PerPage) - 1) / int64(query.PerPage),
		},
	})
}

// @Summary Get Borrower
// @Description Get a borrower by ID with loan history
// @Tags Borrowers
// @Accept json
// @Produce json
// @Param borrower_id path int true "Borrower ID"
// @Success 200 {object} models.BorrowerResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /borrowers/{borrower_id} [get]
func (h *BorrowerHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("borrower_id"), 10, 32)
	borrower, err := h.borrowerService.FindByIDWithLoans(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Borrower not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"borrower": borrower.ToResponse()})
}

type BorrowerRequest struct {
	FullName      string   `json:"full_name"`
	Phone         string   `json:"phone"`
	Email         *string  `json:"email"`
	NRC           string   `json:"nrc"`
	Gender        *string  `json:"gender"`
	DateOfBirth   *string  `json:"date_of_birth"` // YYYY-MM-DD
	Address       *string  `json:"address"`
	Occupation    *string  `json:"occupation"`
	Employer      *string  `json:"employer"`
	MonthlyIncome *float64 `json:"monthly_income"`
	Note          *string  `json:"note"`
}

func (r *BorrowerRequest) apply(b *models.Borrower) error {
	b.FullName = strings.TrimSpace(r.FullName)
	b.Phone = strings.TrimSpace(r.Phone)
	b.NRC = strings.TrimSpace(r.NRC)
	b.Email = r.Email
	b.Gender = r.Gender
	b.Address = r.Address
	b.Occupation = r.Occupation
	b.Employer = r.Employer
	b.MonthlyIncome = r.MonthlyIncome
	b.Note = r.Note
	if r.DateOfBirth != nil && *r.DateOfBirth != "" {
		parsed, err := time.Parse("2006-01-02", *r.DateOfBirth)
		if err != nil {
			return err
		}
		b.DateOfBirth = &parsed
	}
	return nil
}

// @Summary Create Borrower
// @Description Register a new borrower
// @Tags Borrowers
// @Accept json
// @Produce json
// @Param request body BorrowerRequest true "Borrower Data"
// @Success 201 {object} models.BorrowerResponse
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /borrowers [post]
func (h *BorrowerHandler) Create(c *gin.Context) {
	var req BorrowerRequest
	if err := BindNestedOrFlat(c, "borrower", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var borrower models.Borrower
	if err := req.apply(&borrower); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Date of birth must have format YYYY-MM-DD"})
		return
	}

	actorID := middleware.GetUserID(c)
	if err := h.borrowerService.Create(c.Request.Context(), &borrower, actorID); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"borrower": borrower.ToResponse(), "message": "Borrower registered successfully"})
}

// @Summary Update Borrower
// @Description Update an existing borrower's details
// @Tags Borrowers
// @Accept json
// @Produce json
// @Param borrower_id path int true "Borrower ID"
// @Param request body BorrowerRequest true "Borrower Data"
// @Success 200 {object} models.BorrowerResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /borrowers/{borrower_id} [put]
func (h *BorrowerHandler) Update(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("borrower_id"), 10, 32)
	borrower, err := h.borrowerService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Borrower not found"})
		return
	}

	var req BorrowerRequest
	if err := BindNestedOrFlat(c, "borrower", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.apply(borrower); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Date of birth must have format YYYY-MM-DD"})
		return
	}

	actorID := middleware.GetUserID(c)
	if err := h.borrowerService.Update(c.Request.Context(), borrower, actorID); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"borrower": borrower.ToResponse(), "message": "Borrower updated successfully"})
}

// @Summary Archive Borrower
// @Description Archive a borrower with no outstanding loans
// @Tags Borrowers
// @Accept json
// @Produce json
// @Param borrower_id path int true "Borrower ID"
// @Success 200 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /borrowers/{borrower_id} [delete]
func (h *BorrowerHandler) Archive(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("borrower_id"), 10, 32)
	actorID := middleware.GetUserID(c)
	if err := h.borrowerService.Archive(c.Request.Context(), uint(id), actorID); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Borrower archived"})
}

// @Summary Restore Borrower
// @Description Restore an archived borrower
// @Tags Borrowers
// @Accept json
// @Produce json
// @Param borrower_id path int true "Borrower ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /borrowers/{borrower_id}/restore [post]
func (h *BorrowerHandler) Restore(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("borrower_id"), 10, 32)
	actorID := middleware.GetUserID(c)
	if err := h.borrowerService.Restore(c.Request.Context(), uint(id), actorID); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Borrower restored"})
}

// @Summary Upload Borrower Photo
// @Description Upload a passport photo for a borrower (JPG/PNG)
// @Tags Borrowers
// @Accept multipart/form-data
// @Produce json
// @Param borrower_id path int true "Borrower ID"
// @Param photo formData file true "Photo File"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /borrowers/{borrower_id}/photo [post]
func (h *BorrowerHandler) UploadPhoto(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("borrower_id"), 10, 32)

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Photo file is required"})
		return
	}
	defer file.Close()

	if c.Request.ContentLength > 0 && c.Request.ContentLength > storage.MaxFileSize() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is too large"})
		return
	}

	actorID := middleware.GetUserID(c)
	path, err := h.borrowerService.UploadPhoto(c.Request.Context(), uint(id), file, header, actorID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Photo uploaded successfully", "photo_path": path})
}

// @Summary Get Borrower Loans
// @Description List all loans for a borrower
// @Tags Borrowers
// @Accept json
// @Produce json
// @Param borrower_id path int true "Borrower ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /borrowers/{borrower_id}/loans [get]
func (h *BorrowerHandler) Loans(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("borrower_id"), 10, 32)
	loans, err := h.borrowerService.GetLoans(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]models.LoanResponse, 0, len(loans))
	for _, l := range loans {
		responses = append(responses, l.ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"loans": responses})
}

// @Summary Refresh Credit Score
// @Description Recalculate a borrower's credit score from their repayment history
// @Tags Borrowers
// @Accept json
// @Produce json
// @Param borrower_id path int true "Borrower ID"
// @Success 200 {object} models.BorrowerResponse
// @Security BearerAuth
// @Router /borrowers/{borrower_id}/refresh_score [post]
func (h *BorrowerHandler) RefreshScore(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("borrower_id"), 10, 32)
	if err := h.creditScoreSvc.UpdateScore(c.Request.Context(), uint(id)); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	borrower, err := h.borrowerService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Borrower not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"borrower": borrower.ToResponse(), "message": "Credit score updated"})
}
