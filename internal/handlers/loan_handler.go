package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zamfin/loanpilot-api/internal/middleware"
	"github.com/zamfin/loanpilot-api/internal/models"
	"github.com/zamfin/loanpilot-api/internal/repository"
	"github.com/zamfin/loanpilot-api/internal/schedule"
	"github.com/zamfin/loanpilot-api/internal/services"
)

type LoanHandler struct {
	loanService    *services.LoanService
	scheduleSvc    *services.ScheduleService
	creditScoreSvc *services.CreditScoreService
	reportService  *services.ReportService
	exportService  *services.ExportService
}

func NewLoanHandler(loanService *services.LoanService, scheduleSvc *services.ScheduleService,
	creditScoreSvc *services.CreditScoreService, reportService *services.ReportService,
	exportService *services.ExportService) *LoanHandler {
	return &LoanHandler{
		loanService:    loanService,
		scheduleSvc:    scheduleSvc,
		creditScoreSvc: creditScoreSvc,
		reportService:  reportService,
		exportService:  exportService,
	}
}

// @Summary List Loans
// @Description Get a paginated list of loans
// @Tags Loans
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param search_term query string false "Search by loan number or borrower"
// @Param status query string false "Filter by status"
// @Param borrower_id query int false "Filter by borrower"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /loans [get]
func (h *LoanHandler) Index(c *gin.Context) {
	query := &repository.LoanQuery{ListQuery: repository.NewListQuery()}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Search = c.Query("search_term")
	query.Status = c.Query("status")
	if bidStr := c.Query("borrower_id"); bidStr != "" {
		bid, _ := strconv.ParseUint(bidStr, 10, 32)
		query.BorrowerID = uint(bid)
	}

	// Parse sort parameter (format: field-direction)
	if sort := c.Query("sort"); sort != "" {
		parts := strings.Split(sort, "-")
		query.SortBy = parts[0]
		if len(parts) > 1 {
			query.SortDir = parts[1]
		}
	}

	query.UserID = middleware.GetUserID(c)
	query.IsAdmin = middleware.IsAdmin(c)

	loans, total, err := h.loanService.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []interface{}
	for _, loan := range loans {
		responses = append(responses, loan.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"loans": responses,
		"pagination": gin.H{
			"page":        query.Page,
			"per_page":    query.PerPage,
			"total":       total,
			"total_pages": (total + int64(query.PerPage) - 1) / int64(query.PerPage),
		},
	})
}

// @Summary Get Loan Stats
// @Description Get loan count statistics by status
// @Tags Loans
// @Accept json
// @Produce json
// @Success 200 {object} repository.LoanStats
// @Security BearerAuth
// @Router /loans/stats [get]
func (h *LoanHandler) GetStats(c *gin.Context) {
	stats, err := h.loanService.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary Get Portfolio Stats
// @Description Get portfolio-level totals (disbursed, outstanding, collected)
// @Tags Loans
// @Accept json
// @Produce json
// @Success 200 {object} repository.PortfolioStats
// @Security BearerAuth
// @Router /loans/portfolio [get]
func (h *LoanHandler) GetPortfolioStats(c *gin.Context) {
	stats, err := h.loanService.GetPortfolioStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary Get Loan
// @Description Get a loan by ID with borrower and repayment details
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} models.LoanResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id} [get]
func (h *LoanHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	loan, err := h.loanService.FindByIDWithDetails(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Loan not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": loan.ToResponse()})
}

type LoanRequest struct {
	BorrowerID      uint    `json:"borrower_id"`
	OfficerID       *uint   `json:"officer_id"`
	PrincipalAmount float64 `json:"principal_amount"`
	InterestRate    float64 `json:"interest_rate"`
	Duration        int     `json:"duration"`
	DurationUnit    string  `json:"duration_unit"`
	Purpose         *string `json:"purpose"`
	Currency        string  `json:"currency"`
}

// @Summary Create Loan
// @Description Create a new loan application for a borrower
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body LoanRequest true "Loan Data"
// @Success 201 {object} models.LoanResponse
// @Failure 400,422 {object} map[string]string
// @Security BearerAuth
// @Router /loans [post]
func (h *LoanHandler) Create(c *gin.Context) {
	var req LoanRequest
	if err := BindNestedOrFlat(c, "loan", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actorID := middleware.GetUserID(c)
	officerID := req.OfficerID
	if officerID == nil {
		officerID = &actorID
	}

	loan := &models.Loan{
		BorrowerID:      req.BorrowerID,
		OfficerID:       officerID,
		PrincipalAmount: req.PrincipalAmount,
		InterestRate:    req.InterestRate,
		Duration:        req.Duration,
		DurationUnit:    req.DurationUnit,
		Purpose:         req.Purpose,
		Currency:        req.Currency,
	}

	if err := h.loanService.Create(c.Request.Context(), loan, actorID); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"loan": loan.ToResponse(), "message": "Loan application created"})
}

// @Summary Update Loan
// @Description Update loan terms. Allowed only while the application is processing.
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param request body LoanRequest true "Loan Data"
// @Success 200 {object} models.LoanResponse
// @Failure 404,422 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id} [patch]
func (h *LoanHandler) Update(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	loan, err := h.loanService.FindByIDWithDetails(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Loan not found"})
		return
	}

	var req LoanRequest
	if err := BindNestedOrFlat(c, "loan", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.PrincipalAmount > 0 {
		loan.PrincipalAmount = req.PrincipalAmount
	}
	if req.InterestRate > 0 {
		loan.InterestRate = req.InterestRate
	}
	if req.Duration > 0 {
		loan.Duration = req.Duration
	}
	if req.DurationUnit != "" {
		if !models.ValidDurationUnit(req.DurationUnit) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid duration unit (day, week, month, year)"})
			return
		}
		loan.DurationUnit = req.DurationUnit
	}
	if req.Purpose != nil {
		loan.Purpose = req.Purpose
	}
	if req.OfficerID != nil {
		loan.OfficerID = req.OfficerID
	}

	if err := h.loanService.Update(c.Request.Context(), loan); err != nil {
		if errors.Is(err, services.ErrInvalidState) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Only processing applications can be edited"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"loan": loan.ToResponse(), "message": "Loan updated"})
}

// @Summary Delete Loan
// @Description Delete a loan application. Only processing or rejected applications can be deleted.
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} map[string]string
// @Failure 404,422 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id} [delete]
func (h *LoanHandler) Delete(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	actorID := middleware.GetUserID(c)
	if err := h.loanService.Delete(c.Request.Context(), uint(id), actorID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Loan not found"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Loan application deleted"})
}

// @Summary Approve Loan
// @Description Approve a processing loan application (Admin)
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} models.LoanResponse
// @Security BearerAuth
// @Router /loans/{loan_id}/approve [post]
func (h *LoanHandler) Approve(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	loan, err := h.loanService.Approve(c.Request.Context(), uint(id), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": loan.ToResponse(), "message": "Loan approved"})
}

type RejectLoanRequest struct {
	Reason string `json:"reason"`
}

// @Summary Reject Loan
// @Description Reject a processing loan application (Admin)
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param request body RejectLoanRequest true "Reason"
// @Success 200 {object} models.LoanResponse
// @Security BearerAuth
// @Router /loans/{loan_id}/reject [post]
func (h *LoanHandler) Reject(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	var req RejectLoanRequest
	c.ShouldBindJSON(&req)

	loan, err := h.loanService.Reject(c.Request.Context(), uint(id), middleware.GetUserID(c), req.Reason)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": loan.ToResponse(), "message": "Loan rejected"})
}

type ReleaseLoanRequest struct {
	ReleaseDate string `json:"release_date"` // YYYY-MM-DD; defaults to today
}

// @Summary Release Loan
// @Description Disburse an approved loan and open its repayment schedule (Admin)
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param request body ReleaseLoanRequest false "Release Date"
// @Success 200 {object} models.LoanResponse
// @Security BearerAuth
// @Router /loans/{loan_id}/release [post]
func (h *LoanHandler) Release(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	var req ReleaseLoanRequest
	c.ShouldBindJSON(&req)

	var releaseDate time.Time
	if req.ReleaseDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ReleaseDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Release date must have format YYYY-MM-DD"})
			return
		}
		releaseDate = parsed
	}

	loan, err := h.loanService.Release(c.Request.Context(), uint(id), middleware.GetUserID(c), releaseDate)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": loan.ToResponse(), "message": "Loan released"})
}

// @Summary Close Loan
// @Description Close a fully repaid loan (Admin)
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} models.LoanResponse
// @Security BearerAuth
// @Router /loans/{loan_id}/close [post]
func (h *LoanHandler) Close(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	loan, err := h.loanService.Close(c.Request.Context(), uint(id), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": loan.ToResponse(), "message": "Loan closed"})
}

type DefaultLoanRequest struct {
	Note string `json:"note"`
}

// @Summary Mark Loan Defaulted
// @Description Flag an active loan as defaulted (Admin)
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param request body DefaultLoanRequest false "Note"
// @Success 200 {object} models.LoanResponse
// @Security BearerAuth
// @Router /loans/{loan_id}/default [post]
func (h *LoanHandler) MarkDefaulted(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	var req DefaultLoanRequest
	c.ShouldBindJSON(&req)

	loan, err := h.loanService.MarkDefaulted(c.Request.Context(), uint(id), middleware.GetUserID(c), req.Note)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": loan.ToResponse(), "message": "Loan marked as defaulted"})
}

// @Summary Reinstate Loan
// @Description Move a defaulted loan back to active (Admin)
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} models.LoanResponse
// @Security BearerAuth
// @Router /loans/{loan_id}/reinstate [post]
func (h *LoanHandler) Reinstate(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	loan, err := h.loanService.Reinstate(c.Request.Context(), uint(id), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": loan.ToResponse(), "message": "Loan reinstated"})
}

// @Summary Assess Loan Risk
// @Description Run the risk assessment for a loan application
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} models.LoanResponse
// @Security BearerAuth
// @Router /loans/{loan_id}/assess [post]
func (h *LoanHandler) Assess(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	loan, err := h.loanService.FindByIDWithDetails(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Loan not found"})
		return
	}

	if err := h.creditScoreSvc.AssessLoan(c.Request.Context(), loan); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": loan.ToResponse(), "message": "Risk assessment completed"})
}

// @Summary Get Repayment Schedule
// @Description Compute the repayment schedule for a released loan
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param as_of query string false "Reference date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} schedule.Schedule
// @Failure 404,422,500 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id}/schedule [get]
func (h *LoanHandler) Schedule(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)

	asOf := time.Now()
	if asOfStr := c.Query("as_of"); asOfStr != "" {
		parsed, err := time.Parse("2006-01-02", asOfStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must have format YYYY-MM-DD"})
			return
		}
		asOf = parsed
	}

	sched, err := h.scheduleSvc.GetSchedule(c.Request.Context(), uint(id), asOf)
	if err != nil {
		var invalid *schedule.InvalidInputError
		if errors.As(err, &invalid) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": invalid.Error()})
			return
		}
		if strings.Contains(err.Error(), "not been released") {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Loan not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute schedule"})
		return
	}

	c.JSON(http.StatusOK, sched)
}

// @Summary Schedule PDF
// @Description Download the repayment schedule as PDF
// @Tags Loans
// @Produce application/pdf
// @Param loan_id path int true "Loan ID"
// @Param as_of query string false "Reference date (YYYY-MM-DD)"
// @Success 200 {file} file "schedule.pdf"
// @Security BearerAuth
// @Router /loans/{loan_id}/schedule_pdf [get]
func (h *LoanHandler) SchedulePDF(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)

	asOf := time.Now()
	if asOfStr := c.Query("as_of"); asOfStr != "" {
		if parsed, err := time.Parse("2006-01-02", asOfStr); err == nil {
			asOf = parsed
		}
	}

	buf, err := h.reportService.GenerateSchedulePDF(c.Request.Context(), uint(id), asOf)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=schedule_%d.pdf", id))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// @Summary Loan Agreement PDF
// @Description Download the loan agreement document as PDF
// @Tags Loans
// @Produce application/pdf
// @Param loan_id path int true "Loan ID"
// @Success 200 {file} file "agreement.pdf"
// @Security BearerAuth
// @Router /loans/{loan_id}/agreement_pdf [get]
func (h *LoanHandler) AgreementPDF(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	buf, err := h.reportService.GenerateAgreementPDF(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=agreement_%d.pdf", id))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// @Summary Export Portfolio
// @Description Download the portfolio report in the requested format
// @Tags Loans
// @Produce application/octet-stream
// @Param format query string true "Report format (csv, xlsx, pdf)"
// @Success 200 {file} file "portfolio report"
// @Security BearerAuth
// @Router /loans/export [get]
func (h *LoanHandler) Export(c *gin.Context) {
	format := c.Query("format")

	stats, portfolio, err := h.exportService.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var data []byte
	var filename string

	switch format {
	case "csv":
		data, filename, err = h.exportService.ExportCSV(c.Request.Context(), stats, portfolio)
	case "xlsx":
		data, filename, err = h.exportService.ExportXLSX(c.Request.Context(), stats, portfolio)
	case "pdf":
		data, filename, err = h.exportService.ExportPDF(c.Request.Context(), stats, portfolio)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid format (csv, xlsx, pdf)"})
		return
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to generate %s: %v", format, err)})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/octet-stream", data)
}
