package handlers

import (
	"fmt"
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

type RepaymentHandler struct {
	repaymentService *services.RepaymentService
	reportService    *services.ReportService
	storage          *storage.LocalStorage
}

func NewRepaymentHandler(repaymentService *services.RepaymentService, reportService *services.ReportService,
	storage *storage.LocalStorage) *RepaymentHandler {
	return &RepaymentHandler{
		repaymentService: repaymentService,
		reportService:    reportService,
		storage:          storage,
	}
}

// @Summary List Repayments
// @Description Get a paginated list of repayments
// @Tags Repayments
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param method query string false "Filter by payment method"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /repayments [get]
func (h *RepaymentHandler) Index(c *gin.Context) {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Filters["method"] = c.Query("method")
	query.Filters["start_date"] = c.Query("start_date")
	query.Filters["end_date"] = c.Query("end_date")

	if search := c.Query("search_term"); search != "" {
		query.Search = search
	}

	// Parse sort parameter (format: field-direction)
	if sort := c.Query("sort"); sort != "" {
		parts := strings.Split(sort, "-")
		query.SortBy = parts[0]
		if len(parts) > 1 {
			query.SortDir = parts[1]
		}
	}

	repayments, total, err := h.repaymentService.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []interface{}
	for _, r := range repayments {
		responses = append(responses, r.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"repayments": responses,
		"pagination": gin.H{
			"page":        query.Page,
			"per_page":    query.PerPage,
			"total":       total,
			"total_pages": (total + int64(query.PerPage) - 1) / int64(query.PerPage),
		},
	})
}

// @Summary Get Repayment
// @Description Get a repayment by ID
// @Tags Repayments
// @Accept json
// @Produce json
// @Param repayment_id path int true "Repayment ID"
// @Success 200 {object} models.RepaymentResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /repayments/{repayment_id} [get]
func (h *RepaymentHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("repayment_id"), 10, 32)
	repayment, err := h.repaymentService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Repayment not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"repayment": repayment.ToResponse()})
}

// @Summary Collection Statistics
// @Description Daily collection totals for a month
// @Tags Repayments
// @Accept json
// @Produce json
// @Param month query int true "Month (1-12)"
// @Param year query int true "Year (YYYY)"
// @Success 200 {object} []services.CollectionPoint
// @Security BearerAuth
// @Router /repayments/statistics [get]
func (h *RepaymentHandler) Statistics(c *gin.Context) {
	month, _ := strconv.Atoi(c.Query("month"))
	year, _ := strconv.Atoi(c.Query("year"))

	if month < 1 || month > 12 || year < 2000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid month or year"})
		return
	}

	points, err := h.repaymentService.GetMonthlyCollections(c.Request.Context(), month, year)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, points)
}

type RecordRepaymentRequest struct {
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Reference *string `json:"reference"`
	PaidAt    string  `json:"paid_at"` // YYYY-MM-DD; defaults to now
	Note      *string `json:"note"`
}

// @Summary Record Repayment
// @Description Record a payment received against a loan
// @Tags Repayments
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Param request body RecordRepaymentRequest true "Repayment Data"
// @Success 201 {object} models.RepaymentResponse
// @Failure 400,422 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id}/repayments [post]
func (h *RepaymentHandler) Create(c *gin.Context) {
	loanID, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)

	var req RecordRepaymentRequest
	if err := BindNestedOrFlat(c, "repayment", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	repayment := &models.Repayment{
		LoanID:    uint(loanID),
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		Note:      req.Note,
	}
	if req.PaidAt != "" {
		parsed, err := time.Parse("2006-01-02", req.PaidAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "paid_at must have format YYYY-MM-DD"})
			return
		}
		repayment.PaidAt = parsed
	}

	result, err := h.repaymentService.Record(c.Request.Context(), repayment,
		middleware.GetUserID(c),
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"repayment": result.ToResponse(), "message": "Repayment recorded"})
}

// @Summary List Loan Repayments
// @Description Get all repayments recorded against a loan
// @Tags Repayments
// @Accept json
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /loans/{loan_id}/repayments [get]
func (h *RepaymentHandler) IndexByLoan(c *gin.Context) {
	loanID, _ := strconv.ParseUint(c.Param("loan_id"), 10, 32)
	repayments, err := h.repaymentService.FindByLoan(c.Request.Context(), uint(loanID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]models.RepaymentResponse, 0, len(repayments))
	for _, r := range repayments {
		responses = append(responses, r.ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"repayments": responses})
}

type ReverseRepaymentRequest struct {
	Reason string `json:"reason"`
}

// @Summary Reverse Repayment
// @Description Reverse a mistakenly recorded repayment and restore the loan balance (Admin)
// @Tags Repayments
// @Accept json
// @Produce json
// @Param repayment_id path int true "Repayment ID"
// @Param request body ReverseRepaymentRequest false "Reason"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /repayments/{repayment_id}/reverse [post]
func (h *RepaymentHandler) Reverse(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("repayment_id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid repayment ID"})
		return
	}

	var req ReverseRepaymentRequest
	c.ShouldBindJSON(&req)

	err = h.repaymentService.Reverse(c.Request.Context(), uint(id),
		middleware.GetUserID(c),
		req.Reason,
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Repayment not found"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Repayment reversed"})
}

// @Summary Upload Receipt
// @Description Upload a scanned deposit slip or receipt for a repayment
// @Tags Repayments
// @Accept multipart/form-data
// @Produce json
// @Param repayment_id path int true "Repayment ID"
// @Param receipt formData file true "Receipt File"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /repayments/{repayment_id}/receipt [post]
func (h *RepaymentHandler) UploadReceipt(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("repayment_id"), 10, 32)

	repayment, err := h.repaymentService.FindByID(c.Request.Context(), uint(id))
	if err != nil || repayment.ID == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Repayment not found"})
		return
	}

	file, header, err := c.Request.FormFile("receipt")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Receipt file is required"})
		return
	}
	defer file.Close()

	if c.Request.ContentLength > 0 && c.Request.ContentLength > storage.MaxFileSize() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is too large"})
		return
	}

	if !storage.IsValidContentType(header.Header.Get("Content-Type")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type"})
		return
	}

	path, err := h.storage.Upload(file, header, "receipts")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}

	if err := h.repaymentService.UpdateReceiptPath(c.Request.Context(), uint(id), path); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Receipt uploaded successfully"})
}

// @Summary Download Receipt
// @Description Download the uploaded receipt for a repayment
// @Tags Repayments
// @Produce application/octet-stream
// @Param repayment_id path int true "Repayment ID"
// @Success 200 {file} file "receipt"
// @Security BearerAuth
// @Router /repayments/{repayment_id}/receipt [get]
func (h *RepaymentHandler) DownloadReceipt(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("repayment_id"), 10, 32)
	repayment, err := h.repaymentService.FindByID(c.Request.Context(), uint(id))
	if err != nil || repayment.ReceiptPath == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Receipt not found"})
		return
	}

	fullPath := h.storage.GetFullPath(*repayment.ReceiptPath)
	if !h.storage.Exists(*repayment.ReceiptPath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Receipt not found"})
		return
	}
	c.File(fullPath)
}

// @Summary Receipt PDF
// @Description Generate a printable receipt for a repayment
// @Tags Repayments
// @Produce application/pdf
// @Param repayment_id path int true "Repayment ID"
// @Success 200 {file} file "receipt.pdf"
// @Security BearerAuth
// @Router /repayments/{repayment_id}/receipt_pdf [get]
func (h *RepaymentHandler) ReceiptPDF(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("repayment_id"), 10, 32)
	buf, err := h.reportService.GenerateReceiptPDF(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt_%d.pdf", id))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
