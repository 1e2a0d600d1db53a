package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/jung-kurt/gofpdf"
	"github.com/zamfin/loanpilot-api/internal/models"
	"github.com/zamfin/loanpilot-api/internal/repository"
)

type ReportService struct {
	loanRepo      repository.LoanRepository
	repaymentRepo repository.RepaymentRepository
	borrowerRepo  repository.BorrowerRepository
	scheduleSvc   *ScheduleService
	currencySvc   *CurrencyService
}

func NewReportService(
	loanRepo repository.LoanRepository,
	repaymentRepo repository.RepaymentRepository,
	borrowerRepo repository.BorrowerRepository,
	scheduleSvc *ScheduleService,
	currencySvc *CurrencyService,
) *ReportService {
	return &ReportService{
		loanRepo:      loanRepo,
		repaymentRepo: repaymentRepo,
		borrowerRepo:  borrowerRepo,
		scheduleSvc:   scheduleSvc,
		currencySvc:   currencySvc,
	}
}

// GenerateLoanBookCSV dumps the loan book, optionally limited to loans
// released inside a date range.
func (s *ReportService) GenerateLoanBookCSV(ctx context.Context, startDate, endDate string) (*bytes.Buffer, error) {
	listQuery := repository.NewListQuery()
	listQuery.PerPage = 10000

	query := &repository.LoanQuery{
		ListQuery: listQuery,
		IsAdmin:   true,
	}

	loans, _, err := s.loanRepo.List(ctx, query)
	if err != nil {
		return nil, err
	}

	var filtered []models.Loan
	if startDate != "" && endDate != "" {
		start, _ := time.Parse("2006-01-02", startDate)
		end, _ := time.Parse("2006-01-02", endDate)
		end = end.Add(23*time.Hour + 59*time.Minute + 59*time.Second)

		for _, l := range loans {
			if l.ReleaseDate != nil && !l.ReleaseDate.Before(start) && !l.ReleaseDate.After(end) {
				filtered = append(filtered, l)
			}
		}
	} else {
		filtered = loans
	}

	b := &bytes.Buffer{}
	w := csv.NewWriter(b)

	header := []string{
		"Loan Number", "Borrower", "NRC", "Principal", "Interest Rate",
		"Term", "Status", "Release Date", "Balance", "Total Paid", "Officer",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, l := range filtered {
		borrowerName := "N/A"
		nrc := "N/A"
		if l.Borrower.ID != 0 {
			borrowerName = l.Borrower.FullName
			nrc = l.Borrower.NRC
		}

		officerName := "Unassigned"
		if l.Officer != nil {
			officerName = l.Officer.FullName
		}

		releaseDate := ""
		if l.ReleaseDate != nil {
			releaseDate = l.ReleaseDate.Format("2006-01-02")
		}

		balance := 0.0
		if l.Balance != nil {
			balance = *l.Balance
		}

		record := []string{
			l.LoanNumber,
			borrowerName,
			nrc,
			fmt.Sprintf("%.2f", l.PrincipalAmount),
			fmt.Sprintf("%.2f%%", l.InterestRate),
			fmt.Sprintf("%d %s(s)", l.Duration, l.DurationUnit),
			l.Status,
			releaseDate,
			fmt.Sprintf("%.2f", balance),
			fmt.Sprintf("%.2f", l.TotalPaid()),
			officerName,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return b, nil
}

// GenerateCollectionsCSV dumps all recorded repayments.
func (s *ReportService) GenerateCollectionsCSV(ctx context.Context) (*bytes.Buffer, error) {
	query := repository.NewListQuery()
	query.PerPage = 10000

	repayments, _, err := s.repaymentRepo.List(ctx, query)
	if err != nil {
		return nil, err
	}

	methodLabels := map[string]string{
		models.RepaymentMethodCash:         "Cash",
		models.RepaymentMethodMobileMoney:  "Mobile Money",
		models.RepaymentMethodBankTransfer: "Bank Transfer",
		models.RepaymentMethodCheque:       "Cheque",
	}

	b := &bytes.Buffer{}
	w := csv.NewWriter(b)

	header := []string{
		"ID", "Loan Number", "Borrower", "Amount", "Method",
		"Reference", "Paid At", "Balance After", "Recorded By",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, r := range repayments {
		loanNumber := "N/A"
		borrowerName := "N/A"
		if r.Loan.ID != 0 {
			loanNumber = r.Loan.LoanNumber
			if r.Loan.Borrower.ID != 0 {
				borrowerName = r.Loan.Borrower.FullName
			}
		}

		method := r.Method
		if label, ok := methodLabels[method]; ok {
			method = label
		}

		reference := ""
		if r.Reference != nil {
			reference = *r.Reference
		}

		recordedBy := "N/A"
		if r.RecordedBy != nil {
			recordedBy = r.RecordedBy.FullName
		}

		record := []string{
			fmt.Sprintf("%d", r.ID),
			loanNumber,
			borrowerName,
			fmt.Sprintf("%.2f", r.Amount),
			method,
			reference,
			r.PaidAt.Format("2006-01-02"),
			fmt.Sprintf("%.2f", displayBalance(r.BalanceAfter)),
			recordedBy,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return b, nil
}

// GenerateOverdueLoansCSV lists outstanding loans with installments past due.
func (s *ReportService) GenerateOverdueLoansCSV(ctx context.Context) (*bytes.Buffer, error) {
	loans, err := s.loanRepo.FindOutstanding(ctx)
	if err != nil {
		return nil, err
	}

	b := &bytes.Buffer{}
	w := csv.NewWriter(b)

	header := []string{
		"Loan Number", "Borrower", "Phone", "Overdue Installments",
		"Oldest Due Date", "Amount Overdue", "Balance",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range loans {
		loan := &loans[i]
		overdue, err := s.scheduleSvc.OverdueInstallments(loan, now)
		if err != nil || len(overdue) == 0 {
			continue
		}

		amountOverdue := 0.0
		for _, inst := range overdue {
			amountOverdue += inst.PaymentAmount
		}

		balance := 0.0
		if loan.Balance != nil {
			balance = displayBalance(*loan.Balance)
		}

		record := []string{
			loan.LoanNumber,
			loan.Borrower.FullName,
			loan.Borrower.Phone,
			fmt.Sprintf("%d", len(overdue)),
			overdue[0].PaymentDate.Format("2006-01-02"),
			fmt.Sprintf("%.2f", amountOverdue),
			fmt.Sprintf("%.2f", balance),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return b, nil
}

// Helper to generate PDF from HTML template
func (s *ReportService) generatePDF(templateName string, data interface{}) (*bytes.Buffer, error) {
	tmplPath := fmt.Sprintf("internal/services/templates/reports/%s", templateName)
	if _, err := os.Stat(tmplPath); os.IsNotExist(err) {
		tmplPath = fmt.Sprintf("templates/reports/%s", templateName)
	}

	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s (path: %s): %w", templateName, tmplPath, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create pdf generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.Grayscale.Set(false)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(buf.Bytes()))
	page.EnableLocalFileAccess.Set(true)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create pdf: %w", err)
	}

	return pdfg.Buffer(), nil
}

// GenerateAgreementPDF renders the loan agreement for a released or
// approved loan.
func (s *ReportService) GenerateAgreementPDF(ctx context.Context, loanID uint) (*bytes.Buffer, error) {
	loan, err := s.loanRepo.FindByIDWithDetails(ctx, loanID)
	if err != nil {
		return nil, err
	}

	formatDate := func(t time.Time) string {
		return t.Format("2 January 2006")
	}

	borrowerName := "THE BORROWER"
	borrowerNRC := "____________________"
	borrowerAddress := "____________________"
	if loan.Borrower.ID != 0 {
		borrowerName = loan.Borrower.FullName
		if loan.Borrower.NRC != "" {
			borrowerNRC = loan.Borrower.NRC
		}
		if loan.Borrower.Address != nil && *loan.Borrower.Address != "" {
			borrowerAddress = *loan.Borrower.Address
		}
	}

	officerName := "____________________"
	if loan.Officer != nil {
		officerName = loan.Officer.FullName
	}

	installment := loan.TotalRepayable() / float64(loan.Duration)

	firstPaymentDate := "__________"
	lastPaymentDate := "__________"
	if loan.ReleaseDate != nil {
		if sched, err := s.scheduleSvc.ComputeForLoan(loan, time.Now()); err == nil && len(sched.Installments) > 0 {
			firstPaymentDate = formatDate(sched.Installments[0].PaymentDate)
			lastPaymentDate = formatDate(sched.Installments[len(sched.Installments)-1].PaymentDate)
		}
	}

	data := map[string]interface{}{
		"LoanNumber":          loan.LoanNumber,
		"BorrowerName":        borrowerName,
		"BorrowerNRC":         borrowerNRC,
		"BorrowerAddress":     borrowerAddress,
		"OfficerName":         officerName,
		"Principal":           s.currencySvc.FormatMoney(loan.PrincipalAmount, loan.Currency),
		"PrincipalWords":      NumberToWords(loan.PrincipalAmount),
		"InterestRate":        fmt.Sprintf("%.2f", loan.InterestRate),
		"TotalInterest":       s.currencySvc.FormatMoney(loan.TotalInterest(), loan.Currency),
		"TotalRepayable":      s.currencySvc.FormatMoney(loan.TotalRepayable(), loan.Currency),
		"TotalRepayableWords": NumberToWords(loan.TotalRepayable()),
		"Installment":         s.currencySvc.FormatMoney(installment, loan.Currency),
		"InstallmentWords":    NumberToWords(installment),
		"Duration":            loan.Duration,
		"DurationUnit":        loan.DurationUnit,
		"FirstPaymentDate":    firstPaymentDate,
		"LastPaymentDate":     lastPaymentDate,
		"Date":                formatDate(time.Now()),
	}

	return s.generatePDF("loan_agreement.html", data)
}

// GenerateBorrowerStatementPDF renders a statement of account covering
// every loan the borrower holds.
func (s *ReportService) GenerateBorrowerStatementPDF(ctx context.Context, borrowerID uint) (*bytes.Buffer, error) {
	borrower, err := s.borrowerRepo.FindByID(ctx, borrowerID)
	if err != nil {
		return nil, err
	}

	loans, err := s.loanRepo.FindByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, err
	}

	type RepaymentData struct {
		PaidAt       string
		Amount       string
		Method       string
		BalanceAfter string
	}

	type LoanData struct {
		LoanNumber string
		Status     string
		Principal  string
		Balance    string
		Repayments []RepaymentData
	}

	var loanDataList []LoanData
	for _, l := range loans {
		repayments, err := s.repaymentRepo.FindByLoan(ctx, l.ID)
		if err != nil {
			continue
		}

		var repaymentData []RepaymentData
		for _, r := range repayments {
			repaymentData = append(repaymentData, RepaymentData{
				PaidAt:       r.PaidAt.Format("02/01/2006"),
				Amount:       s.currencySvc.FormatMoney(r.Amount, l.Currency),
				Method:       r.Method,
				BalanceAfter: s.currencySvc.FormatMoney(displayBalance(r.BalanceAfter), l.Currency),
			})
		}

		balance := 0.0
		if l.Balance != nil {
			balance = displayBalance(*l.Balance)
		}

		loanDataList = append(loanDataList, LoanData{
			LoanNumber: l.LoanNumber,
			Status:     l.Status,
			Principal:  s.currencySvc.FormatMoney(l.PrincipalAmount, l.Currency),
			Balance:    s.currencySvc.FormatMoney(balance, l.Currency),
			Repayments: repaymentData,
		})
	}

	data := map[string]interface{}{
		"BorrowerName": borrower.FullName,
		"NRC":          borrower.NRC,
		"Phone":        borrower.Phone,
		"Date":         time.Now().Format("02/01/2006"),
		"Loans":        loanDataList,
	}

	return s.generatePDF("borrower_statement.html", data)
}

// GenerateSchedulePDF renders the repayment schedule table for a loan.
// Built with gofpdf so it works without an external renderer.
func (s *ReportService) GenerateSchedulePDF(ctx context.Context, loanID uint, asOf time.Time) (*bytes.Buffer, error) {
	loan, err := s.loanRepo.FindByIDWithDetails(ctx, loanID)
	if err != nil {
		return nil, err
	}

	sched, err := s.scheduleSvc.ComputeForLoan(loan, asOf)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, fmt.Sprintf("Repayment Schedule - %s", loan.LoanNumber))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(60, 6, fmt.Sprintf("Borrower: %s", loan.Borrower.FullName))
	pdf.Ln(6)
	pdf.Cell(60, 6, fmt.Sprintf("Principal: %s", s.currencySvc.FormatMoney(sched.Summary.PrincipalAmount, loan.Currency)))
	pdf.Ln(6)
	pdf.Cell(60, 6, fmt.Sprintf("Total Repayable: %s", s.currencySvc.FormatMoney(sched.Summary.OriginalTotalRepayment, loan.Currency)))
	pdf.Ln(6)
	pdf.Cell(60, 6, fmt.Sprintf("Current Balance: %s", s.currencySvc.FormatMoney(sched.Summary.CurrentBalance, loan.Currency)))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(10, 7, "#", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 7, "Due Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 7, "Amount", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 7, "Principal", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 7, "Interest", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 7, "Balance", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 7, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, inst := range sched.Installments {
		pdf.CellFormat(10, 6, fmt.Sprintf("%d", inst.Number), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, inst.PaymentDate.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(28, 6, fmt.Sprintf("%.2f", inst.PaymentAmount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, fmt.Sprintf("%.2f", inst.PrincipalPortion), "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, fmt.Sprintf("%.2f", inst.InterestPortion), "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, fmt.Sprintf("%.2f", inst.BalanceAfter), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, string(inst.Status), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// GenerateReceiptPDF renders a receipt for one recorded repayment.
func (s *ReportService) GenerateReceiptPDF(ctx context.Context, repaymentID uint) (*bytes.Buffer, error) {
	repayment, err := s.repaymentRepo.FindByID(ctx, repaymentID)
	if err != nil {
		return nil, err
	}

	loan, err := s.loanRepo.FindByIDWithDetails(ctx, repayment.LoanID)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Repayment Receipt")
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 10)
	rows := [][2]string{
		{"Receipt No:", fmt.Sprintf("RCP-%06d", repayment.ID)},
		{"Loan Number:", loan.LoanNumber},
		{"Borrower:", loan.Borrower.FullName},
		{"Date Paid:", repayment.PaidAt.Format("2006-01-02")},
		{"Amount:", s.currencySvc.FormatMoney(repayment.Amount, loan.Currency)},
		{"Method:", repayment.Method},
		{"Balance:", s.currencySvc.FormatMoney(displayBalance(repayment.BalanceAfter), loan.Currency)},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(40, 8, row[0])
		pdf.SetFont("Arial", "", 10)
		pdf.Cell(60, 8, row[1])
		pdf.Ln(8)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 9)
	pdf.Cell(40, 6, "Thank you for your payment.")

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
