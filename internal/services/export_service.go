package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
	"github.com/zamfin/loanpilot-api/internal/repository"
)

type ExportService struct {
	loanRepo repository.LoanRepository
}

func NewExportService(loanRepo repository.LoanRepository) *ExportService {
	return &ExportService{loanRepo: loanRepo}
}

func (s *ExportService) ExportCSV(ctx context.Context, stats *repository.LoanStats, portfolio *repository.PortfolioStats) ([]byte, string, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	// Header
	_ = writer.Write([]string{"Portfolio Report", time.Now().Format("2006-01-02 15:04")})
	_ = writer.Write([]string{""})

	// Portfolio Section
	_ = writer.Write([]string{"Portfolio Summary"})
	_ = writer.Write([]string{"Metric", "Value"})
	_ = writer.Write([]string{"Total Disbursed", fmt.Sprintf("%.2f", portfolio.TotalDisbursed)})
	_ = writer.Write([]string{"Total Outstanding", fmt.Sprintf("%.2f", portfolio.TotalOutstanding)})
	_ = writer.Write([]string{"Collected This Month", fmt.Sprintf("%.2f", portfolio.CollectedThisMonth)})
	_ = writer.Write([]string{"Defaulted Amount", fmt.Sprintf("%.2f", portfolio.DefaultedAmount)})
	_ = writer.Write([]string{""})

	// Status Section
	_ = writer.Write([]string{"Loans by Status"})
	_ = writer.Write([]string{"Status", "Count"})
	_ = writer.Write([]string{"Processing", fmt.Sprintf("%d", stats.Processing)})
	_ = writer.Write([]string{"Approved", fmt.Sprintf("%d", stats.Approved)})
	_ = writer.Write([]string{"Rejected", fmt.Sprintf("%d", stats.Rejected)})
	_ = writer.Write([]string{"Active", fmt.Sprintf("%d", stats.Active)})
	_ = writer.Write([]string{"Closed", fmt.Sprintf("%d", stats.Closed)})
	_ = writer.Write([]string{"Defaulted", fmt.Sprintf("%d", stats.Defaulted)})
	_ = writer.Write([]string{"Total", fmt.Sprintf("%d", stats.Total)})

	writer.Flush()

	filename := fmt.Sprintf("portfolio_report_%s.csv", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

func (s *ExportService) ExportXLSX(ctx context.Context, stats *repository.LoanStats, portfolio *repository.PortfolioStats) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Portfolio"
	_ = f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	_ = f.SetCellValue(sheet, "A1", "Portfolio Report")
	_ = f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	_ = f.SetCellValue(sheet, "A3", "Portfolio Summary")
	_ = f.SetCellValue(sheet, "A4", "Metric")
	_ = f.SetCellValue(sheet, "B4", "Value")

	_ = f.SetCellValue(sheet, "A5", "Total Disbursed")
	_ = f.SetCellValue(sheet, "B5", portfolio.TotalDisbursed)
	_ = f.SetCellValue(sheet, "A6", "Total Outstanding")
	_ = f.SetCellValue(sheet, "B6", portfolio.TotalOutstanding)
	_ = f.SetCellValue(sheet, "A7", "Collected This Month")
	_ = f.SetCellValue(sheet, "B7", portfolio.CollectedThisMonth)
	_ = f.SetCellValue(sheet, "A8", "Defaulted Amount")
	_ = f.SetCellValue(sheet, "B8", portfolio.DefaultedAmount)

	_ = f.SetCellValue(sheet, "A10", "Loans by Status")
	_ = f.SetCellValue(sheet, "A11", "Status")
	_ = f.SetCellValue(sheet, "B11", "Count")

	_ = f.SetCellValue(sheet, "A12", "Processing")
	_ = f.SetCellValue(sheet, "B12", stats.Processing)
	_ = f.SetCellValue(sheet, "A13", "Approved")
	_ = f.SetCellValue(sheet, "B13", stats.Approved)
	_ = f.SetCellValue(sheet, "A14", "Rejected")
	_ = f.SetCellValue(sheet, "B14", stats.Rejected)
	_ = f.SetCellValue(sheet, "A15", "Active")
	_ = f.SetCellValue(sheet, "B15", stats.Active)
	_ = f.SetCellValue(sheet, "A16", "Closed")
	_ = f.SetCellValue(sheet, "B16", stats.Closed)
	_ = f.SetCellValue(sheet, "A17", "Defaulted")
	_ = f.SetCellValue(sheet, "B17", stats.Defaulted)
	_ = f.SetCellValue(sheet, "A18", "Total")
	_ = f.SetCellValue(sheet, "B18", stats.Total)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("portfolio_report_%s.xlsx", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

func (s *ExportService) ExportPDF(ctx context.Context, stats *repository.LoanStats, portfolio *repository.PortfolioStats) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Portfolio Report")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 10, "Portfolio Summary")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(60, 10, "Total Disbursed:")
	pdf.Cell(40, 10, fmt.Sprintf("%.2f ZMW", portfolio.TotalDisbursed))
	pdf.Ln(6)

	pdf.Cell(60, 10, "Total Outstanding:")
	pdf.Cell(40, 10, fmt.Sprintf("%.2f ZMW", portfolio.TotalOutstanding))
	pdf.Ln(6)

	pdf.Cell(60, 10, "Collected This Month:")
	pdf.Cell(40, 10, fmt.Sprintf("%.2f ZMW", portfolio.CollectedThisMonth))
	pdf.Ln(6)

	pdf.Cell(60, 10, "Defaulted Amount:")
	pdf.Cell(40, 10, fmt.Sprintf("%.2f ZMW", portfolio.DefaultedAmount))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 10, "Loans by Status")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	rows := [][2]string{
		{"Processing:", fmt.Sprintf("%d", stats.Processing)},
		{"Approved:", fmt.Sprintf("%d", stats.Approved)},
		{"Rejected:", fmt.Sprintf("%d", stats.Rejected)},
		{"Active:", fmt.Sprintf("%d", stats.Active)},
		{"Closed:", fmt.Sprintf("%d", stats.Closed)},
		{"Defaulted:", fmt.Sprintf("%d", stats.Defaulted)},
		{"Total:", fmt.Sprintf("%d", stats.Total)},
	}
	for _, row := range rows {
		pdf.Cell(60, 10, row[0])
		pdf.Cell(40, 10, row[1])
		pdf.Ln(6)
	}

	buf := new(bytes.Buffer)
	err := pdf.Output(buf)
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("portfolio_report_%s.pdf", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// GetStats loads both stat blocks used by the export endpoints.
func (s *ExportService) GetStats(ctx context.Context) (*repository.LoanStats, *repository.PortfolioStats, error) {
	stats, err := s.loanRepo.GetStats(ctx)
	if err != nil {
		return nil, nil, err
	}
	portfolio, err := s.loanRepo.GetPortfolioStats(ctx)
	if err != nil {
		return nil, nil, err
	}
	return stats, portfolio, nil
}
