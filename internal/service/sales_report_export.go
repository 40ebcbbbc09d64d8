package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// reportDishLimit bounds the dish table of the daily PDF
const reportDishLimit = 50

// DailySalesReport is the content of the daily PDF export
type DailySalesReport struct {
	Title       string
	Summary     *DaySummary
	Dishes      []*core.DishSales
	Timezone    string
	GeneratedAt time.Time
}

// GenerateDailySalesReportPDF renders one date's aggregate and dish breakdown.
// An empty date means today.
func (s *StatsService) GenerateDailySalesReportPDF(ctx context.Context, date string) ([]byte, string, error) {
	date, err := s.ResolveDate(date)
	if err != nil {
		return nil, "", err
	}

	summary, err := s.Day(ctx, date)
	if err != nil {
		return nil, "", err
	}

	dishes, err := s.TopDishes(ctx, date, reportDishLimit)
	if err != nil {
		return nil, "", err
	}

	report := &DailySalesReport{
		Title:       "Daily Sales Report",
		Summary:     summary,
		Dishes:      dishes,
		Timezone:    s.loc.String(),
		GeneratedAt: s.now().In(s.loc),
	}

	pdfBytes, err := renderSalesReportPDF(report)
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("daily-sales-%s.pdf", date)
	return pdfBytes, filename, nil
}

func renderSalesReportPDF(report *DailySalesReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 7, report.Title, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Date: %s", report.Summary.Date), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Counted: completed orders placed on this date", "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated At: %s (%s)", report.GeneratedAt.Format("02 Jan 2006 15:04"), report.Timezone), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Summary", "1", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(95, 7, fmt.Sprintf("Total Sales: %s", formatAmount(report.Summary.TotalSales)), "1", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Orders: %d", report.Summary.TotalOrders), "1", 1, "L", false, 0, "")
	pdf.CellFormat(190, 7, fmt.Sprintf("Average Ticket: %s", formatAmount(report.Summary.AverageTicket)), "1", 1, "L", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Dishes Sold", "", 1, "L", false, 0, "")

	if len(report.Dishes) == 0 {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, "No completed sales for this date.", "", 1, "L", false, 0, "")
	} else {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(110, 7, "Dish", "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, "Quantity", "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 7, "Total", "1", 1, "R", false, 0, "")

		pdf.SetFont("Arial", "", 10)
		for _, dish := range report.Dishes {
			ensurePageSpace(pdf, 8)
			pdf.CellFormat(110, 7, safeReportValue(dish.Name), "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 7, fmt.Sprintf("%d", dish.Quantity), "1", 0, "R", false, 0, "")
			pdf.CellFormat(50, 7, formatAmount(dish.Total), "1", 1, "R", false, 0, "")
		}
	}

	var buffer bytes.Buffer
	if err := pdf.Output(&buffer); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	return buffer.Bytes(), nil
}

func ensurePageSpace(pdf *gofpdf.Fpdf, minSpace float64) {
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottomMargin := pdf.GetMargins()
	if pdf.GetY()+minSpace > pageHeight-bottomMargin {
		pdf.AddPage()
	}
}

func safeReportValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

// formatAmount drops the decimals of whole amounts: 1500.00 -> 1500, 1500.50 -> 1500.50
func formatAmount(amount decimal.Decimal) string {
	if amount.Equal(amount.Truncate(0)) {
		return "$" + amount.StringFixed(0)
	}
	return "$" + amount.StringFixed(2)
}
