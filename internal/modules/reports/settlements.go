// Package reports builds operational exports for the admin team.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
	"github.com/realtravo/realtravo-sub000/internal/modules/listings"
	"github.com/realtravo/realtravo-sub000/internal/modules/payouts"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// categoryTotals aggregates the fee split per listing category.
type categoryTotals struct {
	ItemType   string
	Bookings   int64
	Gross      int64
	ServiceFee int64
	HostPayout int64
}

// SettlementReport renders an xlsx workbook with three sheets: per-booking
// settlement rows, per-category totals, and the payout ledger for the same
// window. The caller owns the returned file.
func (s *Service) SettlementReport(ctx context.Context, from, to time.Time) (*excelize.File, string, error) {
	var rows []bookings.Booking
	if err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at").
		Find(&rows).Error; err != nil {
		return nil, "", fmt.Errorf("load bookings: %w", err)
	}

	var transfers []payouts.Payout
	if err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at").
		Find(&transfers).Error; err != nil {
		return nil, "", fmt.Errorf("load payouts: %w", err)
	}

	f := excelize.NewFile()

	if err := s.createSettlementSheet(f, rows); err != nil {
		return nil, "", fmt.Errorf("settlement sheet: %w", err)
	}
	if err := s.createTotalsSheet(f, rows); err != nil {
		return nil, "", fmt.Errorf("totals sheet: %w", err)
	}
	if err := s.createPayoutSheet(f, transfers); err != nil {
		return nil, "", fmt.Errorf("payout sheet: %w", err)
	}

	f.DeleteSheet("Sheet1")

	filename := fmt.Sprintf("Settlements_%s_%s.xlsx",
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	return f, filename, nil
}

func headerStyle(f *excelize.File) int {
	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E6F3FF"}, Pattern: 1},
	})
	return style
}

func (s *Service) createSettlementSheet(f *excelize.File, rows []bookings.Booking) error {
	sheetName := "Settlements"
	f.NewSheet(sheetName)
	sheetIndex, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIndex)

	headers := []string{
		"Date", "Booking ID", "Checkout Ref", "Category", "Host ID",
		"Gross (KES)", "Service Fee (KES)", "Host Payout (KES)",
		"Payment", "Payout Status",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle(f))

	for i, b := range rows {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), b.CreatedAt.Format("2006-01-02 15:04"))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), b.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), b.CheckoutRef)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), b.ItemType)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), b.HostID)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), b.TotalAmount)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), b.ServiceFeeAmount)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), b.HostPayoutAmount)
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), b.PaymentStatus)
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), b.PayoutStatus)
	}

	f.SetColWidth(sheetName, "A", lastCol, 16)
	f.SetColWidth(sheetName, "B", "C", 30)

	return nil
}

func (s *Service) createTotalsSheet(f *excelize.File, rows []bookings.Booking) error {
	sheetName := "Totals"
	f.NewSheet(sheetName)

	byType := make(map[string]*categoryTotals)
	for _, b := range rows {
		t, ok := byType[b.ItemType]
		if !ok {
			t = &categoryTotals{ItemType: b.ItemType}
			byType[b.ItemType] = t
		}
		t.Bookings++
		t.Gross += b.TotalAmount
		t.ServiceFee += b.ServiceFeeAmount
		t.HostPayout += b.HostPayoutAmount
	}

	headers := []string{"Category", "Bookings", "Gross (KES)", "Service Fee (KES)", "Host Payout (KES)"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}
	f.SetCellStyle(sheetName, "A1", "E1", headerStyle(f))

	var grand categoryTotals
	row := 2
	for _, itemType := range listings.AllTypes() {
		t, ok := byType[itemType]
		if !ok {
			continue
		}
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), t.ItemType)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), t.Bookings)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), t.Gross)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), t.ServiceFee)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), t.HostPayout)
		grand.Bookings += t.Bookings
		grand.Gross += t.Gross
		grand.ServiceFee += t.ServiceFee
		grand.HostPayout += t.HostPayout
		row++
	}

	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Total")
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), grand.Bookings)
	f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), grand.Gross)
	f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), grand.ServiceFee)
	f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), grand.HostPayout)

	totalStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("E%d", row), totalStyle)

	f.SetColWidth(sheetName, "A", "E", 18)

	return nil
}

func (s *Service) createPayoutSheet(f *excelize.File, transfers []payouts.Payout) error {
	sheetName := "Payouts"
	f.NewSheet(sheetName)

	headers := []string{
		"Date", "Payout ID", "Recipient", "Type", "Booking ID",
		"Amount (KES)", "Status", "Transfer Code", "Failure Reason",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle(f))

	for i, p := range transfers {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), p.CreatedAt.Format("2006-01-02 15:04"))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), p.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), p.RecipientID)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), p.RecipientType)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), deref(p.BookingID))
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), p.Amount)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), p.Status)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), deref(p.TransferCode))
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), deref(p.FailureReason))
	}

	f.SetColWidth(sheetName, "A", lastCol, 16)
	f.SetColWidth(sheetName, "B", "C", 30)

	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
