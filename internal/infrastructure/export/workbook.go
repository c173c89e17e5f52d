// Package export renders drafts as spreadsheets.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
)

const (
	SheetDrafts      = "Drafts"
	SheetFindings    = "Findings"
	SheetAllocations = "Allocations"
)

var (
	draftHeaders = []string{
		"Draft ID", "Receipt ID", "Status", "Created", "Updated",
		"Merchant", "Date", "Amount", "Tax", "Currency", "Category", "Invoice No.", "City",
		"Employee", "Team", "Trip", "GL Account", "Business Category", "AI Confidence", "AI Notes",
		"Findings",
	}
	findingHeaders    = []string{"Draft ID", "Code", "Severity", "Message", "Evidence"}
	allocationHeaders = []string{"Draft ID", "GL Account", "Amount", "Percent", "Notes"}
)

// WorkbookWriter implements port.DraftWorkbookWriter with excelize
type WorkbookWriter struct {
	logger *zap.Logger
}

// NewWorkbookWriter creates a new XLSX writer
func NewWorkbookWriter(logger *zap.Logger) port.DraftWorkbookWriter {
	return &WorkbookWriter{logger: logger}
}

// Write renders one row per draft plus sheets for findings and AI split allocations
func (w *WorkbookWriter) Write(drafts []*entity.ExpenseDraft) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetDrafts); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetFindings, SheetAllocations} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for sheet, headers := range map[string][]string{
		SheetDrafts:      draftHeaders,
		SheetFindings:    findingHeaders,
		SheetAllocations: allocationHeaders,
	} {
		if err := w.writeHeader(f, sheet, headers, headerStyle); err != nil {
			return nil, err
		}
	}

	findingRow, allocationRow := 2, 2
	for i, d := range drafts {
		if err := f.SetSheetRow(SheetDrafts, cell(1, i+2), draftRow(d)); err != nil {
			return nil, fmt.Errorf("failed to write draft %s: %w", d.ID, err)
		}

		for _, finding := range d.Validation {
			row := []interface{}{d.ID, finding.Code, string(finding.Severity), finding.Message, finding.Evidence}
			if err := f.SetSheetRow(SheetFindings, cell(1, findingRow), &row); err != nil {
				return nil, fmt.Errorf("failed to write findings for %s: %w", d.ID, err)
			}
			findingRow++
		}

		for _, a := range d.AIAllocations {
			row := []interface{}{d.ID, a.GLAccount, nullNumber(a.Amount), nullNumber(a.Percent), deref(a.Notes)}
			if err := f.SetSheetRow(SheetAllocations, cell(1, allocationRow), &row); err != nil {
				return nil, fmt.Errorf("failed to write allocations for %s: %w", d.ID, err)
			}
			allocationRow++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	w.logger.Info("Draft workbook rendered",
		zap.Int("drafts", len(drafts)),
		zap.Int("findings", findingRow-2),
		zap.Int("allocations", allocationRow-2),
		zap.Int("size", buf.Len()))
	return buf.Bytes(), nil
}

func (w *WorkbookWriter) writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", cell(len(headers), 1), style); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		w.logger.Warn("Failed to freeze header row", zap.String("sheet", sheet), zap.Error(err))
	}
	return nil
}

func draftRow(d *entity.ExpenseDraft) *[]interface{} {
	ext := d.Extraction

	city := ""
	if ext.Location != nil {
		city = ext.Location.City
	}
	currency := ext.Currency
	if currency == "" {
		currency = entity.DefaultCurrency
	}
	var confidence interface{}
	if d.AIConfidence != nil {
		confidence = *d.AIConfidence
	}

	codes := make([]string, 0, len(d.Validation))
	for _, f := range d.Validation {
		codes = append(codes, f.Code)
	}

	row := []interface{}{
		d.ID,
		d.ReceiptID,
		d.Status.String(),
		d.CreatedAt.UTC().Format(time.RFC3339),
		d.UpdatedAt.UTC().Format(time.RFC3339),
		deref(ext.Merchant),
		deref(ext.Date),
		nullNumber(ext.AmountTotal),
		nullNumber(ext.AmountTax),
		currency,
		deref(ext.Category),
		deref(ext.InvoiceNumber),
		city,
		deref(d.EmployeeID),
		deref(d.FunctionalTeamCode),
		deref(d.TripID),
		deref(d.GLAccount),
		deref(d.BusinessCategory),
		confidence,
		strings.Join(d.AILabels, "\n"),
		strings.Join(codes, ", "),
	}
	return &row
}

// nullNumber writes amounts as numeric cells and leaves unknown ones blank
func nullNumber(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	f, _ := d.Decimal.Float64()
	return f
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
