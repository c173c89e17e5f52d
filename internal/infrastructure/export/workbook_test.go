package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/expense-drafts/internal/domain/entity"
)

func strPtr(s string) *string { return &s }

func TestWorkbookWriter_Write(t *testing.T) {
	created := time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)
	confidence := 0.75
	drafts := []*entity.ExpenseDraft{
		{
			ID:        "d-1",
			ReceiptID: "r-1",
			Status:    entity.DraftStatusProposed,
			Extraction: entity.ExtractedData{
				Merchant:    strPtr("Cafe Lumen"),
				AmountTotal: decimal.NewNullDecimal(decimal.RequireFromString("18.40")),
				Currency:    "EUR",
				Location:    &entity.Location{City: "Lisbon"},
			},
			Validation: []entity.PolicyFinding{
				{Code: "MEALS_LIMIT", Severity: entity.SeverityWarn, Message: "over", Evidence: "18.40 > 15"},
			},
			GLAccount:    strPtr("6100"),
			AIConfidence: &confidence,
			AILabels:     []string{"client lunch", "team"},
			AIAllocations: []entity.AISplitAllocation{
				{GLAccount: "6100", Percent: decimal.NewNullDecimal(decimal.NewFromInt(60))},
				{GLAccount: "6200", Percent: decimal.NewNullDecimal(decimal.NewFromInt(40)), Notes: strPtr("travel")},
			},
			CreatedAt: created,
			UpdatedAt: created.Add(time.Hour),
		},
		{
			ID:        "d-2",
			ReceiptID: "r-2",
			Status:    entity.DraftStatusNeedsInfo,
			CreatedAt: created,
			UpdatedAt: created,
		},
	}

	data, err := NewWorkbookWriter(zap.NewNop()).Write(drafts)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetDrafts, SheetFindings, SheetAllocations}, f.GetSheetList())

	rows, err := f.GetRows(SheetDrafts)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Draft ID", rows[0][0])
	assert.Equal(t, "d-1", rows[1][0])
	assert.Equal(t, "proposed", rows[1][2])
	assert.Equal(t, "2026-05-02T09:30:00Z", rows[1][3])
	assert.Equal(t, "Cafe Lumen", rows[1][5])
	assert.Equal(t, "18.4", rows[1][7])
	assert.Equal(t, "EUR", rows[1][9])
	assert.Equal(t, "Lisbon", rows[1][12])
	assert.Equal(t, "6100", rows[1][16])
	assert.Equal(t, "MEALS_LIMIT", rows[1][20])
	assert.Equal(t, "USD", rows[2][9], "missing currency defaults")

	findings, err := f.GetRows(SheetFindings)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, []string{"d-1", "MEALS_LIMIT", "warn", "over", "18.40 > 15"}, findings[1])

	allocations, err := f.GetRows(SheetAllocations)
	require.NoError(t, err)
	require.Len(t, allocations, 3)
	assert.Equal(t, "6200", allocations[2][1])
	assert.Equal(t, "", allocations[2][2])
	assert.Equal(t, "40", allocations[2][3])
	assert.Equal(t, "travel", allocations[2][4])
}

func TestWorkbookWriter_Empty(t *testing.T) {
	data, err := NewWorkbookWriter(zap.NewNop()).Write(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetDrafts)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
