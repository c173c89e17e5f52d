package extraction

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/normalize"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func newReconciler() *Reconciler {
	return NewReconciler(
		normalize.NewNormalizer(normalize.DefaultAliases()),
		normalize.NewClassifier(normalize.DefaultCategories()),
	)
}

func TestReconcile_LineItemsOverrideTotal(t *testing.T) {
	tests := []struct {
		name  string
		total *float64
		items []RawLineItem
		want  string
	}{
		{
			name:  "inconsistent total replaced",
			total: floatPtr(99),
			items: []RawLineItem{{"Burger", 10.10}, {"Fries", 3.2}},
			want:  "13.30",
		},
		{
			name:  "absent total filled",
			total: nil,
			items: []RawLineItem{{"Room", 120}},
			want:  "120.00",
		},
		{
			name:  "float noise rounded",
			total: floatPtr(0.3),
			items: []RawLineItem{{"a", 0.1}, {"b", 0.2}},
			want:  "0.30",
		},
		{
			name:  "rounds to two digits",
			total: nil,
			items: []RawLineItem{{"a", 1.004}, {"b", 1.003}},
			want:  "2.01",
		},
	}

	r := newReconciler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Reconcile(Raw{AmountTotal: tt.total, Items: tt.items})
			require.True(t, out.AmountTotal.Valid)
			assert.Equal(t, tt.want, out.AmountTotal.Decimal.StringFixed(2))
		})
	}
}

func TestReconcile_TotalKeptWithoutItems(t *testing.T) {
	out := newReconciler().Reconcile(Raw{AmountTotal: floatPtr(42.75)})

	require.True(t, out.AmountTotal.Valid)
	assert.True(t, out.AmountTotal.Decimal.Equal(decimal.RequireFromString("42.75")))
	assert.NotNil(t, out.Items)
	assert.Empty(t, out.Items)
}

func TestReconcile_CoercesBadItemAmounts(t *testing.T) {
	out := newReconciler().Reconcile(Raw{Items: []RawLineItem{
		{"refund", -5},
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
		{"ok", 7.5},
	}})

	require.Len(t, out.Items, 4)
	for _, item := range out.Items[:3] {
		assert.True(t, item.Amount.IsZero(), item.Description)
	}
	assert.Equal(t, "7.50", out.AmountTotal.Decimal.StringFixed(2))
}

func TestReconcile_NormalizesAndClassifies(t *testing.T) {
	out := newReconciler().Reconcile(Raw{
		Merchant: strPtr(" mcd "),
		Currency: strPtr("eur"),
	})

	require.NotNil(t, out.Merchant)
	assert.Equal(t, "McDonald's", *out.Merchant)
	assert.Equal(t, "EUR", out.Currency)
	require.NotNil(t, out.Category)
	assert.Equal(t, "meals", *out.Category)
}

func TestReconcile_KeepsExtractedCategory(t *testing.T) {
	out := newReconciler().Reconcile(Raw{
		Merchant: strPtr("Uber"),
		Category: strPtr("client entertainment"),
	})

	require.NotNil(t, out.Category)
	assert.Equal(t, "client entertainment", *out.Category)
}

func TestReconcile_EmptyInput(t *testing.T) {
	out := newReconciler().Reconcile(Raw{})

	assert.Nil(t, out.Merchant)
	assert.False(t, out.AmountTotal.Valid)
	assert.False(t, out.AmountTax.Valid)
	assert.Equal(t, entity.DefaultCurrency, out.Currency)
	assert.NotNil(t, out.Items)
	assert.Empty(t, out.Items)
	assert.Nil(t, out.Date)
	assert.Nil(t, out.Location)
	assert.Nil(t, out.Category)
}

func TestReconcile_PassesThroughOtherFields(t *testing.T) {
	loc := &entity.Location{City: "Austin", State: "TX"}
	out := newReconciler().Reconcile(Raw{
		Date:          strPtr("03/04/2024"),
		Location:      loc,
		PaymentMethod: strPtr("VISA 1234"),
		InvoiceNumber: strPtr("INV-9"),
		AmountTax:     floatPtr(1.25),
	})

	assert.Equal(t, "03/04/2024", *out.Date)
	assert.Equal(t, "Austin", out.City())
	assert.Equal(t, "VISA 1234", *out.PaymentMethod)
	assert.Equal(t, "INV-9", *out.InvoiceNumber)
	assert.Equal(t, "1.25", out.AmountTax.Decimal.String())

	loc.City = "Dallas"
	assert.Equal(t, "Austin", out.City(), "location must be copied")
}

func TestReconcileData_RestoresInvariantAfterEdit(t *testing.T) {
	edited := entity.ExtractedData{
		Merchant:    strPtr("Hilton"),
		AmountTotal: decimal.NewNullDecimal(decimal.NewFromInt(500)),
		Currency:    "usd",
		Items: []entity.LineItem{
			{Description: "Night 1", Amount: decimal.RequireFromString("150.10")},
			{Description: "Night 2", Amount: decimal.RequireFromString("150.15")},
		},
	}

	out := newReconciler().ReconcileData(edited)

	assert.Equal(t, "300.25", out.AmountTotal.Decimal.StringFixed(2))
	assert.Equal(t, "USD", out.Currency)
	require.NotNil(t, out.Category)
	assert.Equal(t, "lodging", *out.Category)
}

func TestDecode(t *testing.T) {
	raw, issues := Decode(map[string]any{
		"merchant":    "MCD",
		"amountTotal": 12.0,
		"currency":    nil,
		"items": []any{
			map[string]any{"description": "Burger", "amount": 8.5},
			map[string]any{"description": 3.0, "amount": "3.5"},
			"garbage",
		},
		"location": map[string]any{"city": "Paris", "country": "FR"},
		"category": 17.0,
	})

	require.NotNil(t, raw.Merchant)
	assert.Equal(t, "MCD", *raw.Merchant)
	assert.Equal(t, 12.0, *raw.AmountTotal)
	assert.Nil(t, raw.Currency)
	assert.Nil(t, raw.Category)
	require.Len(t, raw.Items, 2)
	assert.Equal(t, RawLineItem{Description: "Burger", Amount: 8.5}, raw.Items[0])
	assert.Equal(t, RawLineItem{}, raw.Items[1])
	assert.Equal(t, "Paris", raw.Location.City)

	var fields []string
	for _, issue := range issues {
		fields = append(fields, issue.Field)
	}
	assert.ElementsMatch(t, []string{"items[1].description", "items[1].amount", "items[2]", "category"}, fields)
}
