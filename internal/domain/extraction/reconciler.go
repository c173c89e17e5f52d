package extraction

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/normalize"
)

// Reconciler derives one canonical ExtractedData from a raw extraction
type Reconciler struct {
	normalizer *normalize.Normalizer
	classifier *normalize.Classifier
}

// NewReconciler creates a reconciler with the given normalizer and classifier
func NewReconciler(normalizer *normalize.Normalizer, classifier *normalize.Classifier) *Reconciler {
	return &Reconciler{
		normalizer: normalizer,
		classifier: classifier,
	}
}

// Reconcile normalizes the raw extraction. When line items are present their
// rounded sum replaces whatever total the source reported.
func (r *Reconciler) Reconcile(raw Raw) entity.ExtractedData {
	out := entity.ExtractedData{
		Merchant:      r.normalizer.Merchant(raw.Merchant),
		AmountTotal:   nullDecimal(raw.AmountTotal),
		AmountTax:     nullDecimal(raw.AmountTax),
		Currency:      r.normalizer.Currency(raw.Currency),
		Items:         make([]entity.LineItem, 0, len(raw.Items)),
		Date:          raw.Date,
		PaymentMethod: raw.PaymentMethod,
		Category:      raw.Category,
		InvoiceNumber: raw.InvoiceNumber,
	}
	if raw.Location != nil {
		loc := *raw.Location
		out.Location = &loc
	}

	sum := decimal.Zero
	for _, item := range raw.Items {
		amount := coerceAmount(item.Amount)
		sum = sum.Add(amount)
		out.Items = append(out.Items, entity.LineItem{
			Description: item.Description,
			Amount:      amount,
		})
	}
	if len(out.Items) > 0 {
		out.AmountTotal = decimal.NewNullDecimal(Round2(sum))
	}

	if out.Category == nil && out.Merchant != nil {
		out.Category = r.classifier.Guess(*out.Merchant)
	}

	return out
}

// ReconcileData re-applies reconciliation to an already canonical extraction,
// e.g. after a manual edit replaced the items.
func (r *Reconciler) ReconcileData(data entity.ExtractedData) entity.ExtractedData {
	raw := Raw{
		Merchant:      data.Merchant,
		Currency:      &data.Currency,
		Date:          data.Date,
		Location:      data.Location,
		PaymentMethod: data.PaymentMethod,
		Category:      data.Category,
		InvoiceNumber: data.InvoiceNumber,
	}
	out := r.Reconcile(raw)
	out.AmountTotal = data.AmountTotal
	out.AmountTax = data.AmountTax

	sum := decimal.Zero
	for _, item := range data.Items {
		amount := item.Amount
		if amount.IsNegative() {
			amount = decimal.Zero
		}
		sum = sum.Add(amount)
		out.Items = append(out.Items, entity.LineItem{Description: item.Description, Amount: amount})
	}
	if len(out.Items) > 0 {
		out.AmountTotal = decimal.NewNullDecimal(Round2(sum))
	}
	return out
}

// Round2 rounds a currency amount to two fraction digits
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func coerceAmount(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func nullDecimal(v *float64) decimal.NullDecimal {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v))
}
