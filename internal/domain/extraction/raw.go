// Package extraction turns untrusted vision-model output into canonical receipt data.
package extraction

import (
	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/payload"
)

// RawLineItem is a line item as reported by the extraction source.
// Amount may be negative or non-finite; reconciliation coerces it.
type RawLineItem struct {
	Description string
	Amount      float64
}

// Raw is an extraction before normalization and reconciliation
type Raw struct {
	Merchant      *string
	AmountTotal   *float64
	AmountTax     *float64
	Currency      *string
	Items         []RawLineItem
	Date          *string
	Location      *entity.Location
	PaymentMethod *string
	Category      *string
	InvoiceNumber *string
}

// Decode type-checks a decoded JSON extraction field by field. Unknown or
// malformed fields are treated as unknown and reported, never fatal.
func Decode(obj map[string]any) (Raw, []payload.FieldIssue) {
	r := payload.NewReader(obj)

	raw := Raw{
		Merchant:      r.String("merchant"),
		AmountTotal:   r.Number("amountTotal"),
		AmountTax:     r.Number("amountTax"),
		Currency:      r.String("currency"),
		Date:          r.String("date"),
		PaymentMethod: r.String("paymentMethod"),
		Category:      r.String("category"),
		InvoiceNumber: r.String("invoiceNumber"),
	}

	if loc := r.Object("location"); loc != nil {
		location := entity.Location{}
		if v := loc.String("city"); v != nil {
			location.City = *v
		}
		if v := loc.String("state"); v != nil {
			location.State = *v
		}
		if v := loc.String("country"); v != nil {
			location.Country = *v
		}
		raw.Location = &location
	}

	if items, ok := r.Array("items"); ok {
		raw.Items = make([]RawLineItem, 0, len(items))
		for i, v := range items {
			item := r.Element("items", i, v)
			if item == nil {
				continue
			}
			line := RawLineItem{}
			if d := item.String("description"); d != nil {
				line.Description = *d
			}
			if a := item.Number("amount"); a != nil {
				line.Amount = *a
			}
			raw.Items = append(raw.Items, line)
		}
	}

	return raw, r.Issues()
}
