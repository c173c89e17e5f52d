package entity

import "github.com/shopspring/decimal"

// DefaultCurrency is used whenever an extraction does not name a currency
const DefaultCurrency = "USD"

// Location is the optional place of purchase printed on a receipt
type Location struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// LineItem is one purchased item on a receipt
type LineItem struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// ExtractedData is the canonical receipt payload produced by reconciliation.
// When Items is non-empty, AmountTotal always equals the rounded sum of item amounts.
type ExtractedData struct {
	Merchant      *string             `json:"merchant"`
	AmountTotal   decimal.NullDecimal `json:"amountTotal"`
	AmountTax     decimal.NullDecimal `json:"amountTax"`
	Currency      string              `json:"currency"`
	Items         []LineItem          `json:"items"`
	Date          *string             `json:"date"`
	Location      *Location           `json:"location,omitempty"`
	PaymentMethod *string             `json:"paymentMethod"`
	Category      *string             `json:"category"`
	InvoiceNumber *string             `json:"invoiceNumber"`
}

// City returns the location city or "" when unknown
func (e ExtractedData) City() string {
	if e.Location == nil {
		return ""
	}
	return e.Location.City
}

// CategoryName returns the category or "" when unknown
func (e ExtractedData) CategoryName() string {
	if e.Category == nil {
		return ""
	}
	return *e.Category
}

// Clone returns a copy that shares no slices or pointers with e
func (e ExtractedData) Clone() ExtractedData {
	out := e
	out.Merchant = cloneString(e.Merchant)
	out.Date = cloneString(e.Date)
	out.PaymentMethod = cloneString(e.PaymentMethod)
	out.Category = cloneString(e.Category)
	out.InvoiceNumber = cloneString(e.InvoiceNumber)
	if e.Location != nil {
		loc := *e.Location
		out.Location = &loc
	}
	if e.Items != nil {
		out.Items = append([]LineItem{}, e.Items...)
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
