package entity

import "time"

// OCR status constants for ReceiptAsset
const (
	OCRStatusPending = "pending"
	OCRStatusDone    = "done"
	OCRStatusError   = "error"
)

// ReceiptAsset is an uploaded receipt image or PDF
type ReceiptAsset struct {
	ID         string    `json:"id"`
	EmployeeID *string   `json:"employeeId"`
	SHA256     string    `json:"sha256"`
	Mime       string    `json:"mime"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"sizeBytes"`
	StorageKey string    `json:"storageKey"`
	OCRStatus  string    `json:"ocrStatus"`
	OCRModel   *string   `json:"ocrModel,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
