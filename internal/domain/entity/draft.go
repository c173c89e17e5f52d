package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DraftStatus is the lifecycle state of an expense draft
type DraftStatus string

const (
	DraftStatusNeedsInfo DraftStatus = "needs-info"
	DraftStatusValid     DraftStatus = "valid"
	DraftStatusFlagged   DraftStatus = "flagged"
	DraftStatusProposed  DraftStatus = "proposed"
	DraftStatusSubmitted DraftStatus = "submitted"
	// Approved and Rejected are set by reviewers outside this service.
	DraftStatusApproved DraftStatus = "approved"
	DraftStatusRejected DraftStatus = "rejected"
)

// String returns the string representation of the status
func (s DraftStatus) String() string {
	return string(s)
}

// AISplitAllocation is one GL split suggested by the categorization assistant
type AISplitAllocation struct {
	GLAccount string              `json:"glAccount"`
	Amount    decimal.NullDecimal `json:"amount"`
	Percent   decimal.NullDecimal `json:"percent"`
	Notes     *string             `json:"notes,omitempty"`
}

// ExpenseDraft tracks one receipt through review
type ExpenseDraft struct {
	ID                 string              `json:"id"`
	ReceiptID          string              `json:"receiptId"`
	Extraction         ExtractedData       `json:"extraction"`
	Validation         []PolicyFinding     `json:"validation"`
	Status             DraftStatus         `json:"status"`
	EmployeeID         *string             `json:"employeeId"`
	FunctionalTeamCode *string             `json:"functionalTeamCode"`
	TripID             *string             `json:"tripId"`
	GLAccount          *string             `json:"glAccount"`
	BusinessCategory   *string             `json:"businessCategory"`
	AIConfidence       *float64            `json:"aiConfidence"`
	AILabels           []string            `json:"aiLabels"`
	AIAllocations      []AISplitAllocation `json:"aiAllocations"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`

	// Version guards read-modify-write cycles in the store
	Version int64 `json:"-"`
}

// Clone returns a deep copy of the draft
func (d ExpenseDraft) Clone() ExpenseDraft {
	out := d
	out.Extraction = d.Extraction.Clone()
	if d.Validation != nil {
		out.Validation = append([]PolicyFinding{}, d.Validation...)
	}
	out.EmployeeID = cloneString(d.EmployeeID)
	out.FunctionalTeamCode = cloneString(d.FunctionalTeamCode)
	out.TripID = cloneString(d.TripID)
	out.GLAccount = cloneString(d.GLAccount)
	out.BusinessCategory = cloneString(d.BusinessCategory)
	if d.AIConfidence != nil {
		c := *d.AIConfidence
		out.AIConfidence = &c
	}
	if d.AILabels != nil {
		out.AILabels = append([]string{}, d.AILabels...)
	}
	if d.AIAllocations != nil {
		out.AIAllocations = make([]AISplitAllocation, len(d.AIAllocations))
		for i, a := range d.AIAllocations {
			a.Notes = cloneString(a.Notes)
			out.AIAllocations[i] = a
		}
	}
	return out
}
