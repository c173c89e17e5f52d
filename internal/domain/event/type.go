package event

// Type identifies the type of draft event
type Type string

const (
	TypeReceiptUploaded  Type = "receipt.uploaded"
	TypeDraftCreated     Type = "draft.created"
	TypeDraftEvaluated   Type = "draft.evaluated"
	TypeDraftEdited      Type = "draft.edited"
	TypeDraftProposed    Type = "draft.proposed"
	TypeDraftSubmitted   Type = "draft.submitted"
	TypeExtractionFailed Type = "extraction.failed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeReceiptUploaded,
		TypeDraftCreated,
		TypeDraftEvaluated,
		TypeDraftEdited,
		TypeDraftProposed,
		TypeDraftSubmitted,
		TypeExtractionFailed:
		return true
	default:
		return false
	}
}
