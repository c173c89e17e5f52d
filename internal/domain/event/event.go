package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is something that happened to a receipt or draft
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	DraftID   string         `json:"draft_id,omitempty"`
	ReceiptID string         `json:"receipt_id,omitempty"`
	Status    string         `json:"status,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent creates an event with a generated ID and the current time
func NewEvent(eventType Type, draftID, receiptID string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		DraftID:   draftID,
		ReceiptID: receiptID,
		Payload:   map[string]any{},
		Timestamp: time.Now().UTC(),
	}
}

// WithStatus returns a copy of the event carrying the draft status after the change
func (e *Event) WithStatus(status string) *Event {
	out := e.copy()
	out.Status = status
	return out
}

// WithPayload returns a copy of the event with key set in its payload
func (e *Event) WithPayload(key string, value any) *Event {
	out := e.copy()
	out.Payload[key] = value
	return out
}

// PayloadString retrieves a string value from the payload
func (e *Event) PayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// PayloadInt retrieves an integer value from the payload
func (e *Event) PayloadInt(key string) int {
	switch v := e.Payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (e *Event) copy() *Event {
	out := *e
	out.Payload = make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		out.Payload[k] = v
	}
	return &out
}
