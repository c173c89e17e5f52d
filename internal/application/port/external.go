package port

import (
	"context"
	"errors"

	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/event"
)

// ErrUnreadableReceipt marks receipt bytes that could not be turned into an
// image a vision provider accepts. It is a client error, not a provider outage.
var ErrUnreadableReceipt = errors.New("unreadable receipt")

// Extractor reads a receipt image and returns the raw, untrusted extraction object
type Extractor interface {
	Extract(ctx context.Context, image []byte, mime string) (map[string]any, error)

	// Name identifies the provider and model, e.g. "openai:gpt-4o-mini"
	Name() string
}

// CategorizeRequest is the context handed to the categorization assistant
type CategorizeRequest struct {
	Draft     entity.ExpenseDraft
	Employees []entity.Employee
	Teams     []entity.FunctionalTeam
	Trips     []entity.Trip
}

// Categorizer asks the AI assistant for a categorization suggestion
type Categorizer interface {
	Suggest(ctx context.Context, req CategorizeRequest) (map[string]any, error)
}

// FileStorage stores receipt binaries under relative keys
type FileStorage interface {
	Save(ctx context.Context, key string, content []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string) error
}

// SubmissionNotifier tells reviewers that a draft was submitted
type SubmissionNotifier interface {
	NotifySubmitted(ctx context.Context, draft entity.ExpenseDraft) error
}

// EventPublisher fans draft lifecycle events out to subscribers
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event)
}

// DraftWorkbookWriter renders drafts as a spreadsheet file
type DraftWorkbookWriter interface {
	Write(drafts []*entity.ExpenseDraft) ([]byte, error)
}
