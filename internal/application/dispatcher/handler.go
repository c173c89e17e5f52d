package dispatcher

import (
	"context"

	"github.com/garyjia/expense-drafts/internal/domain/event"
)

// Handler reacts to a draft event
type Handler func(ctx context.Context, evt *event.Event) error

type namedHandler struct {
	name    string
	handler Handler
}
