package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/domain/event"
)

// NotifyOnSubmit returns an event handler that tells reviewers about a
// submitted draft. It runs after Submit returned, so failures only reach the log.
func NotifyOnSubmit(drafts port.DraftRepository, notifier port.SubmissionNotifier, logger Logger) func(ctx context.Context, evt *event.Event) error {
	return func(ctx context.Context, evt *event.Event) error {
		draft, err := drafts.GetByID(ctx, evt.DraftID)
		if err != nil {
			return fmt.Errorf("load submitted draft: %w", err)
		}
		if draft == nil {
			return fmt.Errorf("%w: draft %s", ErrNotFound, evt.DraftID)
		}

		if err := notifier.NotifySubmitted(ctx, *draft); err != nil {
			logger.Error("Failed to notify reviewers", "draft_id", evt.DraftID, "error", err)
			return err
		}
		return nil
	}
}
