package workflow

import (
	"context"
	"time"

	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/policy"
)

// Clock returns the current time; injected so tests control updatedAt stamps
type Clock func() time.Time

// DraftEdit is a manual replacement of a draft's extraction and assignments
type DraftEdit struct {
	Extraction         entity.ExtractedData
	EmployeeID         *string
	FunctionalTeamCode *string
	TripID             *string
	AILabels           []string
}

// Lifecycle owns the status field of expense drafts. Every method returns a new
// draft value and leaves its argument untouched.
type Lifecycle struct {
	builder StateMachineBuilder
	now     Clock
}

// NewLifecycle creates the draft lifecycle. A nil clock uses time.Now in UTC.
func NewLifecycle(now Clock) *Lifecycle {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Lifecycle{
		builder: newDraftBuilder(),
		now:     now,
	}
}

// newDraftBuilder wires the draft transitions. Policy evaluation and AI proposals
// are accepted from every state, including submitted. Submitting an already
// submitted draft is handled by Submit as a no-op.
func newDraftBuilder() StateMachineBuilder {
	b := NewBuilder()
	for _, s := range AllStates() {
		cfg := b.Configure(s).
			Permit(TriggerEvaluatePass, StateValid).
			Permit(TriggerEvaluateFlag, StateFlagged).
			Permit(TriggerPropose, StateProposed)
		if s != StateSubmitted {
			cfg.Permit(TriggerSubmit, StateSubmitted)
		}
	}
	return b
}

// NewDraft creates the draft for a freshly reconciled extraction. Identity and
// creation time are assigned by the store.
func (l *Lifecycle) NewDraft(receiptID string, extraction entity.ExtractedData) entity.ExpenseDraft {
	return entity.ExpenseDraft{
		ReceiptID:  receiptID,
		Extraction: extraction.Clone(),
		Validation: []entity.PolicyFinding{},
		Status:     StateNeedsInfo,
	}
}

// ApplyValidation stores findings and overwrites the status with the one they imply,
// whatever the current status is.
func (l *Lifecycle) ApplyValidation(ctx context.Context, draft entity.ExpenseDraft, findings []entity.PolicyFinding) (entity.ExpenseDraft, error) {
	trigger := TriggerEvaluatePass
	if policy.StatusFrom(findings) == StateFlagged {
		trigger = TriggerEvaluateFlag
	}

	out, err := l.fire(ctx, draft, trigger)
	if err != nil {
		return draft, err
	}
	out.Validation = append([]entity.PolicyFinding{}, findings...)
	return out, nil
}

// Propose marks the draft as carrying an AI suggestion. Proposals are accepted
// from any status, unknown ones included, so it cannot fail.
func (l *Lifecycle) Propose(draft entity.ExpenseDraft) entity.ExpenseDraft {
	out := draft.Clone()
	out.Status = StateProposed
	out.UpdatedAt = l.now()
	return out
}

// Submit moves the draft to submitted. changed is false when it already was,
// in which case the draft is returned untouched.
func (l *Lifecycle) Submit(ctx context.Context, draft entity.ExpenseDraft) (out entity.ExpenseDraft, changed bool, err error) {
	if draft.Status == StateSubmitted {
		return draft, false, nil
	}
	out, err = l.fire(ctx, draft, TriggerSubmit)
	if err != nil {
		return draft, false, err
	}
	return out, true, nil
}

// Edit replaces extraction and assignment fields. The status is left alone;
// callers re-run policy evaluation for a fresh one.
func (l *Lifecycle) Edit(draft entity.ExpenseDraft, edit DraftEdit) entity.ExpenseDraft {
	out := draft.Clone()
	out.Extraction = edit.Extraction.Clone()
	out.EmployeeID = copyString(edit.EmployeeID)
	out.FunctionalTeamCode = copyString(edit.FunctionalTeamCode)
	out.TripID = copyString(edit.TripID)
	if edit.AILabels != nil {
		out.AILabels = append([]string{}, edit.AILabels...)
	} else {
		out.AILabels = nil
	}
	out.UpdatedAt = l.now()
	return out
}

func (l *Lifecycle) fire(ctx context.Context, draft entity.ExpenseDraft, trigger Trigger) (entity.ExpenseDraft, error) {
	machine, err := l.builder.Build(draft.Status)
	if err != nil {
		return draft, err
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return draft, err
	}

	out := draft.Clone()
	out.Status = machine.State()
	out.UpdatedAt = l.now()
	return out, nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
