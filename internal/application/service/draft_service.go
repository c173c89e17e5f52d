package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/event"
	"github.com/garyjia/expense-drafts/internal/domain/extraction"
	"github.com/garyjia/expense-drafts/internal/domain/payload"
	"github.com/garyjia/expense-drafts/internal/domain/policy"
	"github.com/garyjia/expense-drafts/internal/domain/suggestion"
	"github.com/garyjia/expense-drafts/internal/domain/workflow"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// DraftEdit is a manual edit of a draft. Extraction is required; nil assignment
// fields clear the stored value.
type DraftEdit struct {
	Extraction         *entity.ExtractedData
	EmployeeID         *string
	FunctionalTeamCode *string
	TripID             *string
	AILabels           []string
}

// CategorizeResult is the merged draft plus the suggestion fields that were accepted
type CategorizeResult struct {
	Draft      *entity.ExpenseDraft
	Suggestion map[string]any
	Dropped    []payload.FieldIssue
}

// DraftService runs receipts through extraction, policy review, AI categorization
// and submission
type DraftService interface {
	ExtractReceipt(ctx context.Context, receiptID string) (*entity.ExpenseDraft, error)
	EvaluatePolicy(ctx context.Context, draftID string) (*entity.ExpenseDraft, error)
	UpdateDraft(ctx context.Context, draftID string, edit DraftEdit) (*entity.ExpenseDraft, error)
	Categorize(ctx context.Context, draftID string) (*CategorizeResult, error)
	Submit(ctx context.Context, draftID string) (*entity.ExpenseDraft, error)
	GetDraft(ctx context.Context, draftID string) (*entity.ExpenseDraft, error)
	ListDrafts(ctx context.Context, limit int) ([]*entity.ExpenseDraft, error)
}

// DraftServiceDeps lists the collaborators of the draft service.
// Events and Metrics are optional.
type DraftServiceDeps struct {
	Drafts      port.DraftRepository
	Receipts    port.ReceiptRepository
	Rules       port.RuleRepository
	References  port.ReferenceRepository
	Storage     port.FileStorage
	Extractor   port.Extractor
	Categorizer port.Categorizer
	TxManager   port.TransactionManager
	Events      port.EventPublisher
	Metrics     Recorder
	Reconciler  *extraction.Reconciler
	Lifecycle   *workflow.Lifecycle
	Logger      Logger
}

type draftServiceImpl struct {
	drafts      port.DraftRepository
	receipts    port.ReceiptRepository
	rules       port.RuleRepository
	references  port.ReferenceRepository
	storage     port.FileStorage
	extractor   port.Extractor
	categorizer port.Categorizer
	txManager   port.TransactionManager
	events      port.EventPublisher
	metrics     Recorder
	reconciler  *extraction.Reconciler
	lifecycle   *workflow.Lifecycle
	merger      *suggestion.Merger
	logger      Logger
}

// NewDraftService creates a new DraftService
func NewDraftService(deps DraftServiceDeps) DraftService {
	events := deps.Events
	if events == nil {
		events = nopPublisher{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &draftServiceImpl{
		drafts:      deps.Drafts,
		receipts:    deps.Receipts,
		rules:       deps.Rules,
		references:  deps.References,
		storage:     deps.Storage,
		extractor:   deps.Extractor,
		categorizer: deps.Categorizer,
		txManager:   deps.TxManager,
		events:      events,
		metrics:     metrics,
		reconciler:  deps.Reconciler,
		lifecycle:   deps.Lifecycle,
		merger:      suggestion.NewMerger(deps.Lifecycle),
		logger:      deps.Logger,
	}
}

// ExtractReceipt runs the vision extractor over a stored receipt and creates a
// draft from the reconciled result
func (s *draftServiceImpl) ExtractReceipt(ctx context.Context, receiptID string) (*entity.ExpenseDraft, error) {
	receipt, err := s.receipts.GetByID(ctx, receiptID)
	if err != nil {
		s.logger.Error("Failed to get receipt", "error", err, "receipt_id", receiptID)
		return nil, fmt.Errorf("%w: get receipt %s: %w", ErrStoreFailed, receiptID, err)
	}
	if receipt == nil {
		return nil, fmt.Errorf("%w: receipt %s", ErrNotFound, receiptID)
	}

	content, err := s.storage.Read(ctx, receipt.StorageKey)
	if err != nil {
		s.logger.Error("Failed to read receipt file", "error", err, "receipt_id", receiptID, "key", receipt.StorageKey)
		return nil, fmt.Errorf("%w: read receipt file: %w", ErrStoreFailed, err)
	}

	provider := s.extractor.Name()
	s.logger.Info("Extracting receipt", "receipt_id", receiptID, "provider", provider)

	start := time.Now()
	obj, err := s.extractor.Extract(ctx, content, receipt.Mime)
	if err != nil {
		s.metrics.ExtractionObserved(provider, OutcomeFailure, time.Since(start))
		s.logger.Error("Extraction failed", "error", err, "receipt_id", receiptID, "provider", provider)
		if uerr := s.receipts.UpdateOCRStatus(ctx, receiptID, entity.OCRStatusError, &provider); uerr != nil {
			s.logger.Error("Failed to mark receipt OCR error", "error", uerr, "receipt_id", receiptID)
		}
		s.events.Publish(ctx, event.NewEvent(event.TypeExtractionFailed, "", receiptID).WithPayload("provider", provider))
		if errors.Is(err, port.ErrUnreadableReceipt) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, provider, err)
	}
	s.metrics.ExtractionObserved(provider, OutcomeSuccess, time.Since(start))

	raw, issues := extraction.Decode(obj)
	s.reportIssues(PayloadExtraction, issues, "receipt_id", receiptID)

	draft := s.lifecycle.NewDraft(receiptID, s.reconciler.Reconcile(raw))
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.drafts.Create(ctx, &draft); err != nil {
			return fmt.Errorf("create draft: %w", err)
		}
		if err := s.receipts.UpdateOCRStatus(ctx, receiptID, entity.OCRStatusDone, &provider); err != nil {
			return fmt.Errorf("mark receipt done: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to persist draft", "error", err, "receipt_id", receiptID)
		if uerr := s.receipts.UpdateOCRStatus(ctx, receiptID, entity.OCRStatusError, &provider); uerr != nil {
			s.logger.Error("Failed to mark receipt OCR error", "error", uerr, "receipt_id", receiptID)
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	s.logger.Info("Draft created", "draft_id", draft.ID, "receipt_id", receiptID, "items", len(draft.Extraction.Items))
	s.publish(ctx, event.TypeDraftCreated, &draft)
	return &draft, nil
}

// EvaluatePolicy evaluates the current rules and stores findings and status
func (s *draftServiceImpl) EvaluatePolicy(ctx context.Context, draftID string) (*entity.ExpenseDraft, error) {
	draft, err := s.load(ctx, draftID)
	if err != nil {
		return nil, err
	}

	rules, err := s.rules.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list policy rules", "error", err, "draft_id", draftID)
		return nil, fmt.Errorf("%w: list rules: %w", ErrStoreFailed, err)
	}

	findings := policy.Evaluate(draft.Extraction, rules)
	updated, err := s.lifecycle.ApplyValidation(ctx, *draft, findings)
	if err != nil {
		return nil, s.lifecycleError(draftID, err)
	}
	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}

	s.metrics.FindingsRecorded(findings)
	s.logger.Info("Policy evaluated", "draft_id", draftID, "rules", len(rules), "findings", len(findings), "status", updated.Status)
	s.publish(ctx, event.TypeDraftEvaluated, &updated)
	return &updated, nil
}

// UpdateDraft replaces the extraction and assignments. The extraction is
// reconciled again so line items and total stay consistent.
func (s *draftServiceImpl) UpdateDraft(ctx context.Context, draftID string, edit DraftEdit) (*entity.ExpenseDraft, error) {
	if edit.Extraction == nil {
		return nil, fmt.Errorf("%w: missing extraction", ErrInvalidInput)
	}

	draft, err := s.load(ctx, draftID)
	if err != nil {
		return nil, err
	}

	updated := s.lifecycle.Edit(*draft, workflow.DraftEdit{
		Extraction:         s.reconciler.ReconcileData(*edit.Extraction),
		EmployeeID:         edit.EmployeeID,
		FunctionalTeamCode: edit.FunctionalTeamCode,
		TripID:             edit.TripID,
		AILabels:           edit.AILabels,
	})
	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}

	s.logger.Info("Draft edited", "draft_id", draftID)
	s.publish(ctx, event.TypeDraftEdited, &updated)
	return &updated, nil
}

// Categorize asks the assistant for a suggestion and merges the accepted fields
func (s *draftServiceImpl) Categorize(ctx context.Context, draftID string) (*CategorizeResult, error) {
	draft, err := s.load(ctx, draftID)
	if err != nil {
		return nil, err
	}

	req := port.CategorizeRequest{Draft: *draft}
	if req.Employees, err = s.references.ListEmployees(ctx); err != nil {
		return nil, fmt.Errorf("%w: list employees: %w", ErrStoreFailed, err)
	}
	if req.Teams, err = s.references.ListActiveTeams(ctx); err != nil {
		return nil, fmt.Errorf("%w: list teams: %w", ErrStoreFailed, err)
	}
	if req.Trips, err = s.references.ListActiveTrips(ctx); err != nil {
		return nil, fmt.Errorf("%w: list trips: %w", ErrStoreFailed, err)
	}

	obj, err := s.categorizer.Suggest(ctx, req)
	if err != nil {
		s.logger.Error("Categorization failed", "error", err, "draft_id", draftID)
		return nil, fmt.Errorf("%w: %w", ErrCategorizeFailed, err)
	}

	sugg, issues := suggestion.Decode(obj)
	s.reportIssues(PayloadSuggestion, issues, "draft_id", draftID)

	updated := s.merger.Merge(*draft, sugg)
	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}

	s.logger.Info("Suggestion merged", "draft_id", draftID, "dropped_fields", len(issues))
	s.publish(ctx, event.TypeDraftProposed, &updated)
	return &CategorizeResult{
		Draft:      &updated,
		Suggestion: sugg.Fields(),
		Dropped:    issues,
	}, nil
}

// Submit marks the draft submitted. Submitting twice returns the stored draft unchanged.
func (s *draftServiceImpl) Submit(ctx context.Context, draftID string) (*entity.ExpenseDraft, error) {
	draft, err := s.load(ctx, draftID)
	if err != nil {
		return nil, err
	}

	updated, changed, err := s.lifecycle.Submit(ctx, *draft)
	if err != nil {
		return nil, s.lifecycleError(draftID, err)
	}
	if !changed {
		s.logger.Info("Draft already submitted", "draft_id", draftID)
		return draft, nil
	}
	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}

	s.logger.Info("Draft submitted", "draft_id", draftID)
	s.publish(ctx, event.TypeDraftSubmitted, &updated)
	return &updated, nil
}

// GetDraft returns one draft
func (s *draftServiceImpl) GetDraft(ctx context.Context, draftID string) (*entity.ExpenseDraft, error) {
	return s.load(ctx, draftID)
}

// ListDrafts returns the newest drafts. Limits outside (0, 100] fall back to 20.
func (s *draftServiceImpl) ListDrafts(ctx context.Context, limit int) ([]*entity.ExpenseDraft, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	drafts, err := s.drafts.List(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to list drafts", "error", err)
		return nil, fmt.Errorf("%w: list drafts: %w", ErrStoreFailed, err)
	}
	return drafts, nil
}

func (s *draftServiceImpl) load(ctx context.Context, draftID string) (*entity.ExpenseDraft, error) {
	draft, err := s.drafts.GetByID(ctx, draftID)
	if err != nil {
		s.logger.Error("Failed to get draft", "error", err, "draft_id", draftID)
		return nil, fmt.Errorf("%w: get draft %s: %w", ErrStoreFailed, draftID, err)
	}
	if draft == nil {
		return nil, fmt.Errorf("%w: draft %s", ErrNotFound, draftID)
	}
	return draft, nil
}

func (s *draftServiceImpl) save(ctx context.Context, draft *entity.ExpenseDraft) error {
	if err := s.drafts.Update(ctx, draft); err != nil {
		s.logger.Error("Failed to update draft", "error", err, "draft_id", draft.ID)
		return fmt.Errorf("%w: update draft %s: %w", ErrStoreFailed, draft.ID, err)
	}
	return nil
}

// lifecycleError reports a draft whose stored status the lifecycle does not know
func (s *draftServiceImpl) lifecycleError(draftID string, err error) error {
	s.logger.Error("Draft lifecycle rejected stored status", "error", err, "draft_id", draftID)
	return fmt.Errorf("%w: draft %s: %w", ErrStoreFailed, draftID, err)
}

func (s *draftServiceImpl) reportIssues(payloadName string, issues []payload.FieldIssue, idKey, id string) {
	if len(issues) == 0 {
		return
	}
	fields := make([]string, 0, len(issues))
	for _, issue := range issues {
		fields = append(fields, issue.String())
	}
	s.metrics.FieldsDropped(payloadName, len(issues))
	s.logger.Info("Dropped malformed payload fields", idKey, id, "payload", payloadName, "fields", fields)
}

func (s *draftServiceImpl) publish(ctx context.Context, eventType event.Type, draft *entity.ExpenseDraft) {
	s.events.Publish(ctx, event.NewEvent(eventType, draft.ID, draft.ReceiptID).WithStatus(draft.Status.String()))
}
