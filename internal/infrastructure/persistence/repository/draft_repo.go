package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/infrastructure/persistence/sqlite"
)

const draftColumns = `
	id, receipt_id, extraction, validation, status,
	employee_id, functional_team_code, trip_id,
	gl_account, business_category, ai_confidence, ai_labels, ai_allocations,
	version, created_at, updated_at`

// DraftRepository implements port.DraftRepository
type DraftRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewDraftRepository creates a new draft repository
func NewDraftRepository(db *sqlite.DB, logger *zap.Logger) port.DraftRepository {
	return &DraftRepository{
		db:     db,
		logger: logger,
	}
}

// draftRow holds the encoded columns shared by insert and update
type draftRow struct {
	extraction  string
	validation  string
	labels      sql.NullString
	allocations sql.NullString
}

func encodeDraft(draft *entity.ExpenseDraft) (draftRow, error) {
	var row draftRow

	extraction, err := json.Marshal(draft.Extraction)
	if err != nil {
		return row, fmt.Errorf("failed to encode extraction: %w", err)
	}
	row.extraction = string(extraction)

	validation := draft.Validation
	if validation == nil {
		validation = []entity.PolicyFinding{}
	}
	data, err := json.Marshal(validation)
	if err != nil {
		return row, fmt.Errorf("failed to encode validation: %w", err)
	}
	row.validation = string(data)

	if row.labels, err = nullJSON(draft.AILabels); err != nil {
		return row, fmt.Errorf("failed to encode ai labels: %w", err)
	}
	if row.allocations, err = nullJSON(draft.AIAllocations); err != nil {
		return row, fmt.Errorf("failed to encode ai allocations: %w", err)
	}
	return row, nil
}

// Create creates a new draft
func (r *DraftRepository) Create(ctx context.Context, draft *entity.ExpenseDraft) error {
	draft.ID = uuid.NewString()
	draft.Version = 1
	draft.CreatedAt = time.Now().UTC()
	if draft.UpdatedAt.IsZero() {
		draft.UpdatedAt = draft.CreatedAt
	}

	row, err := encodeDraft(draft)
	if err != nil {
		return err
	}

	query := `INSERT INTO expense_drafts (` + draftColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		draft.ID,
		draft.ReceiptID,
		row.extraction,
		row.validation,
		draft.Status.String(),
		nullString(draft.EmployeeID),
		nullString(draft.FunctionalTeamCode),
		nullString(draft.TripID),
		nullString(draft.GLAccount),
		nullString(draft.BusinessCategory),
		nullFloat(draft.AIConfidence),
		row.labels,
		row.allocations,
		draft.Version,
		draft.CreatedAt,
		draft.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create draft",
			zap.String("receipt_id", draft.ReceiptID),
			zap.Error(err))
		return fmt.Errorf("failed to create draft: %w", err)
	}

	r.logger.Info("Draft created",
		zap.String("id", draft.ID),
		zap.String("receipt_id", draft.ReceiptID))
	return nil
}

// GetByID retrieves a draft by ID
func (r *DraftRepository) GetByID(ctx context.Context, id string) (*entity.ExpenseDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM expense_drafts WHERE id = ?`

	draft, err := scanDraft(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get draft", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return draft, nil
}

// Update writes the draft when its version matches the stored row
func (r *DraftRepository) Update(ctx context.Context, draft *entity.ExpenseDraft) error {
	row, err := encodeDraft(draft)
	if err != nil {
		return err
	}

	query := `
		UPDATE expense_drafts SET
			extraction = ?, validation = ?, status = ?,
			employee_id = ?, functional_team_code = ?, trip_id = ?,
			gl_account = ?, business_category = ?, ai_confidence = ?,
			ai_labels = ?, ai_allocations = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		row.extraction,
		row.validation,
		draft.Status.String(),
		nullString(draft.EmployeeID),
		nullString(draft.FunctionalTeamCode),
		nullString(draft.TripID),
		nullString(draft.GLAccount),
		nullString(draft.BusinessCategory),
		nullFloat(draft.AIConfidence),
		row.labels,
		row.allocations,
		draft.UpdatedAt.UTC(),
		draft.ID,
		draft.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update draft", zap.String("id", draft.ID), zap.Error(err))
		return fmt.Errorf("failed to update draft: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		r.logger.Warn("Draft version conflict",
			zap.String("id", draft.ID),
			zap.Int64("version", draft.Version))
		return fmt.Errorf("%w: draft %s", port.ErrVersionConflict, draft.ID)
	}

	draft.Version++
	return nil
}

// List returns the most recently created drafts first
func (r *DraftRepository) List(ctx context.Context, limit int) ([]*entity.ExpenseDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM expense_drafts
		ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list drafts", zap.Error(err))
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	drafts := make([]*entity.ExpenseDraft, 0)
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			r.logger.Error("Failed to scan draft", zap.Error(err))
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		drafts = append(drafts, draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate drafts: %w", err)
	}
	return drafts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDraft(row rowScanner) (*entity.ExpenseDraft, error) {
	var (
		draft                          entity.ExpenseDraft
		extraction, validation, status string
		employeeID, teamCode, tripID   sql.NullString
		glAccount, businessCategory    sql.NullString
		labels, allocations            sql.NullString
		confidence                     sql.NullFloat64
	)

	err := row.Scan(
		&draft.ID,
		&draft.ReceiptID,
		&extraction,
		&validation,
		&status,
		&employeeID,
		&teamCode,
		&tripID,
		&glAccount,
		&businessCategory,
		&confidence,
		&labels,
		&allocations,
		&draft.Version,
		&draft.CreatedAt,
		&draft.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(extraction), &draft.Extraction); err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}
	if err := json.Unmarshal([]byte(validation), &draft.Validation); err != nil {
		return nil, fmt.Errorf("failed to decode validation: %w", err)
	}
	if draft.AILabels, err = decodeNullJSON[string](labels, "ai_labels"); err != nil {
		return nil, err
	}
	if draft.AIAllocations, err = decodeNullJSON[entity.AISplitAllocation](allocations, "ai_allocations"); err != nil {
		return nil, err
	}

	draft.Status = entity.DraftStatus(status)
	draft.EmployeeID = stringPtr(employeeID)
	draft.FunctionalTeamCode = stringPtr(teamCode)
	draft.TripID = stringPtr(tripID)
	draft.GLAccount = stringPtr(glAccount)
	draft.BusinessCategory = stringPtr(businessCategory)
	draft.AIConfidence = floatPtr(confidence)
	draft.CreatedAt = draft.CreatedAt.UTC()
	draft.UpdatedAt = draft.UpdatedAt.UTC()
	return &draft, nil
}
