package port

import (
	"context"
	"errors"

	"github.com/garyjia/expense-drafts/internal/domain/entity"
)

// ErrVersionConflict is returned by DraftRepository.Update when the stored draft
// changed since it was read
var ErrVersionConflict = errors.New("draft version conflict")

// DraftRepository persists expense drafts. Lookups return (nil, nil) when no row exists.
type DraftRepository interface {
	// Create assigns ID, CreatedAt and the initial version, and stores the draft
	Create(ctx context.Context, draft *entity.ExpenseDraft) error

	GetByID(ctx context.Context, id string) (*entity.ExpenseDraft, error)

	// Update stores draft if its Version still matches the stored row, then bumps Version
	Update(ctx context.Context, draft *entity.ExpenseDraft) error

	// List returns drafts newest first
	List(ctx context.Context, limit int) ([]*entity.ExpenseDraft, error)
}

// ReceiptRepository persists uploaded receipt metadata
type ReceiptRepository interface {
	// Create assigns ID and CreatedAt
	Create(ctx context.Context, receipt *entity.ReceiptAsset) error
	GetByID(ctx context.Context, id string) (*entity.ReceiptAsset, error)
	SetStorageKey(ctx context.Context, id, key string) error
	UpdateOCRStatus(ctx context.Context, id string, status string, model *string) error
}

// RuleRepository supplies policy rules in evaluation order
type RuleRepository interface {
	List(ctx context.Context) ([]entity.PolicyRule, error)

	// Upsert stores the rule document for code at the given evaluation position
	Upsert(ctx context.Context, code string, position int, doc map[string]any) error
}

// ReferenceRepository reads employees, functional teams and trips
type ReferenceRepository interface {
	ListEmployees(ctx context.Context) ([]entity.Employee, error)
	ListActiveTeams(ctx context.Context) ([]entity.FunctionalTeam, error)
	ListActiveTrips(ctx context.Context) ([]entity.Trip, error)

	// Create* assign CreatedAt (and the ID for employees and trips)
	CreateEmployee(ctx context.Context, employee *entity.Employee) error
	CreateTeam(ctx context.Context, team *entity.FunctionalTeam) error
	CreateTrip(ctx context.Context, trip *entity.Trip) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
