package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-drafts/internal/application/port"
	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/payload"
	"github.com/garyjia/expense-drafts/internal/domain/policy"
	"github.com/garyjia/expense-drafts/internal/infrastructure/persistence/sqlite"
)

// RuleRepository implements port.RuleRepository
type RuleRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new policy rule repository
func NewRuleRepository(db *sqlite.DB, logger *zap.Logger) port.RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

// List returns active rules by position, then code. An unreadable rule document
// loads as a rule carrying only its code.
func (r *RuleRepository) List(ctx context.Context) ([]entity.PolicyRule, error) {
	query := `SELECT code, rule FROM policy_rules WHERE active = 1 ORDER BY position, code`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list policy rules", zap.Error(err))
		return nil, fmt.Errorf("failed to list policy rules: %w", err)
	}
	defer rows.Close()

	rules := make([]entity.PolicyRule, 0)
	for rows.Next() {
		var code, doc string
		if err := rows.Scan(&code, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan policy rule: %w", err)
		}

		obj, err := payload.DecodeObject([]byte(doc))
		if err != nil {
			r.logger.Warn("Policy rule document is not a JSON object",
				zap.String("code", code),
				zap.Error(err))
			obj = map[string]any{}
		}

		rule, issues := policy.DecodeRule(code, obj)
		for _, issue := range issues {
			r.logger.Warn("Dropped policy rule field",
				zap.String("code", code),
				zap.String("issue", issue.String()))
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate policy rules: %w", err)
	}
	return rules, nil
}

// Upsert stores an active rule document
func (r *RuleRepository) Upsert(ctx context.Context, code string, position int, doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode policy rule %s: %w", code, err)
	}

	query := `
		INSERT INTO policy_rules (code, position, rule, active) VALUES (?, ?, ?, 1)
		ON CONFLICT(code) DO UPDATE SET position = excluded.position, rule = excluded.rule, active = 1
	`
	if _, err := r.db.Executor(ctx).ExecContext(ctx, query, code, position, string(data)); err != nil {
		r.logger.Error("Failed to upsert policy rule", zap.String("code", code), zap.Error(err))
		return fmt.Errorf("failed to upsert policy rule: %w", err)
	}
	return nil
}
