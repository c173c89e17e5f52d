package policy

import (
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/payload"
)

// DecodeRule coerces a stored rule document into the nearest valid PolicyRule.
// The code always comes from the row; malformed document fields are dropped.
func DecodeRule(code string, doc map[string]any) (entity.PolicyRule, []payload.FieldIssue) {
	r := payload.NewReader(doc)
	rule := entity.PolicyRule{Code: code}

	if d := r.String("description"); d != nil {
		rule.Description = *d
	}

	if scope := r.Object("appliesTo"); scope != nil {
		rule.AppliesTo.Category = scope.String("category")
		rule.AppliesTo.City = scope.String("city")
	}

	if limit := r.Number("limit"); limit != nil {
		rule.Limit = decimal.NewNullDecimal(decimal.NewFromFloat(*limit))
	}

	if req := r.Object("requires"); req != nil {
		if v := req.Bool("receipt"); v != nil {
			rule.Requires.Receipt = *v
		}
		if v := req.Bool("managerApproval"); v != nil {
			rule.Requires.ManagerApproval = *v
		}
	}

	return rule, r.Issues()
}
