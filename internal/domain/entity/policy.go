package entity

import "github.com/shopspring/decimal"

// Severity grades a policy finding
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityBlock Severity = "block"
)

// IsValid returns true if the severity is part of the taxonomy
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarn, SeverityBlock:
		return true
	default:
		return false
	}
}

// RuleScope restricts a rule to a category and/or a city. Nil fields match everything.
type RuleScope struct {
	Category *string `json:"category,omitempty"`
	City     *string `json:"city,omitempty"`
}

// RuleRequirements lists what a matching expense must carry.
// ManagerApproval is accepted but not evaluated yet.
type RuleRequirements struct {
	Receipt         bool `json:"receipt,omitempty"`
	ManagerApproval bool `json:"managerApproval,omitempty"`
}

// PolicyRule is one declarative organizational expense rule
type PolicyRule struct {
	Code        string              `json:"code"`
	Description string              `json:"description"`
	AppliesTo   RuleScope           `json:"appliesTo"`
	Limit       decimal.NullDecimal `json:"limit"`
	Requires    RuleRequirements    `json:"requires"`
}

// PolicyFinding is one outcome of evaluating a rule against an extraction
type PolicyFinding struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Evidence string   `json:"evidence"`
}
