// Package policy evaluates organizational expense rules against a canonical extraction.
package policy

import (
	"fmt"
	"strings"

	"github.com/garyjia/expense-drafts/internal/domain/entity"
)

// ReceiptRequiredMessage is attached to every rule that requires a receipt.
// The engine does not check the attachment itself.
const ReceiptRequiredMessage = "Receipt required; attached via upload."

// ReceiptRequirementSuffix is appended to the rule code for receipt notices
const ReceiptRequirementSuffix = "_RECEIPT_REQ"

// Evaluate applies rules in order and returns their findings in the same order.
// It does not modify its inputs.
func Evaluate(extraction entity.ExtractedData, rules []entity.PolicyRule) []entity.PolicyFinding {
	findings := make([]entity.PolicyFinding, 0)
	for _, rule := range rules {
		if !applies(rule.AppliesTo, extraction) {
			continue
		}

		// An unknown total never exceeds a limit
		if rule.Limit.Valid && extraction.AmountTotal.Valid &&
			extraction.AmountTotal.Decimal.GreaterThan(rule.Limit.Decimal) {
			findings = append(findings, entity.PolicyFinding{
				Code:     rule.Code,
				Severity: entity.SeverityWarn,
				Message:  fmt.Sprintf("%s (limit %s)", rule.Description, rule.Limit.Decimal.String()),
				Evidence: fmt.Sprintf("amount=%s", extraction.AmountTotal.Decimal.String()),
			})
		}

		if rule.Requires.Receipt {
			findings = append(findings, entity.PolicyFinding{
				Code:     rule.Code + ReceiptRequirementSuffix,
				Severity: entity.SeverityInfo,
				Message:  ReceiptRequiredMessage,
				Evidence: "",
			})
		}
		// Requires.ManagerApproval produces no finding yet
	}
	return findings
}

// StatusFrom derives the draft status from a set of findings
func StatusFrom(findings []entity.PolicyFinding) entity.DraftStatus {
	for _, f := range findings {
		if f.Severity == entity.SeverityBlock {
			return entity.DraftStatusFlagged
		}
	}
	return entity.DraftStatusValid
}

func applies(scope entity.RuleScope, extraction entity.ExtractedData) bool {
	if scope.Category != nil && *scope.Category != "" &&
		!strings.EqualFold(extraction.CategoryName(), *scope.Category) {
		return false
	}
	if scope.City != nil && *scope.City != "" &&
		!strings.EqualFold(extraction.City(), *scope.City) {
		return false
	}
	return true
}
