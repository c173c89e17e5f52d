// Package normalize maps raw extracted receipt strings to canonical forms.
package normalize

import (
	"strings"

	"github.com/garyjia/expense-drafts/internal/domain/entity"
)

// AliasTable maps an uppercase merchant spelling to its canonical name
type AliasTable map[string]string

// DefaultAliases returns the built-in merchant alias table
func DefaultAliases() AliasTable {
	return AliasTable{
		"MCD":        "McDonald's",
		"MCDONALD'S": "McDonald's",
		"MCDONALDS":  "McDonald's",
	}
}

// Normalizer canonicalizes merchant names and currency codes
type Normalizer struct {
	aliases AliasTable
}

// NewNormalizer creates a normalizer over the given alias table.
// Keys are uppercased so configuration may use any case.
func NewNormalizer(aliases AliasTable) *Normalizer {
	table := make(AliasTable, len(aliases))
	for k, v := range aliases {
		table[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return &Normalizer{aliases: table}
}

// Merchant trims the name and resolves known aliases. Empty input yields nil.
func (n *Normalizer) Merchant(raw *string) *string {
	if raw == nil || *raw == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if alias, ok := n.aliases[strings.ToUpper(trimmed)]; ok {
		return &alias
	}
	return &trimmed
}

// Currency uppercases the code, defaulting to USD. Codes are not checked against ISO 4217.
func (n *Normalizer) Currency(raw *string) string {
	if raw == nil || *raw == "" {
		return entity.DefaultCurrency
	}
	return strings.ToUpper(*raw)
}
