// Package suggestion validates categorization suggestions from the AI assistant
// and folds the accepted fields into an expense draft.
package suggestion

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/payload"
)

// Assignment is a nullable field that also tracks whether it was sent at all.
// Present with a nil Value means "unassign".
type Assignment struct {
	Present bool
	Value   *string
}

// Suggestion holds the fields of a suggestion payload that passed validation.
// Nil or non-present fields leave the draft unchanged.
type Suggestion struct {
	Category           *string
	BusinessCategory   *string
	GLAccount          *string
	EmployeeID         Assignment
	FunctionalTeamCode Assignment
	TripID             Assignment
	Confidence         *float64

	// Notes and SplitAllocations replace the draft's labels and allocations
	// whenever the payload carried an array, even one that cleaned to nothing.
	HasNotes         bool
	Notes            []string
	HasAllocations   bool
	SplitAllocations []entity.AISplitAllocation
}

// Decode type-checks every field independently. Malformed fields are dropped
// and reported; decoding never fails.
func Decode(obj map[string]any) (Suggestion, []payload.FieldIssue) {
	r := payload.NewReader(obj)

	s := Suggestion{
		BusinessCategory: r.String("businessCategory"),
		GLAccount:        r.String("glAccount"),
	}
	// an empty category would wipe the extracted one
	if c := r.String("category"); c != nil && *c != "" {
		s.Category = c
	}
	s.EmployeeID = assignment(r, "employeeId")
	s.FunctionalTeamCode = assignment(r, "functionalTeamCode")
	s.TripID = assignment(r, "tripId")

	if c := r.Number("confidence"); c != nil {
		v := clamp01(*c)
		s.Confidence = &v
	}

	if notes, ok := r.Array("notes"); ok {
		s.HasNotes = true
		for i, v := range notes {
			str, isString := v.(string)
			if !isString {
				r.Drop("notes["+strconv.Itoa(i)+"]", "expected string")
				continue
			}
			if t := strings.TrimSpace(str); t != "" {
				s.Notes = append(s.Notes, t)
			}
		}
	}

	if allocs, ok := r.Array("splitAllocations"); ok {
		s.HasAllocations = true
		for i, v := range allocs {
			item := r.Element("splitAllocations", i, v)
			if item == nil {
				continue
			}
			if alloc, ok := decodeAllocation(item); ok {
				s.SplitAllocations = append(s.SplitAllocations, alloc)
			} else {
				r.Drop("splitAllocations["+strconv.Itoa(i)+"]", "missing glAccount")
			}
		}
	}

	return s, r.Issues()
}

func decodeAllocation(item *payload.Reader) (entity.AISplitAllocation, bool) {
	gl := item.TrimmedString("glAccount")
	if gl == nil {
		return entity.AISplitAllocation{}, false
	}
	alloc := entity.AISplitAllocation{
		GLAccount: *gl,
		Notes:     item.String("notes"),
	}
	if a := item.Number("amount"); a != nil {
		alloc.Amount = decimal.NewNullDecimal(decimal.NewFromFloat(*a))
	}
	if p := item.Number("percent"); p != nil {
		alloc.Percent = decimal.NewNullDecimal(decimal.NewFromFloat(*p))
	}
	return alloc, true
}

func assignment(r *payload.Reader, key string) Assignment {
	present, value := r.NullableString(key)
	if value != nil {
		t := strings.TrimSpace(*value)
		if t == "" {
			// blank ids unassign, same as null
			value = nil
		} else {
			value = &t
		}
	}
	return Assignment{Present: present, Value: value}
}

// Fields returns the accepted fields keyed by their payload names
func (s Suggestion) Fields() map[string]any {
	out := map[string]any{}
	if s.Category != nil {
		out["category"] = *s.Category
	}
	if s.BusinessCategory != nil {
		out["businessCategory"] = *s.BusinessCategory
	}
	if s.GLAccount != nil {
		out["glAccount"] = *s.GLAccount
	}
	for key, a := range map[string]Assignment{
		"employeeId":         s.EmployeeID,
		"functionalTeamCode": s.FunctionalTeamCode,
		"tripId":             s.TripID,
	} {
		if a.Present {
			out[key] = a.Value
		}
	}
	if s.Confidence != nil {
		out["confidence"] = *s.Confidence
	}
	if s.HasNotes {
		out["notes"] = nonNilStrings(s.Notes)
	}
	if s.HasAllocations {
		allocs := s.SplitAllocations
		if allocs == nil {
			allocs = []entity.AISplitAllocation{}
		}
		out["splitAllocations"] = allocs
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
