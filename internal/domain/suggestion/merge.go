package suggestion

import (
	"github.com/garyjia/expense-drafts/internal/domain/entity"
	"github.com/garyjia/expense-drafts/internal/domain/workflow"
)

// Merger folds decoded suggestions into drafts
type Merger struct {
	lifecycle *workflow.Lifecycle
}

// NewMerger creates a merger that moves drafts through the given lifecycle
func NewMerger(lifecycle *workflow.Lifecycle) *Merger {
	return &Merger{lifecycle: lifecycle}
}

// Merge applies the accepted fields of s to a copy of draft and marks it proposed
func (m *Merger) Merge(draft entity.ExpenseDraft, s Suggestion) entity.ExpenseDraft {
	out := draft.Clone()

	if s.Category != nil {
		v := *s.Category
		out.Extraction.Category = &v
	}
	if s.BusinessCategory != nil {
		v := *s.BusinessCategory
		out.BusinessCategory = &v
	}
	if s.GLAccount != nil {
		v := *s.GLAccount
		out.GLAccount = &v
	}
	applyAssignment(&out.EmployeeID, s.EmployeeID)
	applyAssignment(&out.FunctionalTeamCode, s.FunctionalTeamCode)
	applyAssignment(&out.TripID, s.TripID)

	if s.Confidence != nil {
		c := *s.Confidence
		out.AIConfidence = &c
	}
	if s.HasNotes {
		out.AILabels = nil
		if len(s.Notes) > 0 {
			out.AILabels = append([]string{}, s.Notes...)
		}
	}
	if s.HasAllocations {
		out.AIAllocations = nil
		if len(s.SplitAllocations) > 0 {
			out.AIAllocations = append([]entity.AISplitAllocation{}, s.SplitAllocations...)
		}
	}

	return m.lifecycle.Propose(out)
}

func applyAssignment(field **string, a Assignment) {
	if !a.Present {
		return
	}
	if a.Value == nil {
		*field = nil
		return
	}
	v := *a.Value
	*field = &v
}
