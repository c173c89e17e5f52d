package workflow

import "github.com/garyjia/expense-drafts/internal/domain/entity"

// State is a draft lifecycle state
type State = entity.DraftStatus

const (
	StateNeedsInfo = entity.DraftStatusNeedsInfo
	StateValid     = entity.DraftStatusValid
	StateFlagged   = entity.DraftStatusFlagged
	StateProposed  = entity.DraftStatusProposed
	StateSubmitted = entity.DraftStatusSubmitted
	StateApproved  = entity.DraftStatusApproved
	StateRejected  = entity.DraftStatusRejected
)

var validStates = map[State]bool{
	StateNeedsInfo: true,
	StateValid:     true,
	StateFlagged:   true,
	StateProposed:  true,
	StateSubmitted: true,
	StateApproved:  true,
	StateRejected:  true,
}

// AllStates lists every lifecycle state in a stable order
func AllStates() []State {
	return []State{
		StateNeedsInfo,
		StateValid,
		StateFlagged,
		StateProposed,
		StateSubmitted,
		StateApproved,
		StateRejected,
	}
}

// IsValidState returns true if s is a lifecycle state
func IsValidState(s State) bool {
	return validStates[s]
}
