package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether an edge may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects the allowed transitions once and stamps out a
// machine per draft
type StateMachineBuilder interface {
	Configure(state State) StateConfiguration
	Build(initialState State) (StateMachine, error)
}

// StateConfiguration adds outgoing edges to one state
type StateConfiguration interface {
	Permit(trigger Trigger, toState State) StateConfiguration
	// PermitIf edges are tried in the order they were added
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type edge struct {
	to    State
	guard GuardFunc
}

// transitionTable maps a state and trigger to its candidate edges
type transitionTable map[State]map[Trigger][]edge

type tableBuilder struct {
	table transitionTable
}

type stateEdges struct {
	from  State
	table transitionTable
}

// NewBuilder creates an empty transition table builder
func NewBuilder() StateMachineBuilder {
	return &tableBuilder{table: transitionTable{}}
}

// Configure panics on unknown states since tables are wired at start-up
func (b *tableBuilder) Configure(state State) StateConfiguration {
	if !IsValidState(state) {
		panic(fmt.Sprintf("workflow: unknown state %q", state))
	}
	if b.table[state] == nil {
		b.table[state] = map[Trigger][]edge{}
	}
	return &stateEdges{from: state, table: b.table}
}

// Build fails with ErrInvalidState when a stored draft carries an unknown status
func (b *tableBuilder) Build(initialState State) (StateMachine, error) {
	if !IsValidState(initialState) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, initialState)
	}
	return &draftMachine{current: initialState, table: b.table.clone()}, nil
}

func (c *stateEdges) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateEdges) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !IsValidState(toState) {
		panic(fmt.Sprintf("workflow: unknown target state %q", toState))
	}
	c.table[c.from][trigger] = append(c.table[c.from][trigger], edge{to: toState, guard: guard})
	return c
}

func (t transitionTable) clone() transitionTable {
	out := make(transitionTable, len(t))
	for state, triggers := range t {
		copied := make(map[Trigger][]edge, len(triggers))
		for trigger, edges := range triggers {
			copied[trigger] = append([]edge(nil), edges...)
		}
		out[state] = copied
	}
	return out
}
