package workflow

import (
	"context"
	"fmt"
	"sort"
)

// StateMachine holds the status of one draft while a trigger is applied to it
type StateMachine interface {
	State() State
	CanFire(trigger Trigger) bool
	// Fire moves to the target of the first permitted edge whose guard passes
	Fire(ctx context.Context, trigger Trigger) error
	PermittedTriggers() []Trigger
}

type draftMachine struct {
	current State
	table   transitionTable
}

func (m *draftMachine) State() State {
	return m.current
}

func (m *draftMachine) CanFire(trigger Trigger) bool {
	return len(m.table[m.current][trigger]) > 0
}

func (m *draftMachine) Fire(ctx context.Context, trigger Trigger) error {
	edges := m.table[m.current][trigger]
	if len(edges) == 0 {
		return fmt.Errorf("%w: %s is not allowed while %s", ErrInvalidTransition, trigger, m.current)
	}
	for _, e := range edges {
		if e.guard == nil || e.guard(ctx) {
			m.current = e.to
			return nil
		}
	}
	return fmt.Errorf("%w: %s while %s", ErrGuardFailed, trigger, m.current)
}

func (m *draftMachine) PermittedTriggers() []Trigger {
	out := make([]Trigger, 0, len(m.table[m.current]))
	for t := range m.table[m.current] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
