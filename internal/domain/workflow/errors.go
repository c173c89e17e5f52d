package workflow

import "errors"

// Lifecycle failures
var (
	ErrInvalidTransition = errors.New("transition not allowed")
	ErrInvalidState      = errors.New("unknown draft status")
	ErrGuardFailed       = errors.New("transition guard rejected")
)
