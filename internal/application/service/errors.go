package service

import "errors"

// Failure kinds surfaced to callers. Service errors wrap one of these together
// with the underlying cause, so errors.Is works for both.
var (
	ErrNotFound         = errors.New("not_found")
	ErrExtractionFailed = errors.New("extraction_failed")
	ErrStoreFailed      = errors.New("store_failed")
	ErrCategorizeFailed = errors.New("categorize_failed")
	ErrInvalidInput     = errors.New("invalid_input")
)

// Kind returns the failure kind code of err, or "internal" for unclassified errors
func Kind(err error) string {
	for _, kind := range []error{ErrNotFound, ErrInvalidInput, ErrExtractionFailed, ErrCategorizeFailed, ErrStoreFailed} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "internal"
}
