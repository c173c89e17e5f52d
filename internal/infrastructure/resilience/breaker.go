// Package resilience guards the AI providers with circuit breakers so an
// outage fails fast instead of tying up every request until timeout.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/garyjia/expense-drafts/internal/application/port"
)

// ErrProviderUnavailable is returned while a breaker is open or probing
var ErrProviderUnavailable = errors.New("provider unavailable")

// Config tunes a breaker
type Config struct {
	// MaxFailures consecutive failures open the breaker
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again
	OpenTimeout time.Duration
}

// NewBreaker creates a breaker that logs every state change
func NewBreaker(name string, cfg Config, logger *zap.Logger) *gobreaker.CircuitBreaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// countsAsHealthy keeps caller cancellations and unreadable uploads from
// counting against the provider
func countsAsHealthy(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, port.ErrUnreadableReceipt)
}

func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, cb.Name(), err)
	}
	if err != nil {
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

type guardedExtractor struct {
	next port.Extractor
	cb   *gobreaker.CircuitBreaker
}

// GuardExtractor runs every extraction through cb
func GuardExtractor(next port.Extractor, cb *gobreaker.CircuitBreaker) port.Extractor {
	return &guardedExtractor{next: next, cb: cb}
}

func (g *guardedExtractor) Extract(ctx context.Context, image []byte, mime string) (map[string]any, error) {
	return execute(g.cb, func() (map[string]any, error) {
		return g.next.Extract(ctx, image, mime)
	})
}

func (g *guardedExtractor) Name() string {
	return g.next.Name()
}

type guardedCategorizer struct {
	next port.Categorizer
	cb   *gobreaker.CircuitBreaker
}

// GuardCategorizer runs every categorization through cb
func GuardCategorizer(next port.Categorizer, cb *gobreaker.CircuitBreaker) port.Categorizer {
	return &guardedCategorizer{next: next, cb: cb}
}

func (g *guardedCategorizer) Suggest(ctx context.Context, req port.CategorizeRequest) (map[string]any, error) {
	return execute(g.cb, func() (map[string]any, error) {
		return g.next.Suggest(ctx, req)
	})
}
