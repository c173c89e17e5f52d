// Package dispatcher routes draft events to in-process subscribers such as the
// reviewer notifier and the metrics recorder.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/expense-drafts/internal/domain/event"
)

// ErrClosed is returned when dispatching on a closed dispatcher
var ErrClosed = errors.New("dispatcher is closed")

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Dispatcher delivers events to subscribed handlers
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]namedHandler
	logger   Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher
type Option func(*Dispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates an event dispatcher
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[event.Type][]namedHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers handler for eventType under name. Handlers run in
// subscription order.
func (d *Dispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], namedHandler{name: name, handler: handler})
	d.info("Handler registered", "event_type", eventType, "handler_name", name)
}

// Handlers returns the names of the handlers registered for eventType
func (d *Dispatcher) Handlers(eventType event.Type) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.handlers[eventType]))
	for _, h := range d.handlers[eventType] {
		names = append(names, h.name)
	}
	return names
}

// Dispatch runs every handler synchronously and stops at the first error
func (d *Dispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return ErrClosed
	}

	for _, h := range d.snapshot(evt.Type) {
		if err := d.safeExecute(ctx, evt, h); err != nil {
			d.error("Handler error", "event_type", evt.Type, "event_id", evt.ID, "handler_name", h.name, "error", err)
			return fmt.Errorf("handler %s failed: %w", h.name, err)
		}
	}
	return nil
}

// Publish runs every handler in its own goroutine. Handlers outlive the
// caller's request, so they get a context that is never cancelled.
func (d *Dispatcher) Publish(ctx context.Context, evt *event.Event) {
	// closed is checked and wg grown under mu so Close never waits on a
	// counter that is still being raised
	d.mu.RLock()
	if d.closed.Load() {
		d.mu.RUnlock()
		d.error("Dropping event, dispatcher is closed", "event_type", evt.Type, "event_id", evt.ID)
		return
	}
	handlers := append([]namedHandler{}, d.handlers[evt.Type]...)
	d.wg.Add(len(handlers))
	d.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, h := range handlers {
		go func(h namedHandler) {
			defer d.wg.Done()
			if err := d.safeExecute(detached, evt, h); err != nil {
				d.error("Async handler error", "event_type", evt.Type, "event_id", evt.ID, "handler_name", h.name, "error", err)
			}
		}(h)
	}
}

// Close waits for in-flight handlers. Events published afterwards are dropped.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	swapped := d.closed.CompareAndSwap(false, true)
	d.mu.Unlock()
	if !swapped {
		return ErrClosed
	}
	d.wg.Wait()
	d.info("Dispatcher closed")
	return nil
}

func (d *Dispatcher) snapshot(eventType event.Type) []namedHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]namedHandler{}, d.handlers[eventType]...)
}

func (d *Dispatcher) safeExecute(ctx context.Context, evt *event.Event, h namedHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.handler(ctx, evt)
}

func (d *Dispatcher) info(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *Dispatcher) error(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
