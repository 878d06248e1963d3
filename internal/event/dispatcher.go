package event

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Handler consumes one event. Delivery is at-least-once, so handlers must
// tolerate duplicates.
type Handler func(ctx context.Context, evt Event) error

// Dispatcher fans an event out to every handler subscribed to its name.
// All handlers are attempted even when earlier ones fail; their errors are
// aggregated into the returned error.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for the named event.
func (d *Dispatcher) Subscribe(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = append(d.handlers[name], h)
}

// Dispatch delivers the event to all registered consumers and waits for them.
func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) error {
	d.mu.RLock()
	handlers := d.handlers[evt.EventName()]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		d.logger.Debug("event_without_consumers", zap.String("event", evt.EventName()))
		return nil
	}

	var errs error
	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s handler: %w", evt.EventName(), err))
		}
	}
	return errs
}
