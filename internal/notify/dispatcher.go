// Package notify delivers check-in events to downstream systems. Delivery is best
// effort: callers log and count failures, nothing is rolled back.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/herwingx/nexogym-sub000/internal/metrics"
	"github.com/herwingx/nexogym-sub000/internal/model"
)

var (
	ErrNoHealthy = errors.New("no healthy sinks")
	ErrNoAcquire = errors.New("sink not acquired")
)

// Dispatcher spreads events round-robin over healthy sinks and retries on another
// sink when one fails.
type Dispatcher struct {
	sinks             []Sink
	roundRobinCounter atomic.Uint64
	maxAttempts       int
}

func NewDispatcher(sinks []Sink, maxAttempts int) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 3
	}

	return &Dispatcher{sinks: sinks, maxAttempts: maxAttempts}
}

func (d *Dispatcher) selectSink() (Sink, error) {
	healthy := make([]Sink, 0, len(d.sinks))
	for _, s := range d.sinks {
		if s.Ready() {
			healthy = append(healthy, s)
		}
	}

	if len(healthy) == 0 {
		return nil, ErrNoHealthy
	}

	x := d.roundRobinCounter.Add(1)
	idx := int((x - 1) % uint64(len(healthy)))

	return healthy[idx], nil
}

func (d *Dispatcher) tryOnce(ctx context.Context, ev model.Event) error {
	s, err := d.selectSink()
	if err != nil {
		return err
	}

	if !s.Acquire() {
		return ErrNoAcquire
	}

	return s.Deliver(ctx, ev)
}

// Notify delivers ev to one sink, trying up to maxAttempts times.
func (d *Dispatcher) Notify(ctx context.Context, ev model.Event) error {
	if len(d.sinks) == 0 {
		return nil
	}

	var last error
	for i := 0; i < d.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			last = err
			break
		}
		err := d.tryOnce(ctx, ev)
		if err == nil {
			return nil
		}
		last = err
	}

	metrics.NotificationFailuresTotal.WithLabelValues("webhook").Inc()
	return fmt.Errorf("deliver %s event %s: %w", ev.Kind, ev.ID, last)
}
