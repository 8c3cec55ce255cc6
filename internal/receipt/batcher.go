// Package receipt consumes delivery outcome events and folds them into
// communication logs in batches. Updates are applied when a batch fills or
// when the queue goes quiet for the inactivity window, whichever comes first.
package receipt

import (
	"time"

	"github.com/ignite/crm-engine/internal/delivery"
)

// Accumulator collects receipt events until a batch is ready. It owns the
// batch-size and inactivity-window decisions; the caller supplies the clock,
// which keeps the cutoff logic testable without sleeping.
type Accumulator struct {
	limit    int
	window   time.Duration
	pending  []delivery.ReceiptEvent
	deadline time.Time
}

func NewAccumulator(limit int, window time.Duration) *Accumulator {
	return &Accumulator{
		limit:   limit,
		window:  window,
		pending: make([]delivery.ReceiptEvent, 0, limit),
	}
}

// Add admits one event. When the event fills the batch, the full batch is
// returned and the accumulator resets; otherwise the inactivity deadline is
// pushed out from now.
func (a *Accumulator) Add(ev delivery.ReceiptEvent, now time.Time) ([]delivery.ReceiptEvent, bool) {
	a.pending = append(a.pending, ev)
	a.deadline = now.Add(a.window)
	if len(a.pending) >= a.limit {
		return a.drain(), true
	}
	return nil, false
}

// Expired reports whether a partial batch has been waiting past the
// inactivity window.
func (a *Accumulator) Expired(now time.Time) bool {
	return len(a.pending) > 0 && !now.Before(a.deadline)
}

// ForceFlush drains whatever is pending, full batch or not.
func (a *Accumulator) ForceFlush() []delivery.ReceiptEvent {
	if len(a.pending) == 0 {
		return nil
	}
	return a.drain()
}

// Len returns the number of pending events.
func (a *Accumulator) Len() int { return len(a.pending) }

// Limit returns the batch size. Consumers use it to cap how many unflushed
// events they hold in flight.
func (a *Accumulator) Limit() int { return a.limit }

// NextWait returns how long the consumer may block waiting for the next
// event: until the inactivity deadline when a partial batch is pending, or
// the full window when idle.
func (a *Accumulator) NextWait(now time.Time) time.Duration {
	if len(a.pending) == 0 {
		return a.window
	}
	wait := a.deadline.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

func (a *Accumulator) drain() []delivery.ReceiptEvent {
	out := a.pending
	a.pending = make([]delivery.ReceiptEvent, 0, a.limit)
	a.deadline = time.Time{}
	return out
}
