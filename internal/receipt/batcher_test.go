package receipt

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/crm-engine/internal/delivery"
)

func event() delivery.ReceiptEvent {
	return delivery.ReceiptEvent{CommunicationLogID: uuid.New().String(), Success: true}
}

func TestAccumulatorFillsAtLimit(t *testing.T) {
	acc := NewAccumulator(3, time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if batch, full := acc.Add(event(), now); full {
			t.Fatalf("batch full after %d events, limit is 3 (%v)", i+1, batch)
		}
	}
	batch, full := acc.Add(event(), now)
	if !full {
		t.Fatal("expected full batch on third event")
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 events, got %d", len(batch))
	}
	if acc.Len() != 0 {
		t.Fatalf("accumulator not reset, len=%d", acc.Len())
	}
}

func TestAccumulatorInactivityWindow(t *testing.T) {
	acc := NewAccumulator(20, 3*time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	acc.Add(event(), now)
	if acc.Expired(now) {
		t.Fatal("fresh partial batch must not be expired")
	}
	if acc.Expired(now.Add(2 * time.Second)) {
		t.Fatal("batch must not expire before the window")
	}
	if !acc.Expired(now.Add(3 * time.Second)) {
		t.Fatal("batch must expire at the window")
	}

	// Another event pushes the deadline out.
	acc.Add(event(), now.Add(2*time.Second))
	if acc.Expired(now.Add(4 * time.Second)) {
		t.Fatal("deadline must reset on each admitted event")
	}
}

func TestAccumulatorNextWait(t *testing.T) {
	acc := NewAccumulator(20, 3*time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if w := acc.NextWait(now); w != 3*time.Second {
		t.Fatalf("idle wait: got %v, want window", w)
	}

	acc.Add(event(), now)
	if w := acc.NextWait(now.Add(time.Second)); w != 2*time.Second {
		t.Fatalf("partial-batch wait: got %v, want 2s", w)
	}
	if w := acc.NextWait(now.Add(10 * time.Second)); w != 0 {
		t.Fatalf("overdue wait: got %v, want 0", w)
	}
}

func TestAccumulatorForceFlush(t *testing.T) {
	acc := NewAccumulator(20, time.Second)
	now := time.Now()

	if got := acc.ForceFlush(); got != nil {
		t.Fatalf("empty force flush returned %v", got)
	}

	acc.Add(event(), now)
	acc.Add(event(), now)
	batch := acc.ForceFlush()
	if len(batch) != 2 {
		t.Fatalf("expected 2 events, got %d", len(batch))
	}
	if acc.Len() != 0 {
		t.Fatal("accumulator not drained")
	}
}
