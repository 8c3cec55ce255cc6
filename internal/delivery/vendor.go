// Package delivery sends campaign messages to their audience and reports
// per-message outcomes onto the receipts queue.
package delivery

import (
	"context"
	"math/rand"
	"sync"

	"github.com/ignite/crm-engine/internal/domain"
)

// simulatedFailureReason is recorded on every simulated vendor rejection.
const simulatedFailureReason = "Simulated vendor failure"

// Outcome is the vendor's verdict for one message attempt.
type Outcome struct {
	Success       bool
	FailureReason string
}

// Vendor attempts delivery of one rendered message. Implementations decide
// success or failure; the orchestrator only records and reports the outcome.
type Vendor interface {
	Attempt(ctx context.Context, customer *domain.Customer, message string) Outcome
}

// SimulatedVendor succeeds with a fixed probability and fails the rest with
// a canned reason. It stands in for a real delivery provider.
type SimulatedVendor struct {
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedVendor returns a vendor succeeding at the given rate (0..1).
func NewSimulatedVendor(successRate float64, seed int64) *SimulatedVendor {
	return &SimulatedVendor{
		successRate: successRate,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (v *SimulatedVendor) Attempt(_ context.Context, _ *domain.Customer, _ string) Outcome {
	v.mu.Lock()
	roll := v.rng.Float64()
	v.mu.Unlock()

	if roll < v.successRate {
		return Outcome{Success: true}
	}
	return Outcome{Success: false, FailureReason: simulatedFailureReason}
}
