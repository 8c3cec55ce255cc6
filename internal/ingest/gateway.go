package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ignite/crm-engine/internal/pkg/logger"
)

// Publisher enqueues one intake record.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// ItemError reports why one record in a submitted batch was rejected.
type ItemError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// Gateway validates intake batches and enqueues the records that pass.
// Acceptance means queued, not persisted; the consumers apply records
// asynchronously.
type Gateway struct {
	customers Publisher
	orders    Publisher
	log       *logger.Logger
}

func NewGateway(customers, orders Publisher) *Gateway {
	return &Gateway{customers: customers, orders: orders, log: logger.With("IngestGateway")}
}

// EnqueueCustomers publishes the valid records of the batch and returns the
// accepted count plus a per-item error list for the rest.
func (g *Gateway) EnqueueCustomers(ctx context.Context, items []CustomerPayload) (int, []ItemError, error) {
	accepted := 0
	var itemErrs []ItemError
	for i, item := range items {
		if reason := item.validate(); reason != "" {
			itemErrs = append(itemErrs, ItemError{Index: i, Message: reason})
			continue
		}
		body, err := json.Marshal(item)
		if err != nil {
			return accepted, itemErrs, fmt.Errorf("marshal customer record: %w", err)
		}
		if err := g.customers.Publish(ctx, body); err != nil {
			return accepted, itemErrs, fmt.Errorf("enqueue customer record: %w", err)
		}
		accepted++
	}
	g.log.Info("customer batch accepted", "accepted", accepted, "rejected", len(itemErrs))
	return accepted, itemErrs, nil
}

// EnqueueOrders publishes the valid records of the batch and returns the
// accepted count plus a per-item error list for the rest.
func (g *Gateway) EnqueueOrders(ctx context.Context, items []OrderPayload) (int, []ItemError, error) {
	accepted := 0
	var itemErrs []ItemError
	for i, item := range items {
		if reason := item.validate(); reason != "" {
			itemErrs = append(itemErrs, ItemError{Index: i, Message: reason})
			continue
		}
		body, err := json.Marshal(item)
		if err != nil {
			return accepted, itemErrs, fmt.Errorf("marshal order record: %w", err)
		}
		if err := g.orders.Publish(ctx, body); err != nil {
			return accepted, itemErrs, fmt.Errorf("enqueue order record: %w", err)
		}
		accepted++
	}
	g.log.Info("order batch accepted", "accepted", accepted, "rejected", len(itemErrs))
	return accepted, itemErrs, nil
}
