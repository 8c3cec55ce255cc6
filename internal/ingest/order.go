package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/crm-engine/internal/domain"
	"github.com/ignite/crm-engine/internal/pkg/logger"
)

// OrderPayload is the wire format of one order intake record.
type OrderPayload struct {
	CustomerID string            `json:"customer_id"`
	Products   []domain.LineItem `json:"products"`
	TotalPrice float64           `json:"total_price"`
	OrderDate  *time.Time        `json:"order_date"`
}

func (p OrderPayload) validate() string {
	if _, err := uuid.Parse(p.CustomerID); err != nil {
		return "customer_id must be a valid uuid"
	}
	if len(p.Products) == 0 {
		return "products must not be empty"
	}
	if p.TotalPrice <= 0 {
		return "total_price must be positive"
	}
	return ""
}

// OrderStore is the persistence surface of order ingestion.
type OrderStore interface {
	InsertOrder(ctx context.Context, o *domain.Order) error
	// ApplyOrderStats adds the order amount to the customer's total spend,
	// increments the visit count, and advances last_active_at if the order
	// date is newer.
	ApplyOrderStats(ctx context.Context, customerID uuid.UUID, amount float64, orderDate time.Time) error
}

// OrderConsumer applies order intake records: insert the order, then update
// the customer's aggregates. The two writes are not atomic; a retry after a
// failed aggregate update inserts the order a second time.
type OrderConsumer struct {
	store OrderStore
	log   *logger.Logger
}

func NewOrderConsumer(store OrderStore) *OrderConsumer {
	return &OrderConsumer{store: store, log: logger.With("OrderIngest")}
}

func (c *OrderConsumer) Handle(ctx context.Context, body []byte) Result {
	var p OrderPayload
	if err := json.Unmarshal(body, &p); err != nil {
		c.log.Warn("dropping undecodable order record", "error", err.Error())
		return Dropped
	}
	if reason := p.validate(); reason != "" {
		c.log.Warn("dropping invalid order record", "reason", reason)
		return Dropped
	}

	customerID := uuid.MustParse(p.CustomerID)
	orderDate := time.Now()
	if p.OrderDate != nil {
		orderDate = *p.OrderDate
	}

	order := &domain.Order{
		ID:         uuid.New(),
		CustomerID: customerID,
		Products:   p.Products,
		TotalPrice: p.TotalPrice,
		OrderDate:  orderDate,
		CreatedAt:  time.Now(),
	}
	if err := c.store.InsertOrder(ctx, order); err != nil {
		c.log.Error("order insert failed", "customer_id", customerID.String(), "error", err.Error())
		return Retry
	}

	if err := c.store.ApplyOrderStats(ctx, customerID, order.TotalPrice, orderDate); err != nil {
		c.log.Error("customer stats update failed", "customer_id", customerID.String(), "error", err.Error())
		return Retry
	}

	c.log.Info("order ingested", "order_id", order.ID.String(), "customer_id", customerID.String())
	return Processed
}
