package ingest

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/crm-engine/internal/domain"
	"github.com/ignite/crm-engine/internal/pkg/logger"
)

// CustomerPayload is the wire format of one customer intake record.
type CustomerPayload struct {
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	TotalSpend   float64    `json:"total_spend"`
	VisitsCount  int        `json:"visits_count"`
	LastActiveAt *time.Time `json:"last_active_at"`
}

// validate reports the first problem with the payload, or "".
func (p CustomerPayload) validate() string {
	if strings.TrimSpace(p.Name) == "" {
		return "name is required"
	}
	if !strings.Contains(p.Email, "@") {
		return "a valid email is required"
	}
	if p.TotalSpend < 0 {
		return "total_spend must not be negative"
	}
	if p.VisitsCount < 0 {
		return "visits_count must not be negative"
	}
	return ""
}

// CustomerStore is the persistence surface of customer ingestion.
type CustomerStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	InsertCustomer(ctx context.Context, c *domain.Customer) error
}

// CustomerConsumer applies customer intake records. Email is the dedupe key:
// a record whose email already exists is acknowledged without effect.
type CustomerConsumer struct {
	store CustomerStore
	log   *logger.Logger
}

func NewCustomerConsumer(store CustomerStore) *CustomerConsumer {
	return &CustomerConsumer{store: store, log: logger.With("CustomerIngest")}
}

func (c *CustomerConsumer) Handle(ctx context.Context, body []byte) Result {
	var p CustomerPayload
	if err := json.Unmarshal(body, &p); err != nil {
		c.log.Warn("dropping undecodable customer record", "error", err.Error())
		return Dropped
	}
	if reason := p.validate(); reason != "" {
		c.log.Warn("dropping invalid customer record", "reason", reason, "email", p.Email)
		return Dropped
	}

	exists, err := c.store.EmailExists(ctx, p.Email)
	if err != nil {
		c.log.Error("email lookup failed", "email", p.Email, "error", err.Error())
		return Retry
	}
	if exists {
		c.log.Info("skipping duplicate customer", "email", p.Email)
		return Dropped
	}

	now := time.Now()
	customer := &domain.Customer{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(p.Name),
		Email:        p.Email,
		TotalSpend:   p.TotalSpend,
		VisitsCount:  p.VisitsCount,
		LastActiveAt: p.LastActiveAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.store.InsertCustomer(ctx, customer); err != nil {
		c.log.Error("customer insert failed", "email", p.Email, "error", err.Error())
		return Retry
	}

	c.log.Info("customer ingested", "customer_id", customer.ID.String(), "email", customer.Email)
	return Processed
}
