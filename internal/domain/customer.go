package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer is the aggregate a segment predicate evaluates against. It is
// created by customer ingestion and mutated only by order ingestion
// (total_spend, visits_count, last_active_at).
type Customer struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	TotalSpend   float64    `json:"total_spend" db:"total_spend"`
	VisitsCount  int        `json:"visits_count" db:"visits_count"`
	LastActiveAt *time.Time `json:"last_active_at" db:"last_active_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// LineItem is one product line on an order.
type LineItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order is created once per ingested order message and is immutable
// thereafter. The customer aggregate update it triggers is a separate,
// non-transactional operation.
type Order struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	CustomerID uuid.UUID  `json:"customer_id" db:"customer_id"`
	Products   []LineItem `json:"products" db:"products"`
	TotalPrice float64    `json:"total_price" db:"total_price"`
	OrderDate  time.Time  `json:"order_date" db:"order_date"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
