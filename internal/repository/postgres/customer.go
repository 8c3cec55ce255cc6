package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/crm-engine/internal/domain"
)

// CustomerRepo implements the ingest store interfaces against PostgreSQL.
type CustomerRepo struct{ db *sql.DB }

// NewCustomerRepo creates a Postgres-backed customer/order store.
func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

func (r *CustomerRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM customers WHERE email = $1)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("email exists: %w", err)
	}
	return exists, nil
}

func (r *CustomerRepo) InsertCustomer(ctx context.Context, c *domain.Customer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, total_spend, visits_count, last_active_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Name, c.Email, c.TotalSpend, c.VisitsCount, c.LastActiveAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (r *CustomerRepo) InsertOrder(ctx context.Context, o *domain.Order) error {
	products, err := json.Marshal(o.Products)
	if err != nil {
		return fmt.Errorf("marshal products: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, products, total_price, order_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ID, o.CustomerID, products, o.TotalPrice, o.OrderDate, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// ApplyOrderStats runs the two customer updates an order triggers. The spend
// and activity updates are independent statements, not a transaction with the
// order insert; GREATEST ignores a NULL last_active_at.
func (r *CustomerRepo) ApplyOrderStats(ctx context.Context, customerID uuid.UUID, amount float64, orderDate time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET total_spend = total_spend + $1, visits_count = visits_count + 1, updated_at = NOW()
		WHERE id = $2
	`, amount, customerID)
	if err != nil {
		return fmt.Errorf("update customer spend: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE customers
		SET last_active_at = GREATEST(last_active_at, $1), updated_at = NOW()
		WHERE id = $2
	`, orderDate, customerID)
	if err != nil {
		return fmt.Errorf("update customer activity: %w", err)
	}
	return nil
}
