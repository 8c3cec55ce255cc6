package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ignite/crm-engine/internal/receipt"
)

// ReceiptRepo implements receipt.Store against PostgreSQL.
type ReceiptRepo struct{ db *sql.DB }

// NewReceiptRepo creates a Postgres-backed receipt store.
func NewReceiptRepo(db *sql.DB) *ReceiptRepo { return &ReceiptRepo{db: db} }

// ApplyReceipts folds one batch of outcomes into communication_logs with a
// single UPDATE ... FROM (VALUES ...). A SENT update carries a NULL failure
// reason, which clears any reason a previous FAILED attempt recorded.
func (r *ReceiptRepo) ApplyReceipts(ctx context.Context, updates []receipt.StatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	values := make([]string, 0, len(updates))
	args := make([]interface{}, 0, len(updates)*4)
	argCounter := 0
	nextArg := func() string {
		argCounter++
		return fmt.Sprintf("$%d", argCounter)
	}

	for _, u := range updates {
		values = append(values, fmt.Sprintf("(%s::uuid, %s, %s, %s::timestamptz)",
			nextArg(), nextArg(), nextArg(), nextArg()))
		args = append(args, u.LogID, u.Status, u.FailureReason, u.DeliveredAt)
	}

	query := fmt.Sprintf(`
		UPDATE communication_logs AS cl
		SET delivery_status = v.delivery_status,
		    failure_reason = v.failure_reason,
		    delivery_at = v.delivery_at
		FROM (VALUES %s) AS v(id, delivery_status, failure_reason, delivery_at)
		WHERE cl.id = v.id
	`, strings.Join(values, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("apply receipts: %w", err)
	}
	return nil
}

var _ receipt.Store = (*ReceiptRepo)(nil)
