package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/crm-engine/internal/domain"
	"github.com/ignite/crm-engine/internal/segmentation"
)

// DeliveryRepo implements delivery.Store against PostgreSQL.
type DeliveryRepo struct{ db *sql.DB }

// NewDeliveryRepo creates a Postgres-backed delivery store.
func NewDeliveryRepo(db *sql.DB) *DeliveryRepo { return &DeliveryRepo{db: db} }

func (r *DeliveryRepo) QueryAudience(ctx context.Context, pred segmentation.Predicate) ([]domain.Customer, error) {
	where, args := segmentation.NewSQLBuilder().Where(pred)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, email, total_spend, visits_count, last_active_at
		FROM customers
		WHERE %s
		ORDER BY created_at
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("query audience: %w", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.TotalSpend, &c.VisitsCount, &c.LastActiveAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *DeliveryRepo) CountAudience(ctx context.Context, pred segmentation.Predicate) (int, error) {
	where, args := segmentation.NewSQLBuilder().Where(pred)
	var n int
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM customers WHERE %s`, where),
		args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count audience: %w", err)
	}
	return n, nil
}

// InsertLogs bulk-inserts one batch of pending logs via COPY.
func (r *DeliveryRepo) InsertLogs(ctx context.Context, logs []domain.CommunicationLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("communication_logs",
		"id", "campaign_id", "customer_id", "message_sent", "delivery_status", "sent_at"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	for _, cl := range logs {
		if _, err := stmt.ExecContext(ctx, cl.ID, cl.CampaignID, cl.CustomerID, cl.MessageSent, cl.DeliveryStatus, cl.SentAt); err != nil {
			stmt.Close()
			return fmt.Errorf("copy log row: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}

	return tx.Commit()
}

// StreamLogs iterates a campaign's logs through fn without loading them all.
func (r *DeliveryRepo) StreamLogs(ctx context.Context, campaignID uuid.UUID, fn func(*domain.CommunicationLog) error) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, customer_id, message_sent, delivery_status, sent_at, delivery_at, failure_reason
		FROM communication_logs
		WHERE campaign_id = $1
		ORDER BY sent_at, id
	`, campaignID)
	if err != nil {
		return fmt.Errorf("stream logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cl domain.CommunicationLog
		if err := rows.Scan(&cl.ID, &cl.CampaignID, &cl.CustomerID, &cl.MessageSent, &cl.DeliveryStatus, &cl.SentAt, &cl.DeliveryAt, &cl.FailureReason); err != nil {
			return fmt.Errorf("scan log: %w", err)
		}
		if err := fn(&cl); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *DeliveryRepo) MarkCampaignCompleted(ctx context.Context, campaignID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET status = 'completed', updated_at = NOW() WHERE id = $1`,
		campaignID,
	)
	if err != nil {
		return fmt.Errorf("mark campaign completed: %w", err)
	}
	return nil
}
