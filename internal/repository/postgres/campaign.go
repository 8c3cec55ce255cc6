// Package postgres implements the repository and store interfaces against
// PostgreSQL using hand-written SQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/crm-engine/internal/domain"
	"github.com/ignite/crm-engine/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, segment_id, name, message_template, status, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`, id).Scan(&c.ID, &c.SegmentID, &c.Name, &c.MessageTemplate, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, segment_id, name, message_template, status, created_at, updated_at
		FROM campaigns
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(&c.ID, &c.SegmentID, &c.Name, &c.MessageTemplate, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) Rules(ctx context.Context, segmentID uuid.UUID) ([]domain.SegmentRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, segment_id, field, operator, value, logical_group, logical_op
		FROM segment_rules
		WHERE segment_id = $1
		ORDER BY logical_group, id
	`, segmentID)
	if err != nil {
		return nil, fmt.Errorf("list segment rules: %w", err)
	}
	defer rows.Close()

	var out []domain.SegmentRule
	for rows.Next() {
		var sr domain.SegmentRule
		if err := rows.Scan(&sr.ID, &sr.SegmentID, &sr.Field, &sr.Operator, &sr.Value, &sr.LogicalGroup, &sr.LogicalOp); err != nil {
			return nil, fmt.Errorf("scan segment rule: %w", err)
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, seg *domain.Segment, rules []domain.SegmentRule, c *domain.Campaign) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO segments (id, name, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, seg.ID, seg.Name, seg.Description, seg.CreatedBy, seg.CreatedAt, seg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}

	if err := insertRules(ctx, tx, rules); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO campaigns (id, segment_id, name, message_template, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.SegmentID, c.Name, c.MessageTemplate, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}

	return tx.Commit()
}

func (r *CampaignRepo) Replace(ctx context.Context, c *domain.Campaign, seg *domain.Segment, rules []domain.SegmentRule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE campaigns
		SET name = $1, message_template = $2, updated_at = $3
		WHERE id = $4
	`, c.Name, c.MessageTemplate, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE segments
		SET name = $1, description = $2, updated_at = $3
		WHERE id = $4
	`, seg.Name, seg.Description, seg.UpdatedAt, seg.ID)
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM segment_rules WHERE segment_id = $1`, c.SegmentID); err != nil {
		return fmt.Errorf("delete segment rules: %w", err)
	}
	if err := insertRules(ctx, tx, rules); err != nil {
		return err
	}

	return tx.Commit()
}

func insertRules(ctx context.Context, tx *sql.Tx, rules []domain.SegmentRule) error {
	for _, sr := range rules {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO segment_rules (id, segment_id, field, operator, value, logical_group, logical_op)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, sr.ID, sr.SegmentID, sr.Field, sr.Operator, sr.Value, sr.LogicalGroup, sr.LogicalOp)
		if err != nil {
			return fmt.Errorf("insert segment rule: %w", err)
		}
	}
	return nil
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) DeliveryStats(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]campaign.DeliveryStats, error) {
	out := make(map[uuid.UUID]campaign.DeliveryStats)
	if len(ids) == 0 {
		return out, nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT campaign_id,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE delivery_status = 'SENT'),
		       COUNT(*) FILTER (WHERE delivery_status = 'FAILED')
		FROM communication_logs
		WHERE campaign_id = ANY($1)
		GROUP BY campaign_id
	`, pq.Array(strIDs))
	if err != nil {
		return nil, fmt.Errorf("delivery stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var st campaign.DeliveryStats
		if err := rows.Scan(&id, &st.AudienceSize, &st.Sent, &st.Failed); err != nil {
			return nil, fmt.Errorf("scan delivery stats: %w", err)
		}
		out[id] = st
	}
	return out, rows.Err()
}
