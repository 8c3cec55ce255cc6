package campaign

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignite/crm-engine/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)

	// List returns all campaigns ordered by created_at DESC.
	List(ctx context.Context) ([]domain.Campaign, error)

	// Rules returns a segment's persisted rules ordered by logical_group.
	Rules(ctx context.Context, segmentID uuid.UUID) ([]domain.SegmentRule, error)

	// Create inserts the segment, its rules, and the campaign in one
	// transaction.
	Create(ctx context.Context, seg *domain.Segment, rules []domain.SegmentRule, c *domain.Campaign) error

	// Replace updates the campaign row, refreshes its segment's name and
	// description, and swaps the rule set wholesale in one transaction.
	Replace(ctx context.Context, c *domain.Campaign, seg *domain.Segment, rules []domain.SegmentRule) error

	// UpdateStatus sets a campaign's status. Returns ErrNotFound if the
	// campaign doesn't exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error

	// DeliveryStats aggregates communication logs per campaign.
	DeliveryStats(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]DeliveryStats, error)
}

// DeliveryStats is the per-campaign read-model derived from communication
// logs. AudienceSize counts every log row; Sent and Failed count resolved
// outcomes, so they sum to less than AudienceSize while receipts are pending.
type DeliveryStats struct {
	AudienceSize int `json:"audience_size"`
	Sent         int `json:"sent"`
	Failed       int `json:"failed"`
}
