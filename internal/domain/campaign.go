package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignPending   CampaignStatus = "pending"
	CampaignRunning   CampaignStatus = "running"
	CampaignCompleted CampaignStatus = "completed"
)

// ValidCampaignStatus reports whether s is one of the allowed enum values.
// Note that "running" is accepted but never assigned by the orchestrator:
// dispatch moves a campaign straight from pending to completed.
func ValidCampaignStatus(s CampaignStatus) bool {
	return s == CampaignPending || s == CampaignRunning || s == CampaignCompleted
}

// Campaign targets the audience of one segment with a message template.
// "completed" means all delivery attempts were dispatched, not confirmed;
// final SENT/FAILED counts live in communication logs only.
type Campaign struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	SegmentID       uuid.UUID      `json:"segment_id" db:"segment_id"`
	Name            string         `json:"name" db:"name"`
	MessageTemplate string         `json:"message_template" db:"message_template"`
	Status          CampaignStatus `json:"status" db:"status"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// Segment is created together with its campaign, one per campaign.
type Segment struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description" db:"description"`
	CreatedBy   *uuid.UUID `json:"created_by" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// SegmentRule is one persisted condition of a segment definition. Conditions
// sharing a LogicalGroup are AND-ed; groups are OR-ed. LogicalOp is carried
// per condition for the read API but does not alter composition.
type SegmentRule struct {
	ID           uuid.UUID `json:"id" db:"id"`
	SegmentID    uuid.UUID `json:"segment_id" db:"segment_id"`
	Field        string    `json:"field" db:"field"`
	Operator     string    `json:"operator" db:"operator"`
	Value        string    `json:"value" db:"value"`
	LogicalGroup int       `json:"logical_group" db:"logical_group"`
	LogicalOp    string    `json:"logical_op" db:"logical_op"`
}

// DeliveryStatus enumerates the per-recipient delivery outcome states.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
	DeliverySent    DeliveryStatus = "SENT"
	DeliveryFailed  DeliveryStatus = "FAILED"
)

// CommunicationLog is one delivery attempt for one matched customer. Rows
// start PENDING and transition to SENT or FAILED exactly once, applied by the
// receipt batcher.
type CommunicationLog struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	CampaignID     uuid.UUID      `json:"campaign_id" db:"campaign_id"`
	CustomerID     uuid.UUID      `json:"customer_id" db:"customer_id"`
	MessageSent    string         `json:"message_sent" db:"message_sent"`
	DeliveryStatus DeliveryStatus `json:"delivery_status" db:"delivery_status"`
	SentAt         time.Time      `json:"sent_at" db:"sent_at"`
	DeliveryAt     *time.Time     `json:"delivery_at" db:"delivery_at"`
	FailureReason  *string        `json:"failure_reason" db:"failure_reason"`
}
