package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/crm-engine/internal/domain"
	"github.com/ignite/crm-engine/internal/pkg/logger"
	"github.com/ignite/crm-engine/internal/segmentation"
)

// defaultInsertBatchSize bounds each bulk insert of pending logs.
const defaultInsertBatchSize = 50

// ReceiptEvent is the wire format of one delivery outcome published to the
// receipts queue.
type ReceiptEvent struct {
	CommunicationLogID string `json:"communicationLogId"`
	Success            bool   `json:"success"`
	FailureReason      string `json:"failureReason,omitempty"`
}

// Store is the persistence surface the orchestrator needs.
type Store interface {
	QueryAudience(ctx context.Context, pred segmentation.Predicate) ([]domain.Customer, error)
	CountAudience(ctx context.Context, pred segmentation.Predicate) (int, error)
	InsertLogs(ctx context.Context, logs []domain.CommunicationLog) error
	StreamLogs(ctx context.Context, campaignID uuid.UUID, fn func(*domain.CommunicationLog) error) error
	MarkCampaignCompleted(ctx context.Context, campaignID uuid.UUID) error
}

// Publisher enqueues one receipt event payload.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// Orchestrator drives campaign delivery: it resolves the audience, records a
// pending log per recipient, attempts delivery through the vendor, and
// publishes an outcome event per attempt.
type Orchestrator struct {
	store     Store
	receipts  Publisher
	vendor    Vendor
	templates *TemplateService
	batchSize int
	now       func() time.Time
	log       *logger.Logger
}

func NewOrchestrator(store Store, receipts Publisher, vendor Vendor, templates *TemplateService, insertBatchSize int) *Orchestrator {
	if insertBatchSize <= 0 {
		insertBatchSize = defaultInsertBatchSize
	}
	return &Orchestrator{
		store:     store,
		receipts:  receipts,
		vendor:    vendor,
		templates: templates,
		batchSize: insertBatchSize,
		now:       time.Now,
		log:       logger.With("Delivery"),
	}
}

// AudienceMember is the minimal projection of one matched customer.
type AudienceMember struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ComputeAudience counts the customers the rule groups currently match.
func (o *Orchestrator) ComputeAudience(ctx context.Context, groups []segmentation.RuleGroup) (int, error) {
	pred := segmentation.Compile(groups, o.now())
	return o.store.CountAudience(ctx, pred)
}

// PreviewAudience resolves the current audience as id+name pairs.
func (o *Orchestrator) PreviewAudience(ctx context.Context, groups []segmentation.RuleGroup) ([]AudienceMember, error) {
	pred := segmentation.Compile(groups, o.now())
	audience, err := o.store.QueryAudience(ctx, pred)
	if err != nil {
		return nil, fmt.Errorf("query audience: %w", err)
	}
	members := make([]AudienceMember, len(audience))
	for i, c := range audience {
		members[i] = AudienceMember{ID: c.ID, Name: c.Name}
	}
	return members, nil
}

// Dispatch delivers a campaign. Rules are compiled against a single clock
// reading so the audience is fixed for the whole run. Vendor failures do not
// abort the run; every attempt still produces one receipt event.
func (o *Orchestrator) Dispatch(ctx context.Context, campaign *domain.Campaign, groups []segmentation.RuleGroup) error {
	pred := segmentation.Compile(groups, o.now())

	audience, err := o.store.QueryAudience(ctx, pred)
	if err != nil {
		return fmt.Errorf("query audience: %w", err)
	}
	o.log.Info("dispatching campaign", "campaign_id", campaign.ID.String(), "audience", len(audience))

	byCustomer := make(map[uuid.UUID]*domain.Customer, len(audience))
	for i := range audience {
		byCustomer[audience[i].ID] = &audience[i]
	}

	if err := o.insertPendingLogs(ctx, campaign, audience); err != nil {
		return err
	}

	err = o.store.StreamLogs(ctx, campaign.ID, func(cl *domain.CommunicationLog) error {
		customer, ok := byCustomer[cl.CustomerID]
		if !ok {
			customer = &domain.Customer{ID: cl.CustomerID}
		}

		outcome := o.vendor.Attempt(ctx, customer, cl.MessageSent)
		event := ReceiptEvent{
			CommunicationLogID: cl.ID.String(),
			Success:            outcome.Success,
			FailureReason:      outcome.FailureReason,
		}
		body, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal receipt event: %w", err)
		}
		if err := o.receipts.Publish(ctx, body); err != nil {
			return fmt.Errorf("publish receipt event: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("stream logs: %w", err)
	}

	if err := o.store.MarkCampaignCompleted(ctx, campaign.ID); err != nil {
		return fmt.Errorf("mark campaign completed: %w", err)
	}
	o.log.Info("campaign dispatched", "campaign_id", campaign.ID.String())
	return nil
}

func (o *Orchestrator) insertPendingLogs(ctx context.Context, campaign *domain.Campaign, audience []domain.Customer) error {
	batch := make([]domain.CommunicationLog, 0, o.batchSize)
	for i := range audience {
		customer := &audience[i]

		message, err := o.templates.Render(campaign.MessageTemplate, customer)
		if err != nil {
			// A template that fails for one customer fails for all of
			// them; bail out before anything is sent.
			return fmt.Errorf("render message for %s: %w", customer.ID, err)
		}

		batch = append(batch, domain.CommunicationLog{
			ID:             uuid.New(),
			CampaignID:     campaign.ID,
			CustomerID:     customer.ID,
			MessageSent:    message,
			DeliveryStatus: domain.DeliveryPending,
			SentAt:         o.now(),
		})
		if len(batch) == o.batchSize {
			if err := o.store.InsertLogs(ctx, batch); err != nil {
				return fmt.Errorf("insert logs: %w", err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := o.store.InsertLogs(ctx, batch); err != nil {
			return fmt.Errorf("insert logs: %w", err)
		}
	}
	return nil
}
