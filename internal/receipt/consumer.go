package receipt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/crm-engine/internal/delivery"
	"github.com/ignite/crm-engine/internal/domain"
	"github.com/ignite/crm-engine/internal/pkg/logger"
	"github.com/ignite/crm-engine/internal/queue"
)

// AckPolicy decides when a receipt event is acknowledged on the queue.
type AckPolicy string

const (
	// AckOnAdmit acknowledges as soon as an event enters the batch. A crash
	// before the flush loses the batched events (at-most-once).
	AckOnAdmit AckPolicy = "on_admit"
	// AckAfterFlush acknowledges only after the batch is persisted. A crash
	// redelivers the events (at-least-once); status updates are idempotent,
	// so replays are safe.
	AckAfterFlush AckPolicy = "after_flush"
)

// ParseAckPolicy maps a config string to a policy, defaulting to AckOnAdmit.
func ParseAckPolicy(s string) AckPolicy {
	if s == string(AckAfterFlush) {
		return AckAfterFlush
	}
	return AckOnAdmit
}

// StatusUpdate is one resolved outcome ready to apply to a communication log.
type StatusUpdate struct {
	LogID         uuid.UUID
	Status        domain.DeliveryStatus
	FailureReason *string
	DeliveredAt   time.Time
}

// Store applies a batch of status updates.
type Store interface {
	ApplyReceipts(ctx context.Context, updates []StatusUpdate) error
}

// Source is the queue surface the consumer reads from.
type Source interface {
	Receive(ctx context.Context, wait time.Duration) (*queue.Message, error)
	Ack(ctx context.Context, m *queue.Message) error
	Nack(ctx context.Context, m *queue.Message) error
}

// Consumer runs the receipt loop: receive, admit into the accumulator, flush
// full batches immediately and partial batches after the inactivity window.
// It is single-threaded and never holds more unflushed events than one batch.
type Consumer struct {
	src    Source
	store  Store
	acc    *Accumulator
	policy AckPolicy
	now    func() time.Time
	log    *logger.Logger

	claimed []*queue.Message // unacked messages of the current batch (after_flush only)
}

func NewConsumer(src Source, store Store, acc *Accumulator, policy AckPolicy) *Consumer {
	return &Consumer{
		src:    src,
		store:  store,
		acc:    acc,
		policy: policy,
		now:    time.Now,
		log:    logger.With("Receipts"),
	}
}

// Run consumes until ctx is cancelled, then flushes whatever is pending
// before returning. The final flush uses a fresh context so shutdown does not
// drop a partial batch.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.src.Receive(ctx, c.acc.NextWait(c.now()))
		if err != nil {
			if ctx.Err() != nil {
				return c.shutdown()
			}
			c.log.Error("receive failed", "error", err.Error())
			continue
		}

		if msg == nil {
			if c.acc.Expired(c.now()) {
				c.flush(ctx, c.acc.ForceFlush())
			}
			continue
		}

		c.admit(ctx, msg)
	}
}

func (c *Consumer) admit(ctx context.Context, msg *queue.Message) {
	var ev delivery.ReceiptEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		c.log.Warn("dropping undecodable receipt event", "error", err.Error())
		if err := c.src.Ack(ctx, msg); err != nil {
			c.log.Error("ack failed", "error", err.Error())
		}
		return
	}

	switch c.policy {
	case AckAfterFlush:
		c.claimed = append(c.claimed, msg)
	default:
		if err := c.src.Ack(ctx, msg); err != nil {
			c.log.Error("ack failed", "error", err.Error())
		}
	}

	if batch, full := c.acc.Add(ev, c.now()); full {
		c.flush(ctx, batch)
	}
}

// flush persists one drained batch and settles its queue messages. Events
// without a usable log id are filtered here rather than at admission, so a
// batch full of them still counts toward the size cutoff it arrived under.
func (c *Consumer) flush(ctx context.Context, events []delivery.ReceiptEvent) {
	if len(events) == 0 {
		return
	}

	now := c.now()
	updates := make([]StatusUpdate, 0, len(events))
	for _, ev := range events {
		logID, err := uuid.Parse(ev.CommunicationLogID)
		if err != nil {
			c.log.Warn("skipping receipt without valid log id", "raw_id", ev.CommunicationLogID)
			continue
		}
		u := StatusUpdate{LogID: logID, DeliveredAt: now}
		if ev.Success {
			u.Status = domain.DeliverySent
		} else {
			u.Status = domain.DeliveryFailed
			reason := ev.FailureReason
			u.FailureReason = &reason
		}
		updates = append(updates, u)
	}

	var err error
	if len(updates) > 0 {
		err = c.store.ApplyReceipts(ctx, updates)
	}
	if err != nil {
		c.log.Error("flush failed", "size", len(updates), "error", err.Error())
		c.settle(ctx, false)
		return
	}
	if len(updates) > 0 {
		c.log.Info("applied receipt batch", "size", len(updates))
	}
	c.settle(ctx, true)
}

// settle acks or nacks the claimed messages of the flushed batch. Under
// AckOnAdmit there is nothing to settle; a failed flush loses the events.
func (c *Consumer) settle(ctx context.Context, ok bool) {
	for _, msg := range c.claimed {
		var err error
		if ok {
			err = c.src.Ack(ctx, msg)
		} else {
			err = c.src.Nack(ctx, msg)
		}
		if err != nil {
			c.log.Error("settle failed", "error", err.Error())
		}
	}
	c.claimed = nil
}

func (c *Consumer) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(ctx, c.acc.ForceFlush())
	return nil
}
