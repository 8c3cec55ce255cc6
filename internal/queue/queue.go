// Package queue implements durable message queues on Redis lists.
//
// Publish LPUSHes an enveloped payload; Receive claims the oldest entry by
// LMOVE onto a processing list, so a consumer crash leaves claimed-but-unacked
// messages recoverable via RecoverPending. Ack removes the entry from the
// processing list; Nack returns it to the tail of the source queue for
// redelivery. Each component owns its own client and releases it on shutdown.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Queue names shared by the gateway, orchestrator, and consumers.
const (
	CustomerIngestQueue   = "customer_ingest_queue"
	OrderIngestQueue      = "order_ingest_queue"
	DeliveryReceiptsQueue = "delivery_receipts"
)

// pollInterval is how often Receive re-checks an empty queue.
const pollInterval = 50 * time.Millisecond

// envelope wraps a payload with a unique id so identical payloads stay
// distinguishable on the processing list. Body is base64-coded inside the
// envelope, so payloads don't have to be JSON themselves.
type envelope struct {
	ID   string `json:"id"`
	Body []byte `json:"body"`
}

// Message is one claimed queue entry. It must be Acked or Nacked exactly
// once; until then it sits on the processing list.
type Message struct {
	ID   string
	Body []byte

	raw string // exact list entry, needed for LREM
}

// Queue is a named durable queue plus its processing list.
type Queue struct {
	rdb        *redis.Client
	name       string
	processing string
}

// New returns a handle to the named queue. Consumers of the same queue share
// one processing list; the spec's scheduling model runs a single consumer
// instance per queue.
func New(rdb *redis.Client, name string) *Queue {
	return &Queue{
		rdb:        rdb,
		name:       name,
		processing: name + ":processing",
	}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Publish enqueues one payload.
func (q *Queue) Publish(ctx context.Context, body []byte) error {
	env := envelope{ID: uuid.New().String(), Body: body}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, string(raw)).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", q.name, err)
	}
	return nil
}

// Receive claims the next message, polling for up to wait. It returns
// (nil, nil) when wait elapses with the queue empty, which callers use as
// their batching/inactivity tick.
func (q *Queue) Receive(ctx context.Context, wait time.Duration) (*Message, error) {
	deadline := time.Now().Add(wait)
	for {
		raw, err := q.rdb.LMove(ctx, q.name, q.processing, "RIGHT", "LEFT").Result()
		if err == nil {
			return q.decode(raw)
		}
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("receive from %s: %w", q.name, err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		sleep := pollInterval
		if remaining < sleep {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (q *Queue) decode(raw string) (*Message, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// An undecodable entry still has to be removable; hand it to the
		// caller so its drop policy applies.
		return &Message{ID: "", Body: []byte(raw), raw: raw}, nil
	}
	return &Message{ID: env.ID, Body: env.Body, raw: raw}, nil
}

// Ack removes a claimed message from the processing list.
func (q *Queue) Ack(ctx context.Context, m *Message) error {
	if err := q.rdb.LRem(ctx, q.processing, 1, m.raw).Err(); err != nil {
		return fmt.Errorf("ack on %s: %w", q.name, err)
	}
	return nil
}

// Nack removes a claimed message from the processing list and returns it to
// the tail of the queue, so it is redelivered next.
func (q *Queue) Nack(ctx context.Context, m *Message) error {
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.processing, 1, m.raw)
	pipe.RPush(ctx, q.name, m.raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("nack on %s: %w", q.name, err)
	}
	return nil
}

// RecoverPending moves everything left on the processing list back onto the
// queue. Run once at consumer startup to reclaim messages a previous
// instance claimed but never acked.
func (q *Queue) RecoverPending(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.rdb.LMove(ctx, q.processing, q.name, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("recover pending on %s: %w", q.name, err)
		}
		moved++
	}
}

// Depth returns the number of waiting (unclaimed) messages.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("depth of %s: %w", q.name, err)
	}
	return n, nil
}

// PendingDepth returns the number of claimed-but-unacked messages.
func (q *Queue) PendingDepth(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.processing).Result()
	if err != nil {
		return 0, fmt.Errorf("pending depth of %s: %w", q.name, err)
	}
	return n, nil
}
