// Package ingest moves customer and order records from the intake queues
// into the store. The HTTP gateway validates and enqueues; one consumer per
// queue receives, processes, and settles each message explicitly.
package ingest

import (
	"context"
	"time"

	"github.com/ignite/crm-engine/internal/pkg/logger"
	"github.com/ignite/crm-engine/internal/queue"
)

// Result is a handler's verdict for one message.
type Result int

const (
	// Processed means the record was applied; ack.
	Processed Result = iota
	// Dropped means the record is unusable or redundant; ack so it is
	// never redelivered.
	Dropped
	// Retry means a transient failure; nack for redelivery. There is no
	// backoff, so a persistently failing record keeps cycling.
	Retry
)

// Handler processes one raw message body.
type Handler interface {
	Handle(ctx context.Context, body []byte) Result
}

// Source is the queue surface a loop reads from.
type Source interface {
	Receive(ctx context.Context, wait time.Duration) (*queue.Message, error)
	Ack(ctx context.Context, m *queue.Message) error
	Nack(ctx context.Context, m *queue.Message) error
}

// receiveWait bounds each blocking receive so the loop notices cancellation.
const receiveWait = time.Second

// Loop is the receive-process-settle cycle shared by both ingest consumers.
type Loop struct {
	src     Source
	handler Handler
	log     *logger.Logger
}

func NewLoop(src Source, handler Handler, component string) *Loop {
	return &Loop{src: src, handler: handler, log: logger.With(component)}
}

// Run consumes until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		msg, err := l.src.Receive(ctx, receiveWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.log.Error("receive failed", "error", err.Error())
			continue
		}
		if msg == nil {
			continue
		}

		var settle error
		switch l.handler.Handle(ctx, msg.Body) {
		case Retry:
			settle = l.src.Nack(ctx, msg)
		default:
			settle = l.src.Ack(ctx, msg)
		}
		if settle != nil {
			l.log.Error("settle failed", "message_id", msg.ID, "error", settle.Error())
		}
	}
}
