package botapp

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/model"
	"github.com/GK-FY/bulk/internal/infra/metrics"
	"github.com/GK-FY/bulk/internal/services/dedup"
)

const failureReply = "Something went wrong. Send 0 to return to the menu."

type eventHandler func(ctx context.Context, event model.InboundEvent) ([]model.OutboundMessage, error)

type sendFunc func(ctx context.Context, actorID, text string) error

type mailbox struct {
	queue   []model.InboundEvent
	running bool
}

// router serialises events per actor. Each actor gets a mailbox drained by
// one goroutine, so different actors proceed in parallel while one actor's
// events are handled strictly in arrival order.
type router struct {
	handle  eventHandler
	send    sendFunc
	guard   *dedup.Guard
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu    sync.Mutex
	boxes map[string]*mailbox
	wg    sync.WaitGroup
}

func newRouter(handle eventHandler, send sendFunc, guard *dedup.Guard, m *metrics.Metrics, logger *zap.Logger) *router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &router{
		handle:  handle,
		send:    send,
		guard:   guard,
		metrics: m,
		logger:  logger,
		boxes:   make(map[string]*mailbox),
	}
}

// Dispatch queues the event for its actor. Redelivered events are dropped.
func (r *router) Dispatch(ctx context.Context, event model.InboundEvent) {
	if !r.guard.ClaimEvent(ctx, event.EventID) {
		r.metrics.InboundEvent("duplicate")
		r.logger.Debug("duplicate event dropped", zap.String("event_id", event.EventID))
		return
	}

	r.mu.Lock()
	box, ok := r.boxes[event.ActorID]
	if !ok {
		box = &mailbox{}
		r.boxes[event.ActorID] = box
	}
	box.queue = append(box.queue, event)
	if box.running {
		r.mu.Unlock()
		return
	}
	box.running = true
	r.wg.Add(1)
	r.mu.Unlock()

	go r.drain(ctx, event.ActorID, box)
}

// Wait blocks until every mailbox is empty.
func (r *router) Wait() {
	r.wg.Wait()
}

func (r *router) drain(ctx context.Context, actorID string, box *mailbox) {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		if len(box.queue) == 0 {
			box.running = false
			delete(r.boxes, actorID)
			r.mu.Unlock()
			return
		}
		event := box.queue[0]
		box.queue[0] = model.InboundEvent{}
		box.queue = box.queue[1:]
		r.mu.Unlock()

		r.process(ctx, event)
	}
}

func (r *router) process(ctx context.Context, event model.InboundEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.InboundEvent("failed")
			r.logger.Error("event handler panicked",
				zap.String("event_id", event.EventID),
				zap.String("actor_id", event.ActorID),
				zap.Any("panic", rec),
			)
		}
	}()

	replies, err := r.handle(ctx, event)
	if err != nil {
		r.metrics.InboundEvent("failed")
		r.logger.Error("handle event",
			zap.String("event_id", event.EventID),
			zap.String("actor_id", event.ActorID),
			zap.Error(err),
		)
		replies = []model.OutboundMessage{{ActorID: event.ActorID, Text: failureReply}}
	} else {
		r.metrics.InboundEvent("processed")
	}

	for i, reply := range replies {
		replyID := event.EventID + ":" + strconv.Itoa(i)
		if event.EventID != "" && !r.guard.ClaimReply(ctx, replyID) {
			r.metrics.ReplySuppressed()
			continue
		}
		if err := r.send(ctx, reply.ActorID, reply.Text); err != nil {
			r.logger.Warn("send reply",
				zap.String("actor_id", reply.ActorID),
				zap.String("reply_id", replyID),
				zap.Error(err),
			)
		}
	}
}
