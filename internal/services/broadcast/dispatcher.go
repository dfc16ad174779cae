package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/infra/metrics"
)

// Publisher hands one delivery record to the downstream sender.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

type Delivery struct {
	BroadcastID string    `json:"broadcast_id"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	Recipient   string    `json:"recipient"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

type Report struct {
	BroadcastID string
	Sent        int
	Failed      int
}

// Dispatcher fans a message out to each recipient independently; one failed
// delivery does not affect the others.
type Dispatcher struct {
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewDispatcher(publisher Publisher, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

func (d *Dispatcher) FanOut(ctx context.Context, senderID, senderName, text string, recipients []string) Report {
	report := Report{BroadcastID: uuid.NewString()}
	createdAt := d.now().UTC()

	for _, recipient := range recipients {
		payload, err := json.Marshal(Delivery{
			BroadcastID: report.BroadcastID,
			SenderID:    senderID,
			SenderName:  senderName,
			Recipient:   recipient,
			Text:        text,
			CreatedAt:   createdAt,
		})
		if err == nil {
			err = d.publisher.Publish(ctx, recipient, payload)
		}
		if err != nil {
			report.Failed++
			d.metrics.BroadcastDelivery("failed")
			d.logger.Warn("broadcast delivery failed",
				zap.String("broadcast_id", report.BroadcastID),
				zap.String("recipient", recipient),
				zap.Error(err),
			)
			continue
		}
		report.Sent++
		d.metrics.BroadcastDelivery("sent")
	}

	d.logger.Info("broadcast dispatched",
		zap.String("broadcast_id", report.BroadcastID),
		zap.String("sender_id", senderID),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
	)
	return report
}

// LogPublisher records deliveries in the log when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, key string, value []byte) error {
	p.logger.Info("delivery", zap.String("recipient", key), zap.ByteString("payload", value))
	return nil
}
