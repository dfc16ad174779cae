package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// Producer publishes keyed records to one topic. Delivery reports are read
// in the background and failures are logged.
type Producer struct {
	producer *kafka.Producer
	topic    string
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) (*Producer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(brokers, ","),
		"acks":               "all",
		"enable.idempotence": true,
		"linger.ms":          5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	producer := &Producer{
		producer: p,
		topic:    topic,
		logger:   logger,
	}

	producer.wg.Add(1)
	go producer.drainEvents()

	return producer, nil
}

func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          value,
	}, nil)
	if err != nil {
		return fmt.Errorf("produce kafka message: %w", err)
	}
	return nil
}

func (p *Producer) Close() {
	remaining := p.producer.Flush(5000)
	if remaining > 0 {
		p.logger.Warn("Kafka producer closed with undelivered messages", zap.Int("remaining", remaining))
	}
	p.producer.Close()
	p.wg.Wait()
}

func (p *Producer) drainEvents() {
	defer p.wg.Done()

	for ev := range p.producer.Events() {
		switch e := ev.(type) {
		case *kafka.Message:
			if e.TopicPartition.Error != nil {
				p.logger.Error("Kafka delivery failed",
					zap.String("key", string(e.Key)),
					zap.Error(e.TopicPartition.Error),
				)
			}
		case kafka.Error:
			p.logger.Error("Kafka producer error", zap.Error(e))
		}
	}
}
