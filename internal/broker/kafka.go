package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"sentinella/internal/config"
	"sentinella/internal/logger"
	"sentinella/pkg/models"
)

const (
	batchTimeout = 100 * time.Millisecond
	writeTimeout = 10 * time.Second
)

// KafkaProducer publishes outcome events to the configured topic. Writes are
// synchronous so a broker outage surfaces immediately to the caller, which
// treats publishing as best effort.
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
	logger logger.Logger
}

func NewKafkaProducer(cfg config.BrokerConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: batchTimeout,
		WriteTimeout: writeTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, topic: cfg.EventsTopic, logger: log}
}

func (p *KafkaProducer) PublishOutcome(ctx context.Context, event models.OutcomeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.MessageID),
		Value: body,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
