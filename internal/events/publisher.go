// Package events publishes pipeline run notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/Saul-Punybz/unbiased/internal/config"
)

// RunCompletedType is the event-type header of run completion events.
const RunCompletedType = "update.completed"

// RunCompletedEvent is the message value published after a completed run.
type RunCompletedEvent struct {
	Type       string    `json:"type"`
	RunID      string    `json:"runId"`
	OccurredAt time.Time `json:"occurredAt"`
	Result     any       `json:"result"`
}

// Publisher sends events through a synchronous Kafka producer. A Publisher
// built without brokers is disabled and drops every event.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

// NewPublisher connects a sync producer to the configured brokers.
func NewPublisher(cfg config.KafkaConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		slog.Warn("kafka brokers not configured, run events disabled")
		return &Publisher{topic: cfg.Topic, now: time.Now}, nil
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.ClientID = "unbiased"
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("events: connect to kafka: %w", err)
	}
	slog.Info("kafka producer ready", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return newPublisher(producer, cfg.Topic), nil
}

func newPublisher(p sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: p, topic: topic, now: time.Now}
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool {
	return p != nil && p.producer != nil
}

// PublishRunCompleted sends a RunCompletedEvent keyed by run id.
func (p *Publisher) PublishRunCompleted(ctx context.Context, runID string, result any) error {
	if !p.Enabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", runID, err)
	}

	value, err := json.Marshal(RunCompletedEvent{
		Type:       RunCompletedType,
		RunID:      runID,
		OccurredAt: p.now().UTC(),
		Result:     result,
	})
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", runID, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(runID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(RunCompletedType)},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", runID, err)
	}

	slog.Debug("events: run published", "run", runID, "partition", partition, "offset", offset)
	return nil
}

// Close flushes and closes the producer.
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.producer.Close()
}
