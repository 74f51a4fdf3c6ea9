package repository

import (
	"context"
	"fmt"
	"time"

	"NewsPulse/internal/domain/models"
	pkgkafka "NewsPulse/pkg/kafka"
)

// KafkaSignalBus broadcasts produced signals to downstream consumers on a
// Kafka topic, keyed by event id so one event's signals stay ordered.
type KafkaSignalBus struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalBus(producer *pkgkafka.Producer, topic string) *KafkaSignalBus {
	if topic == "" {
		topic = "newspulse.signals"
	}
	return &KafkaSignalBus{producer: producer, topic: topic}
}

// signalEnvelope is the wire shape published to the topic.
type signalEnvelope struct {
	EventID    string    `json:"event_id"`
	Horizon    string    `json:"horizon"`
	Direction  string    `json:"direction"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale"`
	ProducedAt time.Time `json:"produced_at"`
}

func (b *KafkaSignalBus) PublishSignal(ctx context.Context, eventID string, sig *models.Signal) error {
	env := signalEnvelope{
		EventID:    eventID,
		Horizon:    string(sig.HorizonClass),
		Direction:  string(sig.Direction),
		Confidence: sig.Confidence,
		Rationale:  sig.Rationale,
		ProducedAt: sig.ProducedAt,
	}
	if err := b.producer.Publish(ctx, b.topic, []byte(eventID), env); err != nil {
		return fmt.Errorf("publish signal %s: %w", eventID, err)
	}
	return nil
}

func (b *KafkaSignalBus) Close() error {
	return b.producer.Close()
}
