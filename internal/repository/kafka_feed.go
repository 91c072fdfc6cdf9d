package repository

import (
	"context"
	"fmt"

	"CoinPulse/internal/domain/models"
	"CoinPulse/pkg/kafka"
)

// KafkaFeed publishes committed tick batches to a Kafka topic, keyed by
// coin id so each coin's ticks stay ordered within a partition.
type KafkaFeed struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaFeed(producer *kafka.Producer, topic string) *KafkaFeed {
	return &KafkaFeed{producer: producer, topic: topic}
}

func (f *KafkaFeed) PublishTicks(ctx context.Context, ticks []models.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(ticks))
	for _, t := range ticks {
		msgs = append(msgs, kafka.Message{Key: []byte(t.CoinID), Value: t})
	}
	if err := f.producer.PublishBatch(ctx, f.topic, msgs); err != nil {
		return fmt.Errorf("publish ticks: %w", err)
	}
	return nil
}

func (f *KafkaFeed) Close() error {
	return f.producer.Close()
}
