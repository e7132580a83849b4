package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/models"
	pkgkafka "github.com/metaphizix/MetaphizixEA-sub001/pkg/kafka"
)

// KafkaSignalPublisher delivers combined signals to a Kafka topic, keyed
// by symbol so one partition preserves per-symbol ordering.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, s *models.Signal) error {
	msg, err := encode(s)
	if err != nil {
		return err
	}
	return p.producer.Write(ctx, p.topic, msg)
}

func (p *KafkaSignalPublisher) PublishBatch(ctx context.Context, signals []*models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(signals))
	for _, s := range signals {
		msg, err := encode(s)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.producer.Write(ctx, p.topic, msgs...)
}

func (p *KafkaSignalPublisher) Close() error {
	return p.producer.Close()
}

func encode(s *models.Signal) (kafka.Message, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal signal: %w", err)
	}
	return kafka.Message{Key: []byte(s.Symbol), Value: b}, nil
}
