package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer wraps a kafka-go writer.
type Producer struct {
	writer *kafka.Writer
}

// ProducerOption configures the producer.
type ProducerOption func(*producerConfig)

type producerConfig struct {
	brokers      []string
	requiredAcks int
	compression  string
	batchSize    int
	batchTimeout time.Duration
	writeTimeout time.Duration
	maxAttempts  int
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *producerConfig) { c.brokers = brokers }
}
func WithRequiredAcks(acks int) ProducerOption {
	return func(c *producerConfig) { c.requiredAcks = acks }
}
func WithCompression(codec string) ProducerOption {
	return func(c *producerConfig) { c.compression = codec }
}
func WithBatchSize(n int) ProducerOption {
	return func(c *producerConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(c *producerConfig) {
		if d > 0 {
			c.batchTimeout = d
		}
	}
}
func WithWriteTimeout(d time.Duration) ProducerOption {
	return func(c *producerConfig) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}
func WithMaxAttempts(n int) ProducerOption {
	return func(c *producerConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// NewProducer creates a Kafka producer.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := &producerConfig{
		requiredAcks: int(kafka.RequireOne),
		batchSize:    100,
		batchTimeout: 50 * time.Millisecond,
		writeTimeout: 10 * time.Second,
		maxAttempts:  3,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(cfg.requiredAcks),
		BatchSize:    cfg.batchSize,
		BatchTimeout: cfg.batchTimeout,
		WriteTimeout: cfg.writeTimeout,
		MaxAttempts:  cfg.maxAttempts,
	}
	switch cfg.compression {
	case "gzip":
		w.Compression = kafka.Gzip
	case "snappy":
		w.Compression = kafka.Snappy
	case "lz4":
		w.Compression = kafka.Lz4
	case "zstd":
		w.Compression = kafka.Zstd
	}

	return &Producer{writer: w}, nil
}

// Write publishes messages to a topic, keyed for partition affinity.
func (p *Producer) Write(ctx context.Context, topic string, msgs ...kafka.Message) error {
	for i := range msgs {
		msgs[i].Topic = topic
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
