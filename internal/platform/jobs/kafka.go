package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shopmart/api/internal/services"
)

// NewKafkaWriter builds a writer that keys messages onto partitions by hash.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// NewKafkaReader builds a consumer-group reader.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaVendorStatsPublisher writes vendor stats events keyed by vendor ID, so one vendor's
// increments stay ordered on a single partition.
type KafkaVendorStatsPublisher struct {
	writer MessageWriter
	clock  func() time.Time
}

var _ services.VendorStatsPublisher = (*KafkaVendorStatsPublisher)(nil)

// NewKafkaVendorStatsPublisher wraps a kafka writer.
func NewKafkaVendorStatsPublisher(writer MessageWriter) (*KafkaVendorStatsPublisher, error) {
	if writer == nil {
		return nil, errors.New("kafka vendor stats publisher: writer is required")
	}
	return &KafkaVendorStatsPublisher{writer: writer, clock: time.Now}, nil
}

// PublishVendorStats writes the event. Kafka assigns no message ID, so the event ID is returned.
func (p *KafkaVendorStatsPublisher) PublishVendorStats(ctx context.Context, event services.VendorStatsEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal vendor stats event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.VendorID),
		Value: data,
		Time:  p.clock().UTC(),
		Headers: []kafka.Header{
			{Key: "idempotencyKey", Value: []byte(event.IdempotencyKey)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return "", fmt.Errorf("publish vendor stats event: %w", err)
	}
	return event.EventID, nil
}

// Close flushes and closes the writer.
func (p *KafkaVendorStatsPublisher) Close() error {
	return p.writer.Close()
}

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaVendorStatsConsumer applies events from a consumer group. Offsets are committed only after
// a message is applied or dropped as poison; transient failures are retried in place so later
// offsets never commit past an unapplied message.
type KafkaVendorStatsConsumer struct {
	reader     MessageReader
	applier    VendorStatsApplier
	cfg        consumerConfig
	newBackOff func() backoff.BackOff
}

// NewKafkaVendorStatsConsumer constructs a consumer around a kafka reader.
func NewKafkaVendorStatsConsumer(reader MessageReader, applier VendorStatsApplier, opts ...ConsumerOption) (*KafkaVendorStatsConsumer, error) {
	if reader == nil {
		return nil, errors.New("kafka vendor stats consumer: reader is required")
	}
	if applier == nil {
		return nil, errors.New("kafka vendor stats consumer: applier is required")
	}
	return &KafkaVendorStatsConsumer{
		reader:  reader,
		applier: applier,
		cfg:     newConsumerConfig(opts),
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(500*time.Millisecond),
				backoff.WithMaxInterval(30*time.Second),
				backoff.WithMaxElapsedTime(0),
			)
		},
	}, nil
}

// Run fetches and applies messages until ctx is cancelled.
func (c *KafkaVendorStatsConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch vendor stats message: %w", err)
		}

		policy := backoff.WithContext(c.newBackOff(), ctx)
		err = backoff.Retry(func() error {
			err := handleVendorStats(ctx, c.applier, c.cfg, msg.Value)
			if errors.Is(err, errPoison) {
				return nil
			}
			return err
		}, policy)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.cfg.logger.Error("vendor stats commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
			return fmt.Errorf("commit vendor stats message: %w", err)
		}
	}
}

// Close releases the reader.
func (c *KafkaVendorStatsConsumer) Close() error {
	return c.reader.Close()
}
