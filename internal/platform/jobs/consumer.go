package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shopmart/api/internal/services"
)

// Outcomes reported to the OutcomeRecorder.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeRetry    = "retry"
)

// VendorStatsApplier applies one decoded increment. services.VendorStatsService satisfies it.
type VendorStatsApplier interface {
	Apply(ctx context.Context, event services.VendorStatsEvent) error
}

// OutcomeRecorder counts handled messages by outcome.
type OutcomeRecorder func(outcome string)

// ConsumerOption customises the Pub/Sub and Kafka consumers.
type ConsumerOption func(*consumerConfig)

type consumerConfig struct {
	logger  *zap.Logger
	outcome OutcomeRecorder
}

// WithConsumerLogger sets the logger used for per-message diagnostics.
func WithConsumerLogger(logger *zap.Logger) ConsumerOption {
	return func(cfg *consumerConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithOutcomeRecorder reports every handled message.
func WithOutcomeRecorder(rec OutcomeRecorder) ConsumerOption {
	return func(cfg *consumerConfig) {
		if rec != nil {
			cfg.outcome = rec
		}
	}
}

func newConsumerConfig(opts []ConsumerOption) consumerConfig {
	cfg := consumerConfig{
		logger:  zap.NewNop(),
		outcome: func(string) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// errPoison marks a message that can never be applied and must be dropped.
var errPoison = errors.New("vendor stats: poison message")

// handleVendorStats decodes and applies a message body. A nil error means the message may be acknowledged.
// errPoison means it should be acknowledged without effect; any other error asks for redelivery.
func handleVendorStats(ctx context.Context, applier VendorStatsApplier, cfg consumerConfig, data []byte) error {
	var event services.VendorStatsEvent
	if err := json.Unmarshal(data, &event); err != nil {
		cfg.logger.Error("vendor stats message undecodable", zap.Error(err))
		cfg.outcome(OutcomeRejected)
		return fmt.Errorf("%w: %v", errPoison, err)
	}

	fields := []zap.Field{
		zap.String("eventId", event.EventID),
		zap.String("orderId", event.OrderID),
		zap.String("vendorId", event.VendorID),
	}

	err := applier.Apply(ctx, event)
	switch {
	case err == nil:
		cfg.outcome(OutcomeApplied)
		return nil
	case errors.Is(err, services.ErrVendorStatsInvalidEvent), errors.Is(err, services.ErrVendorNotFound):
		cfg.logger.Error("vendor stats event rejected", append(fields, zap.Error(err))...)
		cfg.outcome(OutcomeRejected)
		return fmt.Errorf("%w: %v", errPoison, err)
	default:
		cfg.logger.Warn("vendor stats event will be retried", append(fields, zap.Error(err))...)
		cfg.outcome(OutcomeRetry)
		return err
	}
}
