package jobs

import (
	"context"
	"errors"

	"cloud.google.com/go/pubsub"
)

// PubSubVendorStatsConsumer applies vendor stats events received from a Pub/Sub subscription.
type PubSubVendorStatsConsumer struct {
	sub     *pubsub.Subscription
	applier VendorStatsApplier
	cfg     consumerConfig
}

// NewPubSubVendorStatsConsumer constructs a consumer for the subscription.
func NewPubSubVendorStatsConsumer(sub *pubsub.Subscription, applier VendorStatsApplier, opts ...ConsumerOption) (*PubSubVendorStatsConsumer, error) {
	if sub == nil {
		return nil, errors.New("pubsub vendor stats consumer: subscription is required")
	}
	if applier == nil {
		return nil, errors.New("pubsub vendor stats consumer: applier is required")
	}
	return &PubSubVendorStatsConsumer{
		sub:     sub,
		applier: applier,
		cfg:     newConsumerConfig(opts),
	}, nil
}

// Run receives messages until ctx is cancelled. Messages are acked only once applied or found to be poison.
func (c *PubSubVendorStatsConsumer) Run(ctx context.Context) error {
	err := c.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		err := handleVendorStats(ctx, c.applier, c.cfg, msg.Data)
		if err == nil || errors.Is(err, errPoison) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
