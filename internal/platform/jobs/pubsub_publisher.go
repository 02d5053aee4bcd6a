package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/shopmart/api/internal/services"
)

// VendorStatsEventType is set as the eventType attribute so subscriptions can filter on it.
const VendorStatsEventType = "vendor.stats.recorded"

const defaultPublishTimeout = 10 * time.Second

// PubSubVendorStatsPublisher publishes vendor stats increments to a Pub/Sub topic. With
// vendor ordering enabled, one vendor's increments are delivered in publish order to
// subscriptions that have message ordering turned on.
type PubSubVendorStatsPublisher struct {
	topic   *pubsub.Topic
	ordered bool
	timeout time.Duration
}

var _ services.VendorStatsPublisher = (*PubSubVendorStatsPublisher)(nil)

// PubSubPublisherOption customises the publisher.
type PubSubPublisherOption func(*PubSubVendorStatsPublisher)

// WithVendorOrdering uses the vendor ID as the ordering key.
func WithVendorOrdering() PubSubPublisherOption {
	return func(p *PubSubVendorStatsPublisher) {
		p.ordered = true
	}
}

// WithPublishTimeout bounds the wait for the server acknowledgement.
func WithPublishTimeout(d time.Duration) PubSubPublisherOption {
	return func(p *PubSubVendorStatsPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPubSubVendorStatsPublisher(topic *pubsub.Topic, opts ...PubSubPublisherOption) (*PubSubVendorStatsPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub vendor stats publisher: topic is required")
	}
	p := &PubSubVendorStatsPublisher{topic: topic, timeout: defaultPublishTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	topic.EnableMessageOrdering = p.ordered
	return p, nil
}

// PublishVendorStats waits for the server-assigned message ID. An event without an
// idempotency key gets the order/vendor key the worker dedupes on.
func (p *PubSubVendorStatsPublisher) PublishVendorStats(ctx context.Context, event services.VendorStatsEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub vendor stats publisher: not initialised")
	}
	event.OrderID = strings.TrimSpace(event.OrderID)
	event.VendorID = strings.TrimSpace(event.VendorID)
	if event.OrderID == "" || event.VendorID == "" {
		return "", fmt.Errorf("pubsub vendor stats publisher: event %q lacks order or vendor id", event.EventID)
	}
	if strings.TrimSpace(event.IdempotencyKey) == "" {
		event.IdempotencyKey = services.VendorStatsKey(event.OrderID, event.VendorID)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal vendor stats event: %w", err)
	}
	msg := &pubsub.Message{Data: data, Attributes: vendorStatsAttributes(event)}
	if p.ordered {
		msg.OrderingKey = event.VendorID
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		if p.ordered {
			// A failed publish pauses its ordering key until resumed.
			p.topic.ResumePublish(msg.OrderingKey)
		}
		return "", fmt.Errorf("publish vendor stats event for %s: %w", event.IdempotencyKey, err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *PubSubVendorStatsPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func vendorStatsAttributes(event services.VendorStatsEvent) map[string]string {
	attrs := map[string]string{
		"eventType":      VendorStatsEventType,
		"orderId":        event.OrderID,
		"vendorId":       event.VendorID,
		"idempotencyKey": event.IdempotencyKey,
		"revenue":        strconv.FormatInt(event.Revenue, 10),
	}
	if id := strings.TrimSpace(event.EventID); id != "" {
		attrs["eventId"] = id
	}
	if number := strings.TrimSpace(event.OrderNumber); number != "" {
		attrs["orderNumber"] = number
	}
	return attrs
}
