// Package redis publishes drift and retraining alerts on a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
)

const publishTimeout = 2 * time.Second

// Alert is the message body written to the channel.
type Alert struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publisher is a fire-and-forget domain.EventPublisher. Delivery failures are
// logged and never returned. A fallback publisher, if set, sees every event.
type Publisher struct {
	client   *redis.Client
	channel  string
	fallback domain.EventPublisher
}

var _ domain.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a Redis alert publisher.
func NewPublisher(client *redis.Client, channel string, fallback domain.EventPublisher) *Publisher {
	return &Publisher{
		client:   client,
		channel:  channel,
		fallback: fallback,
	}
}

// Publish sends the event without waiting on the caller's deadline.
func (p *Publisher) Publish(ctx context.Context, eventType string, data map[string]any) {
	if p.fallback != nil {
		p.fallback.Publish(ctx, eventType, data)
	}

	payload, err := json.Marshal(Alert{Type: eventType, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		observability.FromContext(ctx).Error("failed to encode alert", observability.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.client.Publish(pubCtx, p.channel, payload).Err(); err != nil {
		observability.FromContext(ctx).Warn("failed to publish alert",
			observability.String("channel", p.channel),
			observability.String("event_type", eventType),
			observability.Error(err))
	}
}
