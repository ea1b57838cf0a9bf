// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package notifications

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring"
	"github.com/canonical/task-service/internal/tracing"
)

const defaultChannel = "task-service:events"

var _ NotifierInterface = (*Broker)(nil)

// Broker bridges the local hub over redis pub/sub so fan-out reaches the
// clients of every replica, not just the instance that handled the write.
type Broker struct {
	client  *redis.Client
	hub     *Hub
	channel string

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

// Publish pushes the event onto the shared channel. Each instance, this one
// included, picks it up in Run and forwards it to its local hub.
func (b *Broker) Publish(ctx context.Context, event Event) {
	ctx, span := b.tracer.Start(ctx, "notifications.Broker.Publish")
	defer span.End()

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Errorf("failed to marshal event %q: %v", event.Name, err)
		return
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Errorf("failed to publish event %q: %v", event.Name, err)
	}
}

// Run subscribes to the shared channel and forwards incoming events into the
// local hub until the context is cancelled. Intended to run as a goroutine
// for the lifetime of the process.
func (b *Broker) Run(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Errorf("dropping malformed event payload: %v", err)
				continue
			}

			b.hub.Broadcast(event)
		}
	}
}

func NewBroker(client *redis.Client, hub *Hub, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *Broker {
	b := new(Broker)

	b.client = client
	b.hub = hub
	b.channel = defaultChannel

	b.tracer = tracer
	b.monitor = monitor
	b.logger = logger

	return b
}
