// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/mock/gomock"

	"github.com/canonical/task-service/internal/logging"
)

func setupBroker(t *testing.T) (*Broker, *Hub) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	mockTracer := NewMockTracingInterface(ctrl)
	mockMonitor := NewMockMonitorInterface(ctrl)
	mockTracer.EXPECT().Start(gomock.Any(), gomock.Any()).
		Return(context.Background(), trace.SpanFromContext(context.Background())).AnyTimes()

	hub := NewHub(logging.NewNoopLogger())
	return NewBroker(client, hub, mockTracer, mockMonitor, logging.NewNoopLogger()), hub
}

func TestBroker_PublishReachesLocalHub(t *testing.T) {
	broker, hub := setupBroker(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go broker.Run(ctx)

	c := newClient("user-1", nil)
	hub.Subscribe(c, ProjectRoom("project-1"))

	// Subscription setup races with the first publish, retry until the
	// message comes through.
	deadline := time.Now().Add(3 * time.Second)
	for {
		broker.Publish(ctx, NewEvent(EventTaskUpdated, ProjectRoom("project-1"), map[string]string{"id": "task-1"}))

		select {
		case raw := <-c.send:
			var event Event
			if err := json.Unmarshal(raw, &event); err != nil {
				t.Fatalf("failed to decode event: %v", err)
			}
			if event.Name != EventTaskUpdated || event.Room != ProjectRoom("project-1") {
				t.Errorf("unexpected event: %+v", event)
			}
			return
		case <-time.After(100 * time.Millisecond):
			if time.Now().After(deadline) {
				t.Fatal("event never reached the hub through the broker")
			}
		}
	}
}

func TestBroker_MalformedPayloadIsDropped(t *testing.T) {
	broker, hub := setupBroker(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go broker.Run(ctx)

	c := newClient("user-1", nil)
	hub.Subscribe(c, ProjectRoom("project-1"))

	// Raw garbage on the channel must not kill the consumer loop.
	deadline := time.Now().Add(3 * time.Second)
	for {
		broker.client.Publish(ctx, broker.channel, "not json")
		broker.Publish(ctx, NewEvent(EventTaskDeleted, ProjectRoom("project-1"), nil))

		select {
		case raw := <-c.send:
			var event Event
			if err := json.Unmarshal(raw, &event); err != nil {
				t.Fatalf("failed to decode event: %v", err)
			}
			if event.Name != EventTaskDeleted {
				t.Errorf("unexpected event: %+v", event)
			}
			return
		case <-time.After(100 * time.Millisecond):
			if time.Now().After(deadline) {
				t.Fatal("valid event never arrived after malformed payload")
			}
		}
	}
}
