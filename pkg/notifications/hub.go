// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package notifications

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/canonical/task-service/internal/logging"
)

var _ NotifierInterface = (*Hub)(nil)

// Hub is the in-process websocket connection registry. It tracks which
// client subscribes to which room and fans events out to room members. The
// mutex guards connection bookkeeping only, no domain state lives here.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}

	logger logging.LoggerInterface
}

// Publish implements NotifierInterface for single-instance deployments, the
// event is fanned out to local subscribers only.
func (h *Hub) Publish(_ context.Context, event Event) {
	h.Broadcast(event)
}

// Broadcast sends the event to every client subscribed to its room. Clients
// whose send buffer is full are dropped, a stalled consumer must not block
// the rest of the room.
func (h *Hub) Broadcast(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorf("failed to marshal event %q: %v", event.Name, err)
		return
	}

	h.mu.RLock()
	subscribers := make([]*client, 0, len(h.rooms[event.Room]))
	for c := range h.rooms[event.Room] {
		subscribers = append(subscribers, c)
	}
	h.mu.RUnlock()

	for _, c := range subscribers {
		if !c.trySend(payload) {
			h.logger.Warnf("dropping slow websocket client in room %q", event.Room)
			h.Unregister(c)
			c.close()
		}
	}
}

// Subscribe adds the client to a room. Authorization happens in the API
// layer before this is called.
func (h *Hub) Subscribe(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) Unsubscribe(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoom(c, room)
	delete(c.rooms, room)
}

// Unregister drops the client from every room it joined.
func (h *Hub) Unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range c.rooms {
		h.removeFromRoom(c, room)
	}
	c.rooms = make(map[string]struct{})
}

// removeFromRoom must be called with the lock held.
func (h *Hub) removeFromRoom(c *client, room string) {
	if subscribers, ok := h.rooms[room]; ok {
		delete(subscribers, c)
		if len(subscribers) == 0 {
			delete(h.rooms, room)
		}
	}
}

// RoomSize reports the subscriber count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[room])
}

func NewHub(logger logging.LoggerInterface) *Hub {
	h := new(Hub)

	h.rooms = make(map[string]map[*client]struct{})
	h.logger = logger

	return h
}
