// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package notifications

import (
	"fmt"
	"time"
)

// Event names pushed to websocket subscribers after each mutation.
const (
	EventProjectCreated = "project.created"
	EventProjectUpdated = "project.updated"
	EventProjectDeleted = "project.deleted"
	EventMemberAdded    = "member.added"
	EventMemberUpdated  = "member.updated"
	EventMemberRemoved  = "member.removed"
	EventTaskCreated    = "task.created"
	EventTaskUpdated    = "task.updated"
	EventTaskDeleted    = "task.deleted"
	EventCommentCreated = "comment.created"
	EventCommentUpdated = "comment.updated"
	EventCommentDeleted = "comment.deleted"
	EventUserUpdated    = "user.updated"
)

// Event is one live-update notification, addressed to a room.
type Event struct {
	Name    string      `json:"name"`
	Room    string      `json:"room"`
	Payload interface{} `json:"payload"`
	Time    time.Time   `json:"time"`
}

func NewEvent(name, room string, payload interface{}) Event {
	return Event{
		Name:    name,
		Room:    room,
		Payload: payload,
		Time:    time.Now().UTC(),
	}
}

// ProjectRoom is the subscriber group for everything happening inside one
// project.
func ProjectRoom(projectID string) string {
	return fmt.Sprintf("project:%s", projectID)
}

// UserRoom is the per-user subscriber group, used for events that concern the
// user directly (membership changes, assignments).
func UserRoom(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}
