// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package notifications

import (
	"context"

	"github.com/canonical/task-service/internal/types"
)

// NotifierInterface is the port services invoke after each mutation. Delivery
// is best effort: implementations log failures and never return them, a lost
// notification must not fail the request that caused it.
type NotifierInterface interface {
	Publish(ctx context.Context, event Event)
}

// RoomAuthorizerInterface decides whether a connected user may subscribe to a
// room.
type RoomAuthorizerInterface interface {
	Authorize(ctx context.Context, userID, room string) bool
}

// StorageInterface is the subset of the storage API the room authorizer needs.
type StorageInterface interface {
	GetProjectByID(ctx context.Context, id string) (*types.Project, error)
	GetMembership(ctx context.Context, projectID, userID string) (*types.Membership, error)
}
