// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package users

import (
	"context"

	"github.com/canonical/task-service/internal/types"
)

type ServiceInterface interface {
	GetMe(ctx context.Context, userID string) (*types.User, error)
	UpdateMe(ctx context.Context, userID string, user *types.User, paths []string) (*types.User, error)
	GetUser(ctx context.Context, id, callerID string) (*types.User, error)
}

// StorageInterface is the subset of the storage API this package needs.
type StorageInterface interface {
	GetUserByID(ctx context.Context, id string) (*types.User, error)
	UpdateUser(ctx context.Context, u *types.User, paths []string) error
	UsersShareProject(ctx context.Context, userID, otherID string) (bool, error)
}
