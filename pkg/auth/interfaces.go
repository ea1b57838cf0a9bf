// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package auth

import (
	"context"

	"github.com/canonical/task-service/internal/types"
)

type ServiceInterface interface {
	Register(ctx context.Context, email, name, password string) (*types.User, string, error)
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, userID string) error
	Verify(ctx context.Context, verificationToken string) error
}

// StorageInterface is the subset of the storage API this package needs.
type StorageInterface interface {
	CreateUser(ctx context.Context, u *types.User) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	SetUserVerified(ctx context.Context, id string) error

	CreateRefreshToken(ctx context.Context, t *types.RefreshToken) error
	GetRefreshTokenByID(ctx context.Context, id string) (*types.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string) error
	RevokeRefreshTokensByUserID(ctx context.Context, userID string) error
}
