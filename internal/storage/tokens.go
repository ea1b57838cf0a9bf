// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package storage

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/canonical/task-service/internal/types"
)

func (s *Storage) CreateRefreshToken(ctx context.Context, t *types.RefreshToken) error {
	ctx, span := s.tracer.Start(ctx, "storage.CreateRefreshToken")
	defer span.End()

	_, err := s.db.Statement(ctx).
		Insert("refresh_tokens").
		Columns("id", "user_id", "token_hash", "expires_at", "revoked").
		Values(t.ID, t.UserID, t.TokenHash, t.ExpiresAt, false).
		ExecContext(ctx)

	if err != nil {
		if IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		if IsForeignKeyViolation(err) {
			return ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to insert refresh token: %w", err)
	}

	return nil
}

func (s *Storage) GetRefreshTokenByID(ctx context.Context, id string) (*types.RefreshToken, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetRefreshTokenByID")
	defer span.End()

	var t types.RefreshToken
	err := s.db.Statement(ctx).
		Select("id", "user_id", "token_hash", "expires_at", "revoked", "created_at").
		From("refresh_tokens").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return &t, nil
}

func (s *Storage) RevokeRefreshToken(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "storage.RevokeRefreshToken")
	defer span.End()

	res, err := s.db.Statement(ctx).
		Update("refresh_tokens").
		Set("revoked", true).
		Where(sq.Eq{"id": id}).
		ExecContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// RevokeRefreshTokensByUserID revokes every live token for the user, logout
// from all sessions.
func (s *Storage) RevokeRefreshTokensByUserID(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "storage.RevokeRefreshTokensByUserID")
	defer span.End()

	_, err := s.db.Statement(ctx).
		Update("refresh_tokens").
		Set("revoked", true).
		Where(sq.Eq{
			"user_id": userID,
			"revoked": false,
		}).
		ExecContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	return nil
}
