// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package storage

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/canonical/task-service/internal/types"
)

func (s *Storage) CreateUser(ctx context.Context, u *types.User) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "storage.CreateUser")
	defer span.End()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user ID: %w", err)
	}

	var newUser types.User
	err = s.db.Statement(ctx).
		Insert("users").
		Columns("id", "email", "name", "password_hash", "verified").
		Values(id.String(), u.Email, u.Name, u.PasswordHash, u.Verified).
		Suffix("RETURNING id, email, name, password_hash, verified, created_at, updated_at").
		QueryRowContext(ctx).
		Scan(&newUser.ID, &newUser.Email, &newUser.Name, &newUser.PasswordHash, &newUser.Verified, &newUser.CreatedAt, &newUser.UpdatedAt)

	if err != nil {
		if IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("email already registered: %w", ErrDuplicateKey)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &newUser, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetUserByID")
	defer span.End()

	var u types.User
	err := s.db.Statement(ctx).
		Select("id", "email", "name", "password_hash", "verified", "created_at", "updated_at").
		From("users").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Verified, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetUserByEmail")
	defer span.End()

	var u types.User
	err := s.db.Statement(ctx).
		Select("id", "email", "name", "password_hash", "verified", "created_at", "updated_at").
		From("users").
		Where(sq.Eq{"email": email}).
		QueryRowContext(ctx).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Verified, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &u, nil
}

// UpdateUser updates the fields named in paths, PATCH semantics.
func (s *Storage) UpdateUser(ctx context.Context, u *types.User, paths []string) error {
	ctx, span := s.tracer.Start(ctx, "storage.UpdateUser")
	defer span.End()

	if len(paths) == 0 {
		return nil
	}

	updateMap := make(map[string]interface{})
	for _, p := range paths {
		switch p {
		case "name":
			updateMap["name"] = u.Name
		case "email":
			updateMap["email"] = u.Email
		case "password_hash":
			updateMap["password_hash"] = u.PasswordHash
		}
	}

	if len(updateMap) == 0 {
		return nil
	}

	updateMap["updated_at"] = sq.Expr("now()")

	res, err := s.db.Statement(ctx).
		Update("users").
		SetMap(updateMap).
		Where(sq.Eq{"id": u.ID}).
		ExecContext(ctx)

	if err != nil {
		if IsDuplicateKeyError(err) {
			return fmt.Errorf("email already registered: %w", ErrDuplicateKey)
		}
		return fmt.Errorf("failed to update user: %w", err)
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

func (s *Storage) SetUserVerified(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "storage.SetUserVerified")
	defer span.End()

	res, err := s.db.Statement(ctx).
		Update("users").
		Set("verified", true).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		ExecContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
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

// UsersShareProject reports whether two users have standing on at least one
// common project, as owner or member. It backs the members-visible profile
// rule.
func (s *Storage) UsersShareProject(ctx context.Context, userID, otherID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "storage.UsersShareProject")
	defer span.End()

	const standing = `
		SELECT project_id, user_id FROM project_members
		UNION
		SELECT id AS project_id, owner_id AS user_id FROM projects`

	var shared bool
	err := s.db.Statement(ctx).
		Select().
		Column(sq.Expr(
			"EXISTS (SELECT 1 FROM ("+standing+") a JOIN ("+standing+") b ON a.project_id = b.project_id WHERE a.user_id = ? AND b.user_id = ?)",
			userID, otherID,
		)).
		QueryRowContext(ctx).
		Scan(&shared)

	if err != nil {
		return false, fmt.Errorf("failed to check shared projects: %w", err)
	}

	return shared, nil
}
