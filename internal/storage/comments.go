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

	"github.com/canonical/task-service/internal/db"
	"github.com/canonical/task-service/internal/types"
)

func (s *Storage) CreateComment(ctx context.Context, c *types.Comment) (*types.Comment, error) {
	ctx, span := s.tracer.Start(ctx, "storage.CreateComment")
	defer span.End()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate comment ID: %w", err)
	}

	var newComment types.Comment
	err = s.db.Statement(ctx).
		Insert("comments").
		Columns("id", "task_id", "author_id", "body").
		Values(id.String(), c.TaskID, c.AuthorID, c.Body).
		Suffix("RETURNING id, task_id, author_id, body, created_at, updated_at").
		QueryRowContext(ctx).
		Scan(&newComment.ID, &newComment.TaskID, &newComment.AuthorID, &newComment.Body, &newComment.CreatedAt, &newComment.UpdatedAt)

	if err != nil {
		if IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("task does not exist: %w", ErrForeignKeyViolation)
		}
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}

	return &newComment, nil
}

func (s *Storage) GetCommentByID(ctx context.Context, id string) (*types.Comment, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetCommentByID")
	defer span.End()

	var c types.Comment
	err := s.db.Statement(ctx).
		Select("id", "task_id", "author_id", "body", "created_at", "updated_at").
		From("comments").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx).
		Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	return &c, nil
}

func (s *Storage) ListCommentsByTaskID(ctx context.Context, taskID string, filter CommentFilter) ([]*types.Comment, error) {
	ctx, span := s.tracer.Start(ctx, "storage.ListCommentsByTaskID")
	defer span.End()

	pageSize := db.PageSize(filter.Size)

	query := s.db.Statement(ctx).
		Select("id", "task_id", "author_id", "body", "created_at", "updated_at").
		From("comments").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("created_at ASC").
		Limit(pageSize).
		Offset(db.Offset(filter.Page, pageSize))

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*types.Comment
	for rows.Next() {
		var c types.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return comments, nil
}

func (s *Storage) UpdateComment(ctx context.Context, id, body string) (*types.Comment, error) {
	ctx, span := s.tracer.Start(ctx, "storage.UpdateComment")
	defer span.End()

	var c types.Comment
	err := s.db.Statement(ctx).
		Update("comments").
		Set("body", body).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING id, task_id, author_id, body, created_at, updated_at").
		QueryRowContext(ctx).
		Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	return &c, nil
}

func (s *Storage) DeleteComment(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "storage.DeleteComment")
	defer span.End()

	res, err := s.db.Statement(ctx).
		Delete("comments").
		Where(sq.Eq{"id": id}).
		ExecContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
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
