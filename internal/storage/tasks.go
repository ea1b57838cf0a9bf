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

const taskColumns = "id, project_id, title, description, status, priority, creator_id, assignee_id, due_at, created_at, updated_at"

func (s *Storage) CreateTask(ctx context.Context, t *types.Task) (*types.Task, error) {
	ctx, span := s.tracer.Start(ctx, "storage.CreateTask")
	defer span.End()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate task ID: %w", err)
	}

	var newTask types.Task
	err = s.db.Statement(ctx).
		Insert("tasks").
		Columns("id", "project_id", "title", "description", "status", "priority", "creator_id", "assignee_id", "due_at").
		Values(id.String(), t.ProjectID, t.Title, t.Description, t.Status, t.Priority, t.CreatorID, t.AssigneeID, t.DueAt).
		Suffix("RETURNING " + taskColumns).
		QueryRowContext(ctx).
		Scan(&newTask.ID, &newTask.ProjectID, &newTask.Title, &newTask.Description, &newTask.Status, &newTask.Priority, &newTask.CreatorID, &newTask.AssigneeID, &newTask.DueAt, &newTask.CreatedAt, &newTask.UpdatedAt)

	if err != nil {
		if IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("project or assignee does not exist: %w", ErrForeignKeyViolation)
		}
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	return &newTask, nil
}

func (s *Storage) GetTaskByID(ctx context.Context, id string) (*types.Task, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetTaskByID")
	defer span.End()

	var t types.Task
	err := s.db.Statement(ctx).
		Select("id", "project_id", "title", "description", "status", "priority", "creator_id", "assignee_id", "due_at", "created_at", "updated_at").
		From("tasks").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx).
		Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.CreatorID, &t.AssigneeID, &t.DueAt, &t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return &t, nil
}

func (s *Storage) ListTasksByProjectID(ctx context.Context, projectID string, filter TaskFilter) ([]*types.Task, error) {
	ctx, span := s.tracer.Start(ctx, "storage.ListTasksByProjectID")
	defer span.End()

	pageSize := db.PageSize(filter.Size)

	query := s.db.Statement(ctx).
		Select("id", "project_id", "title", "description", "status", "priority", "creator_id", "assignee_id", "due_at", "created_at", "updated_at").
		From("tasks").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("created_at DESC").
		Limit(pageSize).
		Offset(db.Offset(filter.Page, pageSize))

	if filter.Status != "" {
		query = query.Where(sq.Eq{"status": filter.Status})
	}

	if filter.AssigneeID != "" {
		query = query.Where(sq.Eq{"assignee_id": filter.AssigneeID})
	}

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*types.Task
	for rows.Next() {
		var t types.Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.CreatorID, &t.AssigneeID, &t.DueAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return tasks, nil
}

// UpdateTask updates the fields named in paths, PATCH semantics. Nil
// assignee_id and due_at clear the column.
func (s *Storage) UpdateTask(ctx context.Context, t *types.Task, paths []string) error {
	ctx, span := s.tracer.Start(ctx, "storage.UpdateTask")
	defer span.End()

	if len(paths) == 0 {
		return nil
	}

	updateMap := make(map[string]interface{})
	for _, p := range paths {
		switch p {
		case "title":
			updateMap["title"] = t.Title
		case "description":
			updateMap["description"] = t.Description
		case "status":
			updateMap["status"] = t.Status
		case "priority":
			updateMap["priority"] = t.Priority
		case "assignee_id":
			updateMap["assignee_id"] = t.AssigneeID
		case "due_at":
			updateMap["due_at"] = t.DueAt
		}
	}

	if len(updateMap) == 0 {
		return nil
	}

	updateMap["updated_at"] = sq.Expr("now()")

	res, err := s.db.Statement(ctx).
		Update("tasks").
		SetMap(updateMap).
		Where(sq.Eq{"id": t.ID}).
		ExecContext(ctx)

	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("assignee does not exist: %w", ErrForeignKeyViolation)
		}
		return fmt.Errorf("failed to update task: %w", err)
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

func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "storage.DeleteTask")
	defer span.End()

	res, err := s.db.Statement(ctx).
		Delete("tasks").
		Where(sq.Eq{"id": id}).
		ExecContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
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
