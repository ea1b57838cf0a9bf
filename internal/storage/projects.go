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

func (s *Storage) CreateProject(ctx context.Context, p *types.Project) (*types.Project, error) {
	ctx, span := s.tracer.Start(ctx, "storage.CreateProject")
	defer span.End()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate project ID: %w", err)
	}

	var newProject types.Project
	err = s.db.Statement(ctx).
		Insert("projects").
		Columns("id", "name", "description", "owner_id", "archived").
		Values(id.String(), p.Name, p.Description, p.OwnerID, false).
		Suffix("RETURNING id, name, description, owner_id, archived, created_at, updated_at").
		QueryRowContext(ctx).
		Scan(&newProject.ID, &newProject.Name, &newProject.Description, &newProject.OwnerID, &newProject.Archived, &newProject.CreatedAt, &newProject.UpdatedAt)

	if err != nil {
		if IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("owner does not exist: %w", ErrForeignKeyViolation)
		}
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}

	return &newProject, nil
}

func (s *Storage) GetProjectByID(ctx context.Context, id string) (*types.Project, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetProjectByID")
	defer span.End()

	var p types.Project
	err := s.db.Statement(ctx).
		Select("id", "name", "description", "owner_id", "archived", "created_at", "updated_at").
		From("projects").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx).
		Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.Archived, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &p, nil
}

// ListProjectsByUserID returns projects the user owns plus projects the user
// is a member of, newest first, each with its current task count.
func (s *Storage) ListProjectsByUserID(ctx context.Context, userID string) ([]*types.ProjectSummary, error) {
	ctx, span := s.tracer.Start(ctx, "storage.ListProjectsByUserID")
	defer span.End()

	query := s.db.Statement(ctx).
		Select(
			"p.id", "p.name", "p.description", "p.owner_id", "p.archived", "p.created_at", "p.updated_at",
			"(SELECT count(*) FROM tasks t WHERE t.project_id = p.id) AS task_count",
		).
		From("projects p").
		LeftJoin("project_members m ON p.id = m.project_id AND m.user_id = ?", userID).
		Where(sq.Or{
			sq.Eq{"p.owner_id": userID},
			sq.NotEq{"m.id": nil},
		}).
		OrderBy("p.created_at DESC")

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*types.ProjectSummary
	for rows.Next() {
		var p types.ProjectSummary
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.Archived, &p.CreatedAt, &p.UpdatedAt, &p.TaskCount); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return projects, nil
}

// UpdateProject updates the fields named in paths, PATCH semantics.
func (s *Storage) UpdateProject(ctx context.Context, p *types.Project, paths []string) error {
	ctx, span := s.tracer.Start(ctx, "storage.UpdateProject")
	defer span.End()

	if len(paths) == 0 {
		return nil
	}

	updateMap := make(map[string]interface{})
	for _, path := range paths {
		switch path {
		case "name":
			updateMap["name"] = p.Name
		case "description":
			updateMap["description"] = p.Description
		case "archived":
			updateMap["archived"] = p.Archived
		}
	}

	if len(updateMap) == 0 {
		return nil
	}

	updateMap["updated_at"] = sq.Expr("now()")

	res, err := s.db.Statement(ctx).
		Update("projects").
		SetMap(updateMap).
		Where(sq.Eq{"id": p.ID}).
		ExecContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
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

func (s *Storage) DeleteProject(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "storage.DeleteProject")
	defer span.End()

	res, err := s.db.Statement(ctx).
		Delete("projects").
		Where(sq.Eq{"id": id}).
		ExecContext(ctx)

	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
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
