// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package storage

import (
	"context"

	"github.com/canonical/task-service/internal/types"
)

// TaskFilter narrows and pages task listings.
type TaskFilter struct {
	Status     string
	AssigneeID string
	Page       int64
	Size       int64
}

// CommentFilter pages comment listings.
type CommentFilter struct {
	Page int64
	Size int64
}

type StorageInterface interface {
	CreateUser(ctx context.Context, u *types.User) (*types.User, error)
	GetUserByID(ctx context.Context, id string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	UpdateUser(ctx context.Context, u *types.User, paths []string) error
	SetUserVerified(ctx context.Context, id string) error
	UsersShareProject(ctx context.Context, userID, otherID string) (bool, error)

	CreateProject(ctx context.Context, p *types.Project) (*types.Project, error)
	GetProjectByID(ctx context.Context, id string) (*types.Project, error)
	ListProjectsByUserID(ctx context.Context, userID string) ([]*types.ProjectSummary, error)
	UpdateProject(ctx context.Context, p *types.Project, paths []string) error
	DeleteProject(ctx context.Context, id string) error

	AddMember(ctx context.Context, projectID, userID, role string) (string, error)
	GetMembership(ctx context.Context, projectID, userID string) (*types.Membership, error)
	ListMembersByProjectID(ctx context.Context, projectID string) ([]*types.ProjectMember, error)
	UpdateMemberRole(ctx context.Context, projectID, userID, role string) error
	RemoveMember(ctx context.Context, projectID, userID string) error

	CreateTask(ctx context.Context, t *types.Task) (*types.Task, error)
	GetTaskByID(ctx context.Context, id string) (*types.Task, error)
	ListTasksByProjectID(ctx context.Context, projectID string, filter TaskFilter) ([]*types.Task, error)
	UpdateTask(ctx context.Context, t *types.Task, paths []string) error
	DeleteTask(ctx context.Context, id string) error

	CreateComment(ctx context.Context, c *types.Comment) (*types.Comment, error)
	GetCommentByID(ctx context.Context, id string) (*types.Comment, error)
	ListCommentsByTaskID(ctx context.Context, taskID string, filter CommentFilter) ([]*types.Comment, error)
	UpdateComment(ctx context.Context, id, body string) (*types.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	CreateRefreshToken(ctx context.Context, t *types.RefreshToken) error
	GetRefreshTokenByID(ctx context.Context, id string) (*types.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string) error
	RevokeRefreshTokensByUserID(ctx context.Context, userID string) error
}
