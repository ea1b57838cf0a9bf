// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package comments

import (
	"context"

	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/types"
)

type ServiceInterface interface {
	CreateComment(ctx context.Context, taskID, userID, body string) (*types.Comment, error)
	ListComments(ctx context.Context, taskID, userID string, filter storage.CommentFilter) ([]*types.Comment, error)
	UpdateComment(ctx context.Context, commentID, userID, body string) (*types.Comment, error)
	DeleteComment(ctx context.Context, commentID, userID string) error
}

// StorageInterface is the subset of the storage API this package needs.
type StorageInterface interface {
	CreateComment(ctx context.Context, c *types.Comment) (*types.Comment, error)
	GetCommentByID(ctx context.Context, id string) (*types.Comment, error)
	ListCommentsByTaskID(ctx context.Context, taskID string, filter storage.CommentFilter) ([]*types.Comment, error)
	UpdateComment(ctx context.Context, id, body string) (*types.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	GetTaskByID(ctx context.Context, id string) (*types.Task, error)
	GetProjectByID(ctx context.Context, id string) (*types.Project, error)
	GetMembership(ctx context.Context, projectID, userID string) (*types.Membership, error)
}
