// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package tasks

import (
	"context"

	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/types"
)

type ServiceInterface interface {
	CreateTask(ctx context.Context, projectID, userID string, task *types.Task) (*types.Task, error)
	ListTasks(ctx context.Context, projectID, userID string, filter storage.TaskFilter) ([]*types.Task, error)
	GetTask(ctx context.Context, taskID, userID string) (*types.Task, error)
	UpdateTask(ctx context.Context, taskID, userID string, task *types.Task, paths []string) (*types.Task, error)
	DeleteTask(ctx context.Context, taskID, userID string) error
}

// StorageInterface is the subset of the storage API this package needs.
type StorageInterface interface {
	CreateTask(ctx context.Context, t *types.Task) (*types.Task, error)
	GetTaskByID(ctx context.Context, id string) (*types.Task, error)
	ListTasksByProjectID(ctx context.Context, projectID string, filter storage.TaskFilter) ([]*types.Task, error)
	UpdateTask(ctx context.Context, t *types.Task, paths []string) error
	DeleteTask(ctx context.Context, id string) error

	GetProjectByID(ctx context.Context, id string) (*types.Project, error)
	GetMembership(ctx context.Context, projectID, userID string) (*types.Membership, error)
}
