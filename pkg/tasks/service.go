// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/canonical/task-service/internal/access"
	"github.com/canonical/task-service/internal/cache"
	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring"
	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/tracing"
	"github.com/canonical/task-service/internal/types"
	"github.com/canonical/task-service/pkg/notifications"
)

// ErrInvalidAssignee rejects task assignments to users without standing on
// the project. Handlers map it to a 400.
var ErrInvalidAssignee = errors.New("assignee is not a project member")

var _ ServiceInterface = (*Service)(nil)

type Service struct {
	storage   StorageInterface
	cache     cache.CacheInterface
	evaluator access.EvaluatorInterface
	notifier  notifications.NotifierInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func NewService(
	s StorageInterface,
	c cache.CacheInterface,
	evaluator access.EvaluatorInterface,
	notifier notifications.NotifierInterface,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) *Service {
	return &Service{
		storage:   s,
		cache:     c,
		evaluator: evaluator,
		notifier:  notifier,
		tracer:    tracer,
		monitor:   monitor,
		logger:    logger,
	}
}

// CreateTask adds a task to the project, member and up. The assignee, when
// set, must be the owner or hold a membership.
func (s *Service) CreateTask(ctx context.Context, projectID, userID string, task *types.Task) (*types.Task, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Service.CreateTask")
	defer span.End()

	project, membership, err := s.loadProjectAccess(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	if d := s.evaluator.EvaluateProject(ctx, project, membership, userID, access.RoleMember); !d.Granted {
		return nil, s.deny(userID, projectID, d)
	}

	if task.AssigneeID != nil {
		if err := s.checkAssignee(ctx, project, *task.AssigneeID); err != nil {
			return nil, err
		}
	}

	task.ProjectID = projectID
	task.CreatorID = userID
	if task.Status == "" {
		task.Status = types.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = types.TaskPriorityMedium
	}

	created, err := s.storage.CreateTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.invalidate(ctx, projectID, created.ID)
	s.publish(ctx, notifications.EventTaskCreated, created)

	return created, nil
}

// ListTasks returns the project's tasks, viewer and up. Unfiltered first
// pages are served from the cache; filtered listings always hit storage.
func (s *Service) ListTasks(ctx context.Context, projectID, userID string, filter storage.TaskFilter) ([]*types.Task, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Service.ListTasks")
	defer span.End()

	project, membership, err := s.loadProjectAccess(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	if d := s.evaluator.EvaluateProject(ctx, project, membership, userID, access.RoleViewer, access.WithArchivedAccess()); !d.Granted {
		return nil, s.deny(userID, projectID, d)
	}

	cacheable := filter == storage.TaskFilter{}
	key := cache.ProjectTasksKey(projectID)

	if cacheable {
		var cached []*types.Task
		if s.cache.GetJSON(ctx, key, &cached) {
			return cached, nil
		}
	}

	tasks, err := s.storage.ListTasksByProjectID(ctx, projectID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*types.Task{}
	}

	if cacheable {
		s.cache.SetJSON(ctx, key, tasks, cache.ProjectTasksTTL)
	}

	return tasks, nil
}

// GetTask returns one task. Visibility is project membership, with the
// creator/assignee fallback for users who were since removed from the project.
func (s *Service) GetTask(ctx context.Context, taskID, userID string) (*types.Task, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Service.GetTask")
	defer span.End()

	key := cache.TaskDetailKey(taskID)

	var cached types.Task
	if s.cache.GetJSON(ctx, key, &cached) {
		if err := s.checkTaskAccess(ctx, &cached, userID, access.RoleViewer); err != nil {
			return nil, err
		}
		return &cached, nil
	}

	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.checkTaskAccess(ctx, task, userID, access.RoleViewer); err != nil {
		return nil, err
	}

	s.cache.SetJSON(ctx, key, task, cache.TaskDetailTTL)

	return task, nil
}

// UpdateTask applies the fields named in paths, member and up or the task's
// creator/assignee.
func (s *Service) UpdateTask(ctx context.Context, taskID, userID string, task *types.Task, paths []string) (*types.Task, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.Service.UpdateTask")
	defer span.End()

	current, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	project, membership, err := s.loadProjectAccess(ctx, current.ProjectID, userID)
	if err != nil {
		return nil, err
	}

	d := s.evaluator.EvaluateTask(ctx, project, membership, current, userID, access.RoleMember)
	if !d.Granted && !s.taskPrincipalGranted(ctx, project, membership, current, userID) {
		return nil, s.deny(userID, current.ProjectID, d)
	}

	if task.AssigneeID != nil {
		if err := s.checkAssignee(ctx, project, *task.AssigneeID); err != nil {
			return nil, err
		}
	}

	task.ID = taskID
	if err := s.storage.UpdateTask(ctx, task, paths); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	updated, err := s.storage.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get updated task: %w", err)
	}

	s.invalidate(ctx, current.ProjectID, taskID)
	s.publish(ctx, notifications.EventTaskUpdated, updated)

	return updated, nil
}

// DeleteTask removes a task, admin and up or the task's creator.
func (s *Service) DeleteTask(ctx context.Context, taskID, userID string) error {
	ctx, span := s.tracer.Start(ctx, "tasks.Service.DeleteTask")
	defer span.End()

	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}

	project, membership, err := s.loadProjectAccess(ctx, task.ProjectID, userID)
	if err != nil {
		return err
	}

	d := s.evaluator.EvaluateTask(ctx, project, membership, task, userID, access.RoleAdmin)
	if !d.Granted {
		creatorAllowed := task.CreatorID == userID &&
			s.evaluator.EvaluateTask(ctx, project, membership, task, userID, access.RoleViewer).Granted
		if !creatorAllowed {
			return s.deny(userID, task.ProjectID, d)
		}
	}

	if err := s.storage.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.invalidate(ctx, task.ProjectID, taskID)
	s.publish(ctx, notifications.EventTaskDeleted, task)

	return nil
}

// taskPrincipalGranted reports whether the caller may write to the task as
// its creator or assignee, the fallback below the member rank.
func (s *Service) taskPrincipalGranted(ctx context.Context, project *types.Project, membership *types.Membership, task *types.Task, userID string) bool {
	if task.CreatorID != userID && (task.AssigneeID == nil || *task.AssigneeID != userID) {
		return false
	}
	return s.evaluator.EvaluateTask(ctx, project, membership, task, userID, access.RoleViewer).Granted
}

// checkTaskAccess resolves the task's project and membership and evaluates
// the caller against required.
func (s *Service) checkTaskAccess(ctx context.Context, task *types.Task, userID string, required access.Role) error {
	project, membership, err := s.loadProjectAccess(ctx, task.ProjectID, userID)
	if err != nil {
		return err
	}

	if d := s.evaluator.EvaluateTask(ctx, project, membership, task, userID, required, access.WithArchivedAccess()); !d.Granted {
		return s.deny(userID, task.ProjectID, d)
	}

	return nil
}

// checkAssignee requires the assignee to have standing on the project.
func (s *Service) checkAssignee(ctx context.Context, project *types.Project, assigneeID string) error {
	if assigneeID == project.OwnerID {
		return nil
	}

	if _, err := s.storage.GetMembership(ctx, project.ID, assigneeID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidAssignee
		}
		return fmt.Errorf("failed to check assignee membership: %w", err)
	}

	return nil
}

func (s *Service) loadTask(ctx context.Context, taskID string) (*types.Task, error) {
	task, err := s.storage.GetTaskByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (s *Service) loadProjectAccess(ctx context.Context, projectID, userID string) (*types.Project, *types.Membership, error) {
	project, err := s.storage.GetProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to get project: %w", err)
	}

	membership, err := s.storage.GetMembership(ctx, projectID, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("failed to get membership: %w", err)
		}
		membership = nil
	}

	return project, membership, nil
}

// invalidate drops the task detail key, the project's cached task lists, and
// every cached user project list, since task counts surface there.
func (s *Service) invalidate(ctx context.Context, projectID, taskID string) {
	s.cache.Delete(ctx, cache.TaskDetailKey(taskID))
	s.cache.DeleteByPrefix(ctx, cache.ProjectTasksPrefix(projectID))
	s.cache.DeleteByPrefix(ctx, cache.UserProjectsPrefix())
}

// publish fans the event out to the project room and, when assigned, the
// assignee's user room.
func (s *Service) publish(ctx context.Context, name string, task *types.Task) {
	s.notifier.Publish(ctx, notifications.NewEvent(name, notifications.ProjectRoom(task.ProjectID), task))
	if task.AssigneeID != nil {
		s.notifier.Publish(ctx, notifications.NewEvent(name, notifications.UserRoom(*task.AssigneeID), task))
	}
}

// deny converts a denial into the error the handler maps to a response.
func (s *Service) deny(userID, projectID string, d access.AccessDecision) error {
	s.logger.Security().AuthzFailure(userID, fmt.Sprintf("project:%s", projectID))

	if d.Role == access.RoleNone {
		return fmt.Errorf("task access: %w", storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", d.Reason, access.ErrForbidden)
}
