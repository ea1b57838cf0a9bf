// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package comments

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

// CreateComment adds a comment to a task the caller can see.
func (s *Service) CreateComment(ctx context.Context, taskID, userID, body string) (*types.Comment, error) {
	ctx, span := s.tracer.Start(ctx, "comments.Service.CreateComment")
	defer span.End()

	task, err := s.visibleTask(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	created, err := s.storage.CreateComment(ctx, &types.Comment{
		TaskID:   taskID,
		AuthorID: userID,
		Body:     body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	s.cache.Delete(ctx, cache.TaskDetailKey(taskID))
	s.notifier.Publish(ctx, notifications.NewEvent(notifications.EventCommentCreated, notifications.ProjectRoom(task.ProjectID), created))

	return created, nil
}

// ListComments pages through a task's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, taskID, userID string, filter storage.CommentFilter) ([]*types.Comment, error) {
	ctx, span := s.tracer.Start(ctx, "comments.Service.ListComments")
	defer span.End()

	if _, err := s.visibleTask(ctx, taskID, userID, access.WithArchivedAccess()); err != nil {
		return nil, err
	}

	comments, err := s.storage.ListCommentsByTaskID(ctx, taskID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	if comments == nil {
		comments = []*types.Comment{}
	}

	return comments, nil
}

// UpdateComment edits the body, author only.
func (s *Service) UpdateComment(ctx context.Context, commentID, userID, body string) (*types.Comment, error) {
	ctx, span := s.tracer.Start(ctx, "comments.Service.UpdateComment")
	defer span.End()

	comment, err := s.loadComment(ctx, commentID)
	if err != nil {
		return nil, err
	}

	task, err := s.visibleTask(ctx, comment.TaskID, userID)
	if err != nil {
		return nil, err
	}

	if comment.AuthorID != userID {
		s.logger.Security().AuthzFailure(userID, fmt.Sprintf("comment:%s", commentID))
		return nil, fmt.Errorf("only the author may edit a comment: %w", access.ErrForbidden)
	}

	updated, err := s.storage.UpdateComment(ctx, commentID, body)
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	s.cache.Delete(ctx, cache.TaskDetailKey(comment.TaskID))
	s.notifier.Publish(ctx, notifications.NewEvent(notifications.EventCommentUpdated, notifications.ProjectRoom(task.ProjectID), updated))

	return updated, nil
}

// DeleteComment removes a comment, author or project admin and up.
func (s *Service) DeleteComment(ctx context.Context, commentID, userID string) error {
	ctx, span := s.tracer.Start(ctx, "comments.Service.DeleteComment")
	defer span.End()

	comment, err := s.loadComment(ctx, commentID)
	if err != nil {
		return err
	}

	task, project, membership, err := s.loadTaskAccess(ctx, comment.TaskID, userID)
	if err != nil {
		return err
	}

	if d := s.evaluator.EvaluateTask(ctx, project, membership, task, userID, access.RoleViewer); !d.Granted {
		return s.deny(userID, comment.TaskID, d)
	}

	if comment.AuthorID != userID {
		if d := s.evaluator.EvaluateTask(ctx, project, membership, task, userID, access.RoleAdmin); !d.Granted {
			return s.deny(userID, comment.TaskID, d)
		}
	}

	if err := s.storage.DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	s.cache.Delete(ctx, cache.TaskDetailKey(comment.TaskID))
	payload := map[string]string{"id": commentID, "task_id": comment.TaskID}
	s.notifier.Publish(ctx, notifications.NewEvent(notifications.EventCommentDeleted, notifications.ProjectRoom(task.ProjectID), payload))

	return nil
}

// visibleTask loads the task and requires the caller to see it: project
// membership or the creator/assignee fallback.
func (s *Service) visibleTask(ctx context.Context, taskID, userID string, opts ...access.Option) (*types.Task, error) {
	task, project, membership, err := s.loadTaskAccess(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	if d := s.evaluator.EvaluateTask(ctx, project, membership, task, userID, access.RoleViewer, opts...); !d.Granted {
		return nil, s.deny(userID, taskID, d)
	}

	return task, nil
}

func (s *Service) loadTaskAccess(ctx context.Context, taskID, userID string) (*types.Task, *types.Project, *types.Membership, error) {
	task, err := s.storage.GetTaskByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, nil, err
		}
		return nil, nil, nil, fmt.Errorf("failed to get task: %w", err)
	}

	project, err := s.storage.GetProjectByID(ctx, task.ProjectID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get project: %w", err)
	}

	membership, err := s.storage.GetMembership(ctx, task.ProjectID, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, nil, nil, fmt.Errorf("failed to get membership: %w", err)
		}
		membership = nil
	}

	return task, project, membership, nil
}

func (s *Service) loadComment(ctx context.Context, commentID string) (*types.Comment, error) {
	comment, err := s.storage.GetCommentByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return comment, nil
}

// deny converts a denial into the error the handler maps to a response.
func (s *Service) deny(userID, taskID string, d access.AccessDecision) error {
	s.logger.Security().AuthzFailure(userID, fmt.Sprintf("task:%s", taskID))

	if d.Role == access.RoleNone {
		return fmt.Errorf("comment access: %w", storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", d.Reason, access.ErrForbidden)
}
