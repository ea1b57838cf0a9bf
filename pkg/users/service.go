// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package users

import (
	"context"
	"fmt"

	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring"
	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/tracing"
	"github.com/canonical/task-service/internal/types"
	"github.com/canonical/task-service/pkg/notifications"
)

var _ ServiceInterface = (*Service)(nil)

type Service struct {
	storage  StorageInterface
	notifier notifications.NotifierInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func NewService(
	s StorageInterface,
	notifier notifications.NotifierInterface,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) *Service {
	return &Service{
		storage:  s,
		notifier: notifier,
		tracer:   tracer,
		monitor:  monitor,
		logger:   logger,
	}
}

func (s *Service) GetMe(ctx context.Context, userID string) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "users.Service.GetMe")
	defer span.End()

	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// UpdateMe applies the fields named in paths to the caller's own profile.
func (s *Service) UpdateMe(ctx context.Context, userID string, user *types.User, paths []string) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "users.Service.UpdateMe")
	defer span.End()

	user.ID = userID
	if err := s.storage.UpdateUser(ctx, user, paths); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	updated, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get updated user: %w", err)
	}

	s.notifier.Publish(ctx, notifications.NewEvent(notifications.EventUserUpdated, notifications.UserRoom(userID), updated))

	return updated, nil
}

// GetUser returns another user's profile, visible only when the two share a
// project. Unknown and invisible users are indistinguishable.
func (s *Service) GetUser(ctx context.Context, id, callerID string) (*types.User, error) {
	ctx, span := s.tracer.Start(ctx, "users.Service.GetUser")
	defer span.End()

	if id == callerID {
		return s.GetMe(ctx, callerID)
	}

	shared, err := s.storage.UsersShareProject(ctx, callerID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check shared projects: %w", err)
	}
	if !shared {
		s.logger.Security().AuthzFailure(callerID, fmt.Sprintf("user:%s", id))
		return nil, fmt.Errorf("user visibility: %w", storage.ErrNotFound)
	}

	user, err := s.storage.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}
