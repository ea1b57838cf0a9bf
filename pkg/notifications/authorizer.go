// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package notifications

import (
	"context"
	"errors"
	"strings"

	"github.com/canonical/task-service/internal/access"
	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/tracing"
)

var _ RoomAuthorizerInterface = (*RoomAuthorizer)(nil)

// RoomAuthorizer gates room subscriptions: a user may always join their own
// user room, and project rooms require viewer access to the project.
type RoomAuthorizer struct {
	storage   StorageInterface
	evaluator access.EvaluatorInterface

	tracer tracing.TracingInterface
	logger logging.LoggerInterface
}

func (a *RoomAuthorizer) Authorize(ctx context.Context, userID, room string) bool {
	ctx, span := a.tracer.Start(ctx, "notifications.RoomAuthorizer.Authorize")
	defer span.End()

	switch {
	case room == UserRoom(userID):
		return true
	case strings.HasPrefix(room, "project:"):
		return a.authorizeProjectRoom(ctx, userID, strings.TrimPrefix(room, "project:"))
	default:
		return false
	}
}

func (a *RoomAuthorizer) authorizeProjectRoom(ctx context.Context, userID, projectID string) bool {
	project, err := a.storage.GetProjectByID(ctx, projectID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			a.logger.Errorf("failed to load project %q for room authorization: %v", projectID, err)
		}
		return false
	}

	membership, err := a.storage.GetMembership(ctx, projectID, userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		a.logger.Errorf("failed to load membership for room authorization: %v", err)
		return false
	}

	decision := a.evaluator.EvaluateProject(ctx, project, membership, userID, access.RoleViewer, access.WithArchivedAccess())
	return decision.Granted
}

func NewRoomAuthorizer(s StorageInterface, evaluator access.EvaluatorInterface, tracer tracing.TracingInterface, logger logging.LoggerInterface) *RoomAuthorizer {
	a := new(RoomAuthorizer)

	a.storage = s
	a.evaluator = evaluator

	a.tracer = tracer
	a.logger = logger

	return a
}
