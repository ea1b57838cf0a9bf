// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring"
	"github.com/canonical/task-service/internal/tracing"
	"github.com/canonical/task-service/internal/types"
)

// ErrForbidden is the sentinel services wrap a denied AccessDecision in, so
// handlers can map it to a 403 without importing every service package.
var ErrForbidden = errors.New("forbidden")

// AccessDecision is the outcome of an evaluation. Denials are values, not
// errors; callers map !Granted to a 403 (or a 404 when the target's existence
// must not leak).
type AccessDecision struct {
	Granted bool
	// Role is the caller's effective role on the project, RoleNone when the
	// caller has no standing.
	Role   Role
	Reason string
}

type Option func(*options)

type options struct {
	allowArchived bool
}

// WithArchivedAccess lets the project owner through on an archived project.
// Handlers pass it on the read path and on the unarchive update itself.
func WithArchivedAccess() Option {
	return func(o *options) {
		o.allowArchived = true
	}
}

var _ EvaluatorInterface = (*Evaluator)(nil)

type Evaluator struct {
	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

// EvaluateProject determines the caller's effective role on the project and
// checks it against the required minimum. membership may be nil when no row
// exists for (user, project).
func (e *Evaluator) EvaluateProject(ctx context.Context, project *types.Project, membership *types.Membership, userID string, required Role, opts ...Option) AccessDecision {
	_, span := e.tracer.Start(ctx, "access.Evaluator.EvaluateProject")
	defer span.End()

	return e.evaluate(project, membership, nil, userID, required, opts...)
}

// EvaluateTask is EvaluateProject plus the task fallback: the task's creator
// and assignee get implicit viewer standing even without a membership row.
func (e *Evaluator) EvaluateTask(ctx context.Context, project *types.Project, membership *types.Membership, task *types.Task, userID string, required Role, opts ...Option) AccessDecision {
	_, span := e.tracer.Start(ctx, "access.Evaluator.EvaluateTask")
	defer span.End()

	return e.evaluate(project, membership, task, userID, required, opts...)
}

func (e *Evaluator) evaluate(project *types.Project, membership *types.Membership, task *types.Task, userID string, required Role, opts ...Option) AccessDecision {
	o := new(options)
	for _, opt := range opts {
		opt(o)
	}

	effective := RoleNone
	switch {
	case project.OwnerID == userID:
		effective = RoleOwner
	case membership != nil:
		effective = Role(membership.Role)
	case task != nil && (task.CreatorID == userID || (task.AssigneeID != nil && *task.AssigneeID == userID)):
		effective = RoleViewer
	}

	if effective == RoleNone {
		return AccessDecision{Granted: false, Role: RoleNone, Reason: "no project access"}
	}

	if project.Archived && !(o.allowArchived && effective == RoleOwner) {
		return AccessDecision{Granted: false, Role: effective, Reason: "project is archived"}
	}

	if required != RoleNone && Rank(effective) < Rank(required) {
		return AccessDecision{
			Granted: false,
			Role:    effective,
			Reason:  fmt.Sprintf("insufficient role: have %s, need %s", effective, required),
		}
	}

	return AccessDecision{Granted: true, Role: effective}
}

func NewEvaluator(tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *Evaluator {
	e := new(Evaluator)

	e.tracer = tracer
	e.monitor = monitor
	e.logger = logger

	return e
}
