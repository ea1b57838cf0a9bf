// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package access

import (
	"context"

	"github.com/canonical/task-service/internal/types"
)

type EvaluatorInterface interface {
	EvaluateProject(ctx context.Context, project *types.Project, membership *types.Membership, userID string, required Role, opts ...Option) AccessDecision
	EvaluateTask(ctx context.Context, project *types.Project, membership *types.Membership, task *types.Task, userID string, required Role, opts ...Option) AccessDecision
}
