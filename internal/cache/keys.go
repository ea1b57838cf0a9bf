// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cache

import (
	"fmt"
	"time"
)

// Keys follow the {entityType}:{subtype}:{id} scheme so whole collections can
// be dropped by prefix.
const (
	userProjectsPrefix = "user:projects:"
	projectTasksPrefix = "project:tasks:"
	taskDetailsPrefix  = "task:details:"
)

// TTL policy per entry kind.
const (
	UserProjectsTTL = 15 * time.Minute
	ProjectTasksTTL = 15 * time.Minute
	TaskDetailTTL   = 5 * time.Minute
)

func UserProjectsKey(userID string) string {
	return fmt.Sprintf("%s%s", userProjectsPrefix, userID)
}

func ProjectTasksKey(projectID string) string {
	return fmt.Sprintf("%s%s", projectTasksPrefix, projectID)
}

func TaskDetailKey(taskID string) string {
	return fmt.Sprintf("%s%s", taskDetailsPrefix, taskID)
}

// UserProjectsPrefix covers every user's project list, the broad sweep used
// when membership or task counts may have changed for an unknown set of users.
func UserProjectsPrefix() string {
	return userProjectsPrefix
}

// ProjectTasksPrefix covers every cached task-list variant of one project.
func ProjectTasksPrefix(projectID string) string {
	return fmt.Sprintf("%s%s", projectTasksPrefix, projectID)
}
