// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/mock/gomock"

	"github.com/canonical/task-service/internal/access"
	"github.com/canonical/task-service/internal/cache"
	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/types"
	"github.com/canonical/task-service/pkg/notifications"
)

//go:generate mockgen -build_flags=--mod=mod -package tasks -destination ./mock_interfaces.go -source=./interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package tasks -destination ./mock_logger.go -source=../../internal/logging/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package tasks -destination ./mock_monitor.go -source=../../internal/monitoring/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package tasks -destination ./mock_tracing.go -source=../../internal/tracing/interfaces.go

func strPtr(s string) *string {
	return &s
}

func setupService(t *testing.T, ctrl *gomock.Controller) (*Service, *MockStorageInterface, *miniredis.Miniredis) {
	t.Helper()

	mockStorage := NewMockStorageInterface(ctrl)
	mockTracer := NewMockTracingInterface(ctrl)
	mockMonitor := NewMockMonitorInterface(ctrl)
	logger := logging.NewNoopLogger()

	mockTracer.EXPECT().Start(gomock.Any(), gomock.Any()).
		Return(context.Background(), trace.SpanFromContext(context.Background())).AnyTimes()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewCache(client, mockTracer, mockMonitor, logger)

	evaluator := access.NewEvaluator(mockTracer, mockMonitor, logger)

	svc := NewService(mockStorage, c, evaluator, notifications.NewNoopNotifier(), mockTracer, mockMonitor, logger)

	return svc, mockStorage, mr
}

func expectProjectAccess(mockStorage *MockStorageInterface, project *types.Project, userID string, membership *types.Membership) {
	mockStorage.EXPECT().GetProjectByID(gomock.Any(), project.ID).Return(project, nil)
	if membership != nil {
		mockStorage.EXPECT().GetMembership(gomock.Any(), project.ID, userID).Return(membership, nil)
	} else {
		mockStorage.EXPECT().GetMembership(gomock.Any(), project.ID, userID).Return(nil, storage.ErrNotFound)
	}
}

func TestService_CreateTask_AppliesDefaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	membership := &types.Membership{ProjectID: "project-1", UserID: "member-1", Role: "member"}
	expectProjectAccess(mockStorage, project, "member-1", membership)

	mockStorage.EXPECT().CreateTask(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, task *types.Task) (*types.Task, error) {
			if task.Status != types.TaskStatusTodo || task.Priority != types.TaskPriorityMedium {
				t.Errorf("expected defaults, got status=%q priority=%q", task.Status, task.Priority)
			}
			if task.CreatorID != "member-1" || task.ProjectID != "project-1" {
				t.Errorf("unexpected task attribution: %+v", task)
			}
			created := *task
			created.ID = "task-1"
			return &created, nil
		},
	)

	created, err := svc.CreateTask(ctx, "project-1", "member-1", &types.Task{Title: "Ship it"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created.ID != "task-1" {
		t.Errorf("unexpected task: %+v", created)
	}
}

func TestService_CreateTask_ViewerDenied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	membership := &types.Membership{ProjectID: "project-1", UserID: "viewer-1", Role: "viewer"}
	expectProjectAccess(mockStorage, project, "viewer-1", membership)

	_, err := svc.CreateTask(ctx, "project-1", "viewer-1", &types.Task{Title: "Nope"})
	if !errors.Is(err, access.ErrForbidden) {
		t.Errorf("expected forbidden for viewer, got %v", err)
	}
}

func TestService_CreateTask_AssigneeMustBeMember(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	expectProjectAccess(mockStorage, project, "owner-1", nil)
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "outsider").Return(nil, storage.ErrNotFound)

	task := &types.Task{Title: "Ship it", AssigneeID: strPtr("outsider")}
	_, err := svc.CreateTask(ctx, "project-1", "owner-1", task)
	if !errors.Is(err, ErrInvalidAssignee) {
		t.Errorf("expected invalid assignee, got %v", err)
	}
}

func TestService_ListTasks_CachesUnfilteredOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, mr := setupService(t, ctrl)
	ctx := context.Background()

	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	stored := []*types.Task{{ID: "task-1", ProjectID: "project-1", Title: "Ship it"}}

	// Unfiltered listing populates the cache, the second call skips storage.
	expectProjectAccess(mockStorage, project, "owner-1", nil)
	mockStorage.EXPECT().ListTasksByProjectID(ctx, "project-1", storage.TaskFilter{}).Return(stored, nil).Times(1)

	if _, err := svc.ListTasks(ctx, "project-1", "owner-1", storage.TaskFilter{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !mr.Exists(cache.ProjectTasksKey("project-1")) {
		t.Fatal("expected unfiltered listing to be cached")
	}

	expectProjectAccess(mockStorage, project, "owner-1", nil)
	tasks, err := svc.ListTasks(ctx, "project-1", "owner-1", storage.TaskFilter{})
	if err != nil {
		t.Fatalf("expected no error on cached call, got %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "task-1" {
		t.Errorf("unexpected cached tasks: %+v", tasks)
	}

	// A filtered listing bypasses the cache even when an entry exists.
	filter := storage.TaskFilter{Status: types.TaskStatusDone}
	expectProjectAccess(mockStorage, project, "owner-1", nil)
	mockStorage.EXPECT().ListTasksByProjectID(ctx, "project-1", filter).Return(nil, nil)

	filtered, err := svc.ListTasks(ctx, "project-1", "owner-1", filter)
	if err != nil {
		t.Fatalf("expected no error on filtered call, got %v", err)
	}
	if len(filtered) != 0 {
		t.Errorf("unexpected filtered tasks: %+v", filtered)
	}
}

func TestService_GetTask_CreatorFallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	task := &types.Task{ID: "task-1", ProjectID: "project-1", CreatorID: "former-member"}
	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}

	mockStorage.EXPECT().GetTaskByID(ctx, "task-1").Return(task, nil)
	expectProjectAccess(mockStorage, project, "former-member", nil)

	got, err := svc.GetTask(ctx, "task-1", "former-member")
	if err != nil {
		t.Fatalf("expected creator fallback to grant access, got %v", err)
	}
	if got.ID != "task-1" {
		t.Errorf("unexpected task: %+v", got)
	}
}

func TestService_GetTask_StrangerGetsNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	task := &types.Task{ID: "task-1", ProjectID: "project-1", CreatorID: "member-1"}
	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}

	mockStorage.EXPECT().GetTaskByID(ctx, "task-1").Return(task, nil)
	expectProjectAccess(mockStorage, project, "stranger", nil)

	_, err := svc.GetTask(ctx, "task-1", "stranger")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected not found for stranger, got %v", err)
	}
}

func TestService_UpdateTask_InvalidatesCaches(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, mr := setupService(t, ctrl)
	ctx := context.Background()

	mr.Set(cache.TaskDetailKey("task-1"), `{"id":"task-1"}`)
	mr.Set(cache.ProjectTasksKey("project-1"), `[]`)
	mr.Set(cache.UserProjectsKey("member-1"), `[]`)

	task := &types.Task{ID: "task-1", ProjectID: "project-1", CreatorID: "member-1", Status: types.TaskStatusTodo}
	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	membership := &types.Membership{ProjectID: "project-1", UserID: "member-1", Role: "member"}
	updated := &types.Task{ID: "task-1", ProjectID: "project-1", CreatorID: "member-1", Status: types.TaskStatusDone}

	mockStorage.EXPECT().GetTaskByID(ctx, "task-1").Return(task, nil)
	expectProjectAccess(mockStorage, project, "member-1", membership)
	mockStorage.EXPECT().UpdateTask(ctx, gomock.Any(), []string{"status"}).Return(nil)
	mockStorage.EXPECT().GetTaskByID(ctx, "task-1").Return(updated, nil)

	got, err := svc.UpdateTask(ctx, "task-1", "member-1", &types.Task{Status: types.TaskStatusDone}, []string{"status"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Status != types.TaskStatusDone {
		t.Errorf("unexpected task: %+v", got)
	}

	for _, key := range []string{
		cache.TaskDetailKey("task-1"),
		cache.ProjectTasksKey("project-1"),
		cache.UserProjectsKey("member-1"),
	} {
		if mr.Exists(key) {
			t.Errorf("expected %q to be invalidated", key)
		}
	}
}

func TestService_UpdateTask_AssigneeFallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	// The assignee holds no membership but may update the task.
	task := &types.Task{ID: "task-1", ProjectID: "project-1", CreatorID: "member-1", AssigneeID: strPtr("assignee-1")}
	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	updated := &types.Task{ID: "task-1", ProjectID: "project-1", CreatorID: "member-1", AssigneeID: strPtr("assignee-1"), Status: types.TaskStatusInProgress}

	mockStorage.EXPECT().GetTaskByID(ctx, "task-1").Return(task, nil)
	expectProjectAccess(mockStorage, project, "assignee-1", nil)
	mockStorage.EXPECT().UpdateTask(ctx, gomock.Any(), []string{"status"}).Return(nil)
	mockStorage.EXPECT().GetTaskByID(ctx, "task-1").Return(updated, nil)

	if _, err := svc.UpdateTask(ctx, "task-1", "assignee-1", &types.Task{Status: types.TaskStatusInProgress}, []string{"status"}); err != nil {
		t.Fatalf("expected assignee to update task, got %v", err)
	}
}

func TestService_UpdateTask_ViewerDenied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	task := &types.Task{ID: "task-1", ProjectID: "project-1", CreatorID: "member-1"}
	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	membership := &types.Membership{ProjectID: "project-1", UserID: "viewer-1", Role: "viewer"}

	mockStorage.EXPECT().GetTaskByID(ctx, "task-1").Return(task, nil)
	expectProjectAccess(mockStorage, project, "viewer-1", membership)

	_, err := svc.UpdateTask(ctx, "task-1", "viewer-1", &types.Task{Status: types.TaskStatusDone}, []string{"status"})
	if !errors.Is(err, access.ErrForbidden) {
		t.Errorf("expected forbidden for viewer, got %v", err)
	}
}

func TestService_DeleteTask(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	task := &types.Task{ID: "task-1", ProjectID: "project-1", CreatorID: "creator-1"}
	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}

	// A member who is not the creator may not delete.
	membership := &types.Membership{ProjectID: "project-1", UserID: "member-1", Role: "member"}
	mockStorage.EXPECT().GetTaskByID(ctx, "task-1").Return(task, nil)
	expectProjectAccess(mockStorage, project, "member-1", membership)

	if err := svc.DeleteTask(ctx, "task-1", "member-1"); !errors.Is(err, access.ErrForbidden) {
		t.Errorf("expected forbidden for non-creator member, got %v", err)
	}

	// The creator may, even at member rank.
	creatorMembership := &types.Membership{ProjectID: "project-1", UserID: "creator-1", Role: "member"}
	mockStorage.EXPECT().GetTaskByID(ctx, "task-1").Return(task, nil)
	expectProjectAccess(mockStorage, project, "creator-1", creatorMembership)
	mockStorage.EXPECT().DeleteTask(ctx, "task-1").Return(nil)

	if err := svc.DeleteTask(ctx, "task-1", "creator-1"); err != nil {
		t.Fatalf("expected creator delete to succeed, got %v", err)
	}
}
