// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package comments

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

//go:generate mockgen -build_flags=--mod=mod -package comments -destination ./mock_interfaces.go -source=./interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package comments -destination ./mock_logger.go -source=../../internal/logging/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package comments -destination ./mock_monitor.go -source=../../internal/monitoring/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package comments -destination ./mock_tracing.go -source=../../internal/tracing/interfaces.go

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

func expectTaskAccess(mockStorage *MockStorageInterface, task *types.Task, project *types.Project, userID string, membership *types.Membership) {
	mockStorage.EXPECT().GetTaskByID(gomock.Any(), task.ID).Return(task, nil)
	mockStorage.EXPECT().GetProjectByID(gomock.Any(), project.ID).Return(project, nil)
	if membership != nil {
		mockStorage.EXPECT().GetMembership(gomock.Any(), project.ID, userID).Return(membership, nil)
	} else {
		mockStorage.EXPECT().GetMembership(gomock.Any(), project.ID, userID).Return(nil, storage.ErrNotFound)
	}
}

func TestService_CreateComment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, mr := setupService(t, ctrl)
	ctx := context.Background()

	mr.Set(cache.TaskDetailKey("task-1"), `{"id":"task-1"}`)

	task := &types.Task{ID: "task-1", ProjectID: "project-1", CreatorID: "member-1"}
	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	membership := &types.Membership{ProjectID: "project-1", UserID: "viewer-1", Role: "viewer"}
	expectTaskAccess(mockStorage, task, project, "viewer-1", membership)

	mockStorage.EXPECT().CreateComment(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, c *types.Comment) (*types.Comment, error) {
			if c.TaskID != "task-1" || c.AuthorID != "viewer-1" || c.Body != "Looks good" {
				t.Errorf("unexpected comment passed to storage: %+v", c)
			}
			created := *c
			created.ID = "comment-1"
			return &created, nil
		},
	)

	comment, err := svc.CreateComment(ctx, "task-1", "viewer-1", "Looks good")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if comment.ID != "comment-1" {
		t.Errorf("unexpected comment: %+v", comment)
	}

	if mr.Exists(cache.TaskDetailKey("task-1")) {
		t.Error("expected cached task detail to be invalidated")
	}
}

func TestService_CreateComment_StrangerGetsNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	task := &types.Task{ID: "task-1", ProjectID: "project-1", CreatorID: "member-1"}
	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	expectTaskAccess(mockStorage, task, project, "stranger", nil)

	_, err := svc.CreateComment(ctx, "task-1", "stranger", "Hello")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected not found for stranger, got %v", err)
	}
}

func TestService_ListComments(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	task := &types.Task{ID: "task-1", ProjectID: "project-1", CreatorID: "member-1"}
	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	membership := &types.Membership{ProjectID: "project-1", UserID: "viewer-1", Role: "viewer"}
	expectTaskAccess(mockStorage, task, project, "viewer-1", membership)

	filter := storage.CommentFilter{Page: 1, Size: 10}
	mockStorage.EXPECT().ListCommentsByTaskID(ctx, "task-1", filter).Return(nil, nil)

	comments, err := svc.ListComments(ctx, "task-1", "viewer-1", filter)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if comments == nil {
		t.Fatal("expected empty slice, got nil")
	}
}

func TestService_UpdateComment_AuthorOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	comment := &types.Comment{ID: "comment-1", TaskID: "task-1", AuthorID: "author-1", Body: "v1"}
	task := &types.Task{ID: "task-1", ProjectID: "project-1", CreatorID: "author-1"}
	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}

	// The owner can see the comment but may not edit someone else's words.
	mockStorage.EXPECT().GetCommentByID(ctx, "comment-1").Return(comment, nil)
	expectTaskAccess(mockStorage, task, project, "owner-1", nil)

	_, err := svc.UpdateComment(ctx, "comment-1", "owner-1", "v2")
	if !errors.Is(err, access.ErrForbidden) {
		t.Errorf("expected forbidden for non-author, got %v", err)
	}

	// The author may.
	membership := &types.Membership{ProjectID: "project-1", UserID: "author-1", Role: "member"}
	mockStorage.EXPECT().GetCommentByID(ctx, "comment-1").Return(comment, nil)
	expectTaskAccess(mockStorage, task, project, "author-1", membership)
	mockStorage.EXPECT().UpdateComment(ctx, "comment-1", "v2").
		Return(&types.Comment{ID: "comment-1", TaskID: "task-1", AuthorID: "author-1", Body: "v2"}, nil)

	updated, err := svc.UpdateComment(ctx, "comment-1", "author-1", "v2")
	if err != nil {
		t.Fatalf("expected author edit to succeed, got %v", err)
	}
	if updated.Body != "v2" {
		t.Errorf("unexpected comment: %+v", updated)
	}
}

func TestService_DeleteComment_AdminMayModerate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	comment := &types.Comment{ID: "comment-1", TaskID: "task-1", AuthorID: "author-1"}
	task := &types.Task{ID: "task-1", ProjectID: "project-1", CreatorID: "author-1"}
	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}

	// A plain member may not delete someone else's comment.
	membership := &types.Membership{ProjectID: "project-1", UserID: "member-1", Role: "member"}
	mockStorage.EXPECT().GetCommentByID(ctx, "comment-1").Return(comment, nil)
	expectTaskAccess(mockStorage, task, project, "member-1", membership)

	if err := svc.DeleteComment(ctx, "comment-1", "member-1"); !errors.Is(err, access.ErrForbidden) {
		t.Errorf("expected forbidden for member, got %v", err)
	}

	// An admin may.
	adminMembership := &types.Membership{ProjectID: "project-1", UserID: "admin-1", Role: "admin"}
	mockStorage.EXPECT().GetCommentByID(ctx, "comment-1").Return(comment, nil)
	expectTaskAccess(mockStorage, task, project, "admin-1", adminMembership)
	mockStorage.EXPECT().DeleteComment(ctx, "comment-1").Return(nil)

	if err := svc.DeleteComment(ctx, "comment-1", "admin-1"); err != nil {
		t.Fatalf("expected admin delete to succeed, got %v", err)
	}
}

func TestService_DeleteComment_Author(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	comment := &types.Comment{ID: "comment-1", TaskID: "task-1", AuthorID: "author-1"}
	task := &types.Task{ID: "task-1", ProjectID: "project-1", CreatorID: "author-1"}
	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	membership := &types.Membership{ProjectID: "project-1", UserID: "author-1", Role: "viewer"}

	mockStorage.EXPECT().GetCommentByID(ctx, "comment-1").Return(comment, nil)
	expectTaskAccess(mockStorage, task, project, "author-1", membership)
	mockStorage.EXPECT().DeleteComment(ctx, "comment-1").Return(nil)

	if err := svc.DeleteComment(ctx, "comment-1", "author-1"); err != nil {
		t.Fatalf("expected author delete to succeed, got %v", err)
	}
}
