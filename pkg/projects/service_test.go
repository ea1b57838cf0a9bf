// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package projects

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

//go:generate mockgen -build_flags=--mod=mod -package projects -destination ./mock_interfaces.go -source=./interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package projects -destination ./mock_logger.go -source=../../internal/logging/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package projects -destination ./mock_monitor.go -source=../../internal/monitoring/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package projects -destination ./mock_tracing.go -source=../../internal/tracing/interfaces.go

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

func TestService_CreateProject(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	mockStorage.EXPECT().CreateProject(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, p *types.Project) (*types.Project, error) {
			if p.OwnerID != "user-1" || p.Name != "Roadmap" {
				t.Errorf("unexpected project passed to storage: %+v", p)
			}
			created := *p
			created.ID = "project-1"
			return &created, nil
		},
	)

	created, err := svc.CreateProject(ctx, "user-1", "Roadmap", "Q3 planning")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created.ID != "project-1" || created.OwnerID != "user-1" {
		t.Errorf("unexpected created project: %+v", created)
	}
}

func TestService_ListProjects_ServesFromCacheOnSecondCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	stored := []*types.ProjectSummary{{Project: types.Project{ID: "project-1", Name: "Roadmap", OwnerID: "user-1"}, TaskCount: 3}}
	mockStorage.EXPECT().ListProjectsByUserID(ctx, "user-1").Return(stored, nil).Times(1)

	first, err := svc.ListProjects(ctx, "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(first) != 1 || first[0].ID != "project-1" {
		t.Fatalf("unexpected projects: %+v", first)
	}

	// Second call must not reach storage.
	second, err := svc.ListProjects(ctx, "user-1")
	if err != nil {
		t.Fatalf("expected no error on cached call, got %v", err)
	}
	if len(second) != 1 || second[0].ID != "project-1" {
		t.Errorf("unexpected cached projects: %+v", second)
	}
}

func TestService_ListProjects_EmptyIsNotNil(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	mockStorage.EXPECT().ListProjectsByUserID(ctx, "user-2").Return(nil, nil)

	projects, err := svc.ListProjects(ctx, "user-2")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if projects == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(projects) != 0 {
		t.Errorf("expected no projects, got %+v", projects)
	}
}

func TestService_GetProject_NonMemberGetsNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	mockStorage.EXPECT().GetProjectByID(ctx, "project-1").Return(project, nil)
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "stranger").Return(nil, storage.ErrNotFound)

	_, err := svc.GetProject(ctx, "project-1", "stranger")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected not found for non-member, got %v", err)
	}
}

func TestService_GetProject_ViewerAllowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	membership := &types.Membership{ProjectID: "project-1", UserID: "viewer-1", Role: "viewer"}
	mockStorage.EXPECT().GetProjectByID(ctx, "project-1").Return(project, nil)
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "viewer-1").Return(membership, nil)

	got, err := svc.GetProject(ctx, "project-1", "viewer-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.ID != "project-1" {
		t.Errorf("unexpected project: %+v", got)
	}
}

func TestService_GetProject_ArchivedHiddenFromMembers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	project := &types.Project{ID: "project-1", OwnerID: "owner-1", Archived: true}
	membership := &types.Membership{ProjectID: "project-1", UserID: "admin-1", Role: "admin"}
	mockStorage.EXPECT().GetProjectByID(ctx, "project-1").Return(project, nil)
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "admin-1").Return(membership, nil)

	if _, err := svc.GetProject(ctx, "project-1", "admin-1"); !errors.Is(err, access.ErrForbidden) {
		t.Errorf("expected forbidden on archived project, got %v", err)
	}

	// The owner keeps read access to unarchive.
	mockStorage.EXPECT().GetProjectByID(ctx, "project-1").Return(project, nil)
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "owner-1").Return(nil, storage.ErrNotFound)

	if _, err := svc.GetProject(ctx, "project-1", "owner-1"); err != nil {
		t.Errorf("expected owner to read archived project, got %v", err)
	}
}

func TestService_UpdateProject_InvalidatesProjectListCaches(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, mr := setupService(t, ctrl)
	ctx := context.Background()

	// Cached lists from two members, both must go when the project changes.
	mr.Set(cache.UserProjectsKey("owner-1"), `[{"id":"project-1"}]`)
	mr.Set(cache.UserProjectsKey("member-1"), `[{"id":"project-1"}]`)

	project := &types.Project{ID: "project-1", OwnerID: "owner-1", Name: "Roadmap"}
	updated := &types.Project{ID: "project-1", OwnerID: "owner-1", Name: "Renamed"}

	mockStorage.EXPECT().GetProjectByID(ctx, "project-1").Return(project, nil)
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "owner-1").Return(nil, storage.ErrNotFound)
	mockStorage.EXPECT().UpdateProject(ctx, gomock.Any(), []string{"name"}).Return(nil)
	mockStorage.EXPECT().GetProjectByID(ctx, "project-1").Return(updated, nil)

	got, err := svc.UpdateProject(ctx, "project-1", "owner-1", &types.Project{Name: "Renamed"}, []string{"name"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("unexpected project: %+v", got)
	}

	if mr.Exists(cache.UserProjectsKey("owner-1")) || mr.Exists(cache.UserProjectsKey("member-1")) {
		t.Error("expected cached project lists to be invalidated")
	}
}

func TestService_UpdateProject_ArchiveNeedsOwner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	membership := &types.Membership{ProjectID: "project-1", UserID: "admin-1", Role: "admin"}
	mockStorage.EXPECT().GetProjectByID(ctx, "project-1").Return(project, nil)
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "admin-1").Return(membership, nil)

	_, err := svc.UpdateProject(ctx, "project-1", "admin-1", &types.Project{Archived: true}, []string{"archived"})
	if !errors.Is(err, access.ErrForbidden) {
		t.Errorf("expected forbidden for admin archiving, got %v", err)
	}
}

func TestService_DeleteProject(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, mr := setupService(t, ctrl)
	ctx := context.Background()

	mr.Set(cache.ProjectTasksKey("project-1"), `[]`)

	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	mockStorage.EXPECT().GetProjectByID(ctx, "project-1").Return(project, nil).Times(2)

	// An admin is not enough.
	membership := &types.Membership{ProjectID: "project-1", UserID: "admin-1", Role: "admin"}
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "admin-1").Return(membership, nil)

	if err := svc.DeleteProject(ctx, "project-1", "admin-1"); !errors.Is(err, access.ErrForbidden) {
		t.Errorf("expected forbidden for admin delete, got %v", err)
	}

	// The owner is.
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "owner-1").Return(nil, storage.ErrNotFound)
	mockStorage.EXPECT().DeleteProject(ctx, "project-1").Return(nil)

	if err := svc.DeleteProject(ctx, "project-1", "owner-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if mr.Exists(cache.ProjectTasksKey("project-1")) {
		t.Error("expected cached task list to be invalidated on delete")
	}
}

func TestService_AddMember(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	user := &types.User{ID: "user-9", Email: "new@example.com", Name: "New Member"}

	mockStorage.EXPECT().GetProjectByID(ctx, "project-1").Return(project, nil)
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "owner-1").Return(nil, storage.ErrNotFound)
	mockStorage.EXPECT().GetUserByEmail(ctx, "new@example.com").Return(user, nil)
	mockStorage.EXPECT().AddMember(ctx, "project-1", "user-9", "member").Return("membership-1", nil)

	member, err := svc.AddMember(ctx, "project-1", "owner-1", "new@example.com", "member")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if member.UserID != "user-9" || member.Role != "member" {
		t.Errorf("unexpected member: %+v", member)
	}
}

func TestService_AddMember_UnknownEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	mockStorage.EXPECT().GetProjectByID(ctx, "project-1").Return(project, nil)
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "owner-1").Return(nil, storage.ErrNotFound)
	mockStorage.EXPECT().GetUserByEmail(ctx, "ghost@example.com").Return(nil, storage.ErrNotFound)

	_, err := svc.AddMember(ctx, "project-1", "owner-1", "ghost@example.com", "member")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected not found for unknown email, got %v", err)
	}
}

func TestService_AddMember_OwnerAlreadyMember(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	owner := &types.User{ID: "owner-1", Email: "owner@example.com"}
	mockStorage.EXPECT().GetProjectByID(ctx, "project-1").Return(project, nil)
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "owner-1").Return(nil, storage.ErrNotFound)
	mockStorage.EXPECT().GetUserByEmail(ctx, "owner@example.com").Return(owner, nil)

	_, err := svc.AddMember(ctx, "project-1", "owner-1", "owner@example.com", "member")
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected duplicate key when adding the owner, got %v", err)
	}
}

func TestService_UpdateMemberRole_AdminCannotDemoteAdmin(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	caller := &types.Membership{ProjectID: "project-1", UserID: "admin-1", Role: "admin"}
	target := &types.Membership{ProjectID: "project-1", UserID: "admin-2", Role: "admin"}

	mockStorage.EXPECT().GetProjectByID(ctx, "project-1").Return(project, nil)
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "admin-1").Return(caller, nil)
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "admin-2").Return(target, nil)

	_, err := svc.UpdateMemberRole(ctx, "project-1", "admin-1", "admin-2", "member")
	if !errors.Is(err, access.ErrForbidden) {
		t.Errorf("expected forbidden when admin demotes admin, got %v", err)
	}
}

func TestService_RemoveMember_SelfRemoval(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	project := &types.Project{ID: "project-1", OwnerID: "owner-1"}
	membership := &types.Membership{ProjectID: "project-1", UserID: "viewer-1", Role: "viewer"}

	mockStorage.EXPECT().GetProjectByID(ctx, "project-1").Return(project, nil)
	mockStorage.EXPECT().GetMembership(ctx, "project-1", "viewer-1").Return(membership, nil)
	mockStorage.EXPECT().RemoveMember(ctx, "project-1", "viewer-1").Return(nil)

	if err := svc.RemoveMember(ctx, "project-1", "viewer-1", "viewer-1"); err != nil {
		t.Fatalf("expected self-removal to succeed, got %v", err)
	}
}
