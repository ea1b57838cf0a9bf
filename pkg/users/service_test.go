// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package users

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/mock/gomock"

	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/types"
	"github.com/canonical/task-service/pkg/notifications"
)

//go:generate mockgen -build_flags=--mod=mod -package users -destination ./mock_interfaces.go -source=./interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package users -destination ./mock_logger.go -source=../../internal/logging/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package users -destination ./mock_monitor.go -source=../../internal/monitoring/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package users -destination ./mock_tracing.go -source=../../internal/tracing/interfaces.go

func setupService(t *testing.T, ctrl *gomock.Controller) (*Service, *MockStorageInterface) {
	t.Helper()

	mockStorage := NewMockStorageInterface(ctrl)
	mockTracer := NewMockTracingInterface(ctrl)
	mockMonitor := NewMockMonitorInterface(ctrl)
	logger := logging.NewNoopLogger()

	mockTracer.EXPECT().Start(gomock.Any(), gomock.Any()).
		Return(context.Background(), trace.SpanFromContext(context.Background())).AnyTimes()

	svc := NewService(mockStorage, notifications.NewNoopNotifier(), mockTracer, mockMonitor, logger)

	return svc, mockStorage
}

func TestService_GetMe(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage := setupService(t, ctrl)
	ctx := context.Background()

	mockStorage.EXPECT().GetUserByID(ctx, "user-1").
		Return(&types.User{ID: "user-1", Email: "me@example.com"}, nil)

	user, err := svc.GetMe(ctx, "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestService_UpdateMe(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage := setupService(t, ctrl)
	ctx := context.Background()

	mockStorage.EXPECT().UpdateUser(ctx, gomock.Any(), []string{"name"}).DoAndReturn(
		func(_ context.Context, u *types.User, _ []string) error {
			if u.ID != "user-1" || u.Name != "New Name" {
				t.Errorf("unexpected update payload: %+v", u)
			}
			return nil
		},
	)
	mockStorage.EXPECT().GetUserByID(ctx, "user-1").
		Return(&types.User{ID: "user-1", Name: "New Name"}, nil)

	user, err := svc.UpdateMe(ctx, "user-1", &types.User{Name: "New Name"}, []string{"name"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Name != "New Name" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestService_UpdateMe_DuplicateEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage := setupService(t, ctrl)
	ctx := context.Background()

	mockStorage.EXPECT().UpdateUser(ctx, gomock.Any(), []string{"email"}).
		Return(storage.ErrDuplicateKey)

	_, err := svc.UpdateMe(ctx, "user-1", &types.User{Email: "taken@example.com"}, []string{"email"})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected duplicate key error, got %v", err)
	}
}

func TestService_GetUser_SharedProject(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage := setupService(t, ctrl)
	ctx := context.Background()

	mockStorage.EXPECT().UsersShareProject(ctx, "caller-1", "user-2").Return(true, nil)
	mockStorage.EXPECT().GetUserByID(ctx, "user-2").
		Return(&types.User{ID: "user-2", Name: "Teammate"}, nil)

	user, err := svc.GetUser(ctx, "user-2", "caller-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != "user-2" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestService_GetUser_NoSharedProject(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage := setupService(t, ctrl)
	ctx := context.Background()

	mockStorage.EXPECT().UsersShareProject(ctx, "caller-1", "user-2").Return(false, nil)

	_, err := svc.GetUser(ctx, "user-2", "caller-1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected not found for unrelated user, got %v", err)
	}
}

func TestService_GetUser_Self(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage := setupService(t, ctrl)
	ctx := context.Background()

	mockStorage.EXPECT().GetUserByID(ctx, "caller-1").
		Return(&types.User{ID: "caller-1"}, nil)

	user, err := svc.GetUser(ctx, "caller-1", "caller-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != "caller-1" {
		t.Errorf("unexpected user: %+v", user)
	}
}
