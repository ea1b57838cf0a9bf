// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package tasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chi "github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/mock/gomock"

	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/types"
	"github.com/canonical/task-service/internal/validation"
	"github.com/canonical/task-service/pkg/authentication"
)

func setupAPI(t *testing.T, ctrl *gomock.Controller, userID string) (*MockServiceInterface, http.Handler) {
	t.Helper()

	mockService := NewMockServiceInterface(ctrl)
	mockTracer := NewMockTracingInterface(ctrl)
	mockMonitor := NewMockMonitorInterface(ctrl)
	logger := logging.NewNoopLogger()

	mockTracer.EXPECT().Start(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
			return ctx, trace.SpanFromContext(ctx)
		}).AnyTimes()

	api := NewAPI(mockService, validation.NewValidator(logger), mockTracer, mockMonitor, logger)

	mux := chi.NewMux()
	if userID != "" {
		mux.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(authentication.WithUserID(r.Context(), userID)))
			})
		})
	}
	api.RegisterEndpoints(mux)

	return mockService, mux
}

func TestHandleCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")

	mockService.EXPECT().CreateTask(gomock.Any(), "project-1", "user-1", gomock.Any()).DoAndReturn(
		func(_ context.Context, _, _ string, task *types.Task) (*types.Task, error) {
			if task.Title != "Ship it" || task.Priority != types.TaskPriorityHigh {
				t.Errorf("unexpected task payload: %+v", task)
			}
			created := *task
			created.ID = "task-1"
			return &created, nil
		},
	)

	body := `{"title":"Ship it","priority":"high"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v0/projects/project-1/tasks", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestHandleCreate_InvalidStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, mux := setupAPI(t, ctrl, "user-1")

	body := `{"title":"Ship it","status":"blocked"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v0/projects/project-1/tasks", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleCreate_InvalidAssignee(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")
	mockService.EXPECT().CreateTask(gomock.Any(), "project-1", "user-1", gomock.Any()).Return(nil, ErrInvalidAssignee)

	body := `{"title":"Ship it","assignee_id":"outsider"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v0/projects/project-1/tasks", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleList_FilterParsing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")

	expected := storage.TaskFilter{Status: "done", AssigneeID: "user-9", Page: 2, Size: 25}
	mockService.EXPECT().ListTasks(gomock.Any(), "project-1", "user-1", expected).Return([]*types.Task{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v0/projects/project-1/tasks?status=done&assignee_id=user-9&page=2&size=25", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var tasks []*types.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if tasks == nil {
		t.Error("expected empty array, got null")
	}
}

func TestHandleList_MalformedPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, mux := setupAPI(t, ctrl, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/api/v0/projects/project-1/tasks?page=two", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleUpdate_Unassign(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")

	mockService.EXPECT().UpdateTask(gomock.Any(), "task-1", "user-1", gomock.Any(), []string{"assignee_id"}).DoAndReturn(
		func(_ context.Context, _, _ string, task *types.Task, _ []string) (*types.Task, error) {
			if task.AssigneeID != nil {
				t.Errorf("expected nil assignee, got %v", *task.AssigneeID)
			}
			return &types.Task{ID: "task-1"}, nil
		},
	)

	req := httptest.NewRequest(http.MethodPatch, "/api/v0/tasks/task-1", strings.NewReader(`{"assignee_id":""}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestHandleDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")
	mockService.EXPECT().DeleteTask(gomock.Any(), "task-1", "user-1").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v0/tasks/task-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}
