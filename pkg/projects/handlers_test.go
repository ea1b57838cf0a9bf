// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chi "github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/mock/gomock"

	"github.com/canonical/task-service/internal/access"
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

	mockService.EXPECT().CreateProject(gomock.Any(), "user-1", "Roadmap", "Q3 planning").
		Return(&types.Project{ID: "project-1", Name: "Roadmap", OwnerID: "user-1"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v0/projects", strings.NewReader(`{"name":"Roadmap","description":"Q3 planning"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var project types.Project
	if err := json.Unmarshal(rec.Body.Bytes(), &project); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if project.ID != "project-1" {
		t.Errorf("unexpected project: %+v", project)
	}
}

func TestHandleCreate_ValidationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, mux := setupAPI(t, ctrl, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v0/projects", strings.NewReader(`{"description":"missing name"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleCreate_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, mux := setupAPI(t, ctrl, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v0/projects", strings.NewReader(`{"name":"Roadmap"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestHandleDetail_ErrorMapping(t *testing.T) {
	testCases := []struct {
		name         string
		serviceErr   error
		expectedCode int
	}{
		{"not found", fmt.Errorf("project access: %w", storage.ErrNotFound), http.StatusNotFound},
		{"forbidden", fmt.Errorf("insufficient role: %w", access.ErrForbidden), http.StatusForbidden},
		{"internal", fmt.Errorf("connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockService, mux := setupAPI(t, ctrl, "user-1")
			mockService.EXPECT().GetProject(gomock.Any(), "project-1", "user-1").Return(nil, tc.serviceErr)

			req := httptest.NewRequest(http.MethodGet, "/api/v0/projects/project-1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tc.expectedCode {
				t.Errorf("expected status %d, got %d", tc.expectedCode, rec.Code)
			}
		})
	}
}

func TestHandleUpdate_PatchPaths(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")

	mockService.EXPECT().UpdateProject(gomock.Any(), "project-1", "user-1", gomock.Any(), []string{"name", "archived"}).
		DoAndReturn(func(_ context.Context, _, _ string, p *types.Project, _ []string) (*types.Project, error) {
			if p.Name != "Renamed" || !p.Archived {
				t.Errorf("unexpected patch payload: %+v", p)
			}
			return &types.Project{ID: "project-1", Name: "Renamed", Archived: true}, nil
		})

	req := httptest.NewRequest(http.MethodPatch, "/api/v0/projects/project-1", strings.NewReader(`{"name":"Renamed","archived":true}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestHandleUpdate_EmptyPatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, mux := setupAPI(t, ctrl, "user-1")

	req := httptest.NewRequest(http.MethodPatch, "/api/v0/projects/project-1", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")
	mockService.EXPECT().DeleteProject(gomock.Any(), "project-1", "user-1").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v0/projects/project-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}

func TestHandleAddMember_RejectsOwnerRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, mux := setupAPI(t, ctrl, "user-1")

	body := `{"email":"new@example.com","role":"owner"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v0/projects/project-1/members", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleAddMember(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")

	member := &types.ProjectMember{UserID: "user-9", Email: "new@example.com", Role: "member"}
	mockService.EXPECT().AddMember(gomock.Any(), "project-1", "user-1", "new@example.com", "member").Return(member, nil)

	body := `{"email":"new@example.com","role":"member"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v0/projects/project-1/members", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestHandleRemoveMember(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")
	mockService.EXPECT().RemoveMember(gomock.Any(), "project-1", "user-1", "user-9").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v0/projects/project-1/members/user-9", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}
