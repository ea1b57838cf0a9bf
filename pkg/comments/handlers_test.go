// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package comments

import (
	"context"
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

	mockService.EXPECT().CreateComment(gomock.Any(), "task-1", "user-1", "Looks good").
		Return(&types.Comment{ID: "comment-1", TaskID: "task-1", AuthorID: "user-1", Body: "Looks good"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v0/tasks/task-1/comments", strings.NewReader(`{"body":"Looks good"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestHandleCreate_EmptyBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, mux := setupAPI(t, ctrl, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v0/tasks/task-1/comments", strings.NewReader(`{"body":""}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleList_Pagination(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")

	expected := storage.CommentFilter{Page: 3, Size: 50}
	mockService.EXPECT().ListComments(gomock.Any(), "task-1", "user-1", expected).Return([]*types.Comment{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v0/tasks/task-1/comments?page=3&size=50", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestHandleUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")

	mockService.EXPECT().UpdateComment(gomock.Any(), "comment-1", "user-1", "Edited").
		Return(&types.Comment{ID: "comment-1", Body: "Edited"}, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/v0/comments/comment-1", strings.NewReader(`{"body":"Edited"}`))
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
	mockService.EXPECT().DeleteComment(gomock.Any(), "comment-1", "user-1").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v0/comments/comment-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}
