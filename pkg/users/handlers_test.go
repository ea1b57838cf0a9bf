// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package users

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

func TestHandleMe(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")
	mockService.EXPECT().GetMe(gomock.Any(), "user-1").
		Return(&types.User{ID: "user-1", Email: "me@example.com", PasswordHash: "secret"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v0/users/me", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	if strings.Contains(rec.Body.String(), "secret") {
		t.Error("password hash leaked into response")
	}

	var user types.User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestHandleMe_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, mux := setupAPI(t, ctrl, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v0/users/me", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestHandleUpdateMe(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")

	mockService.EXPECT().UpdateMe(gomock.Any(), "user-1", gomock.Any(), []string{"name", "email"}).
		Return(&types.User{ID: "user-1", Name: "New", Email: "new@example.com"}, nil)

	body := `{"name":"New","email":"new@example.com"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v0/users/me", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestHandleUpdateMe_InvalidEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, mux := setupAPI(t, ctrl, "user-1")

	req := httptest.NewRequest(http.MethodPatch, "/api/v0/users/me", strings.NewReader(`{"email":"not-an-email"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandleDetail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")
	mockService.EXPECT().GetUser(gomock.Any(), "user-2", "user-1").
		Return(&types.User{ID: "user-2", Name: "Teammate"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v0/users/user-2", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}
