// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package auth

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
	api.RegisterEndpoints(mux)
	if userID != "" {
		mux.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					next.ServeHTTP(w, r.WithContext(authentication.WithUserID(r.Context(), userID)))
				})
			})
			api.RegisterProtectedEndpoints(r)
		})
	} else {
		api.RegisterProtectedEndpoints(mux)
	}

	return mockService, mux
}

func TestHandleRegister(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "")
	mockService.EXPECT().Register(gomock.Any(), "new@example.com", "New User", "long enough pw").
		Return(&types.User{ID: "user-1", Email: "new@example.com", Name: "New User"}, "verification-token", nil)

	body := `{"email": "new@example.com", "name": "New User", "password": "long enough pw"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v0/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp registerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.User == nil || resp.User.ID != "user-1" {
		t.Errorf("unexpected user in response: %+v", resp.User)
	}
	if resp.VerificationToken != "verification-token" {
		t.Errorf("expected verification token in response, got %q", resp.VerificationToken)
	}
}

func TestHandleRegister_ShortPassword(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, mux := setupAPI(t, ctrl, "")

	body := `{"email": "new@example.com", "name": "New User", "password": "short"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v0/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestHandleRegister_DuplicateEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "")
	mockService.EXPECT().Register(gomock.Any(), "taken@example.com", "Dup", "long enough pw").
		Return(nil, "", storage.ErrDuplicateKey)

	body := `{"email": "taken@example.com", "name": "Dup", "password": "long enough pw"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v0/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d: %s", http.StatusConflict, rec.Code, rec.Body.String())
	}
}

func TestHandleLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "")
	mockService.EXPECT().Login(gomock.Any(), "me@example.com", "long enough pw").
		Return(&TokenPair{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer"}, nil)

	body := `{"email": "me@example.com", "password": "long enough pw"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v0/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var pair TokenPair
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if pair.AccessToken != "at" || pair.RefreshToken != "rt" {
		t.Errorf("unexpected token pair: %+v", pair)
	}
}

func TestHandleLogin_BadCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "")
	mockService.EXPECT().Login(gomock.Any(), "me@example.com", "a guess").
		Return(nil, ErrInvalidCredentials)

	body := `{"email": "me@example.com", "password": "a guess"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v0/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d: %s", http.StatusUnauthorized, rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_MalformedBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, mux := setupAPI(t, ctrl, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v0/auth/login", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestHandleRefresh(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "")
	mockService.EXPECT().Refresh(gomock.Any(), "old-refresh").
		Return(&TokenPair{AccessToken: "at2", RefreshToken: "rt2", TokenType: "Bearer"}, nil)

	body := `{"refresh_token": "old-refresh"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v0/auth/refresh", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestHandleRefresh_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "")
	mockService.EXPECT().Refresh(gomock.Any(), "stolen").
		Return(nil, ErrInvalidCredentials)

	body := `{"refresh_token": "stolen"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v0/auth/refresh", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d: %s", http.StatusUnauthorized, rec.Code, rec.Body.String())
	}
}

func TestHandleVerify(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "")
	mockService.EXPECT().Verify(gomock.Any(), "verification-token").Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v0/auth/verify?token=verification-token", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestHandleVerify_MissingToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, mux := setupAPI(t, ctrl, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v0/auth/verify", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestHandleLogout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService, mux := setupAPI(t, ctrl, "user-1")
	mockService.EXPECT().Logout(gomock.Any(), "user-1").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v0/auth/logout", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, rec.Code, rec.Body.String())
	}
}

func TestHandleLogout_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, mux := setupAPI(t, ctrl, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v0/auth/logout", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d: %s", http.StatusUnauthorized, rec.Code, rec.Body.String())
	}
}
