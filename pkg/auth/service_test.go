// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/mock/gomock"

	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/types"
	"github.com/canonical/task-service/pkg/authentication"
)

//go:generate mockgen -build_flags=--mod=mod -package auth -destination ./mock_interfaces.go -source=./interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package auth -destination ./mock_logger.go -source=../../internal/logging/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package auth -destination ./mock_monitor.go -source=../../internal/monitoring/interfaces.go
//go:generate mockgen -build_flags=--mod=mod -package auth -destination ./mock_tracing.go -source=../../internal/tracing/interfaces.go

// setupService wires a real token provider so login and refresh exercise the
// actual JWT issue and verify paths, with only storage mocked out.
func setupService(t *testing.T, ctrl *gomock.Controller) (*Service, *MockStorageInterface, *authentication.LocalTokenProvider) {
	t.Helper()

	mockStorage := NewMockStorageInterface(ctrl)
	mockTracer := NewMockTracingInterface(ctrl)
	mockMonitor := NewMockMonitorInterface(ctrl)
	logger := logging.NewNoopLogger()

	mockTracer.EXPECT().Start(gomock.Any(), gomock.Any()).
		Return(context.Background(), trace.SpanFromContext(context.Background())).AnyTimes()

	provider, err := authentication.NewLocalTokenProvider(
		"test-signing-key-for-unit-tests!",
		"task-service-test",
		"task-service-test",
		15*time.Minute,
		24*time.Hour,
		mockTracer,
		mockMonitor,
		logger,
	)
	if err != nil {
		t.Fatalf("failed to build token provider: %v", err)
	}

	svc := NewService(mockStorage, provider, mockTracer, mockMonitor, logger)

	return svc, mockStorage, provider
}

func TestService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, provider := setupService(t, ctrl)
	ctx := context.Background()

	mockStorage.EXPECT().CreateUser(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, u *types.User) (*types.User, error) {
			if u.Email != "new@example.com" || u.Name != "New User" {
				t.Errorf("unexpected user passed to storage: %+v", u)
			}
			if !authentication.CheckPassword(u.PasswordHash, "correct horse battery") {
				t.Errorf("stored hash does not match the password")
			}
			created := *u
			created.ID = "user-1"
			return &created, nil
		})

	user, verification, err := svc.Register(ctx, "new@example.com", "New User", "correct horse battery")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("unexpected user: %+v", user)
	}

	subject, err := provider.VerifyVerificationToken(ctx, verification)
	if err != nil {
		t.Fatalf("verification token does not verify: %v", err)
	}
	if subject != "user-1" {
		t.Errorf("expected verification token for user-1, got %q", subject)
	}
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	mockStorage.EXPECT().CreateUser(ctx, gomock.Any()).
		Return(nil, storage.ErrDuplicateKey)

	_, _, err := svc.Register(ctx, "taken@example.com", "Dup", "some password")
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, provider := setupService(t, ctrl)
	ctx := context.Background()

	hash, err := authentication.HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	mockStorage.EXPECT().GetUserByEmail(ctx, "me@example.com").
		Return(&types.User{ID: "user-1", Email: "me@example.com", PasswordHash: hash}, nil)

	var stored *types.RefreshToken
	mockStorage.EXPECT().CreateRefreshToken(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, rt *types.RefreshToken) error {
			stored = rt
			return nil
		})

	pair, err := svc.Login(ctx, "me@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pair.TokenType != "Bearer" {
		t.Errorf("expected Bearer token type, got %q", pair.TokenType)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Errorf("expected both tokens, got %+v", pair)
	}

	userID, tokenID, err := provider.VerifyRefreshToken(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("issued refresh token does not verify: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("expected refresh token for user-1, got %q", userID)
	}
	if stored == nil {
		t.Fatal("refresh token was not persisted")
	}
	if stored.ID != tokenID {
		t.Errorf("stored token id %q does not match jti %q", stored.ID, tokenID)
	}
	if stored.TokenHash != authentication.HashToken(pair.RefreshToken) {
		t.Errorf("stored hash does not match the issued token")
	}
}

func TestService_Login_WrongPassword(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	hash, err := authentication.HashPassword("the real password")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	mockStorage.EXPECT().GetUserByEmail(ctx, "me@example.com").
		Return(&types.User{ID: "user-1", PasswordHash: hash}, nil)

	_, err = svc.Login(ctx, "me@example.com", "a guess")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_Login_UnknownEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	mockStorage.EXPECT().GetUserByEmail(ctx, "nobody@example.com").
		Return(nil, storage.ErrNotFound)

	_, err := svc.Login(ctx, "nobody@example.com", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_Refresh_Rotates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, provider := setupService(t, ctrl)
	ctx := context.Background()

	issued, err := provider.IssueRefreshToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to issue refresh token: %v", err)
	}

	mockStorage.EXPECT().GetRefreshTokenByID(ctx, issued.ID).
		Return(&types.RefreshToken{
			ID:        issued.ID,
			UserID:    "user-1",
			TokenHash: authentication.HashToken(issued.Token),
			ExpiresAt: issued.ExpiresAt,
		}, nil)
	mockStorage.EXPECT().RevokeRefreshToken(ctx, issued.ID).Return(nil)

	var stored *types.RefreshToken
	mockStorage.EXPECT().CreateRefreshToken(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, rt *types.RefreshToken) error {
			stored = rt
			return nil
		})

	pair, err := svc.Refresh(ctx, issued.Token)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stored == nil {
		t.Fatal("rotated refresh token was not persisted")
	}
	if stored.ID == issued.ID {
		t.Errorf("rotation reused the old token id %q", issued.ID)
	}
	if pair.RefreshToken == issued.Token {
		t.Errorf("rotation returned the presented token")
	}
}

func TestService_Refresh_RevokedTokenKillsAllSessions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, provider := setupService(t, ctrl)
	ctx := context.Background()

	issued, err := provider.IssueRefreshToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to issue refresh token: %v", err)
	}

	mockStorage.EXPECT().GetRefreshTokenByID(ctx, issued.ID).
		Return(&types.RefreshToken{
			ID:        issued.ID,
			UserID:    "user-1",
			TokenHash: authentication.HashToken(issued.Token),
			ExpiresAt: issued.ExpiresAt,
			Revoked:   true,
		}, nil)
	mockStorage.EXPECT().RevokeRefreshTokensByUserID(ctx, "user-1").Return(nil)

	_, err = svc.Refresh(ctx, issued.Token)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_Refresh_HashMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, provider := setupService(t, ctrl)
	ctx := context.Background()

	issued, err := provider.IssueRefreshToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to issue refresh token: %v", err)
	}

	mockStorage.EXPECT().GetRefreshTokenByID(ctx, issued.ID).
		Return(&types.RefreshToken{
			ID:        issued.ID,
			UserID:    "user-1",
			TokenHash: authentication.HashToken("a different token"),
			ExpiresAt: issued.ExpiresAt,
		}, nil)

	_, err = svc.Refresh(ctx, issued.Token)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_Refresh_GarbageToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, _, _ := setupService(t, ctrl)

	_, err := svc.Refresh(context.Background(), "not a jwt at all")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_Refresh_AccessTokenRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, _, provider := setupService(t, ctrl)
	ctx := context.Background()

	// An access token is a valid JWT but carries the wrong purpose claim.
	issued, err := provider.IssueAccessToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to issue access token: %v", err)
	}

	_, err = svc.Refresh(ctx, issued.Token)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_Logout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, _ := setupService(t, ctrl)
	ctx := context.Background()

	mockStorage.EXPECT().RevokeRefreshTokensByUserID(ctx, "user-1").Return(nil)

	if err := svc.Logout(ctx, "user-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestService_Verify(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, mockStorage, provider := setupService(t, ctrl)
	ctx := context.Background()

	issued, err := provider.IssueVerificationToken(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to issue verification token: %v", err)
	}

	mockStorage.EXPECT().SetUserVerified(ctx, "user-1").Return(nil)

	if err := svc.Verify(ctx, issued.Token); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestService_Verify_BadToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, _, _ := setupService(t, ctrl)

	err := svc.Verify(context.Background(), "bogus")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
