// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring"
	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/tracing"
	"github.com/canonical/task-service/internal/types"
	"github.com/canonical/task-service/pkg/authentication"
)

// ErrInvalidCredentials covers every authentication failure on login,
// refresh, and verification. Handlers map it to a 401 without detail, so a
// caller cannot tell a bad password from an unknown email.
var ErrInvalidCredentials = errors.New("invalid credentials")

// TokenPair is the login and refresh response payload.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

var _ ServiceInterface = (*Service)(nil)

type Service struct {
	storage  StorageInterface
	provider authentication.TokenProviderInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func NewService(
	s StorageInterface,
	provider authentication.TokenProviderInterface,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) *Service {
	return &Service{
		storage:  s,
		provider: provider,
		tracer:   tracer,
		monitor:  monitor,
		logger:   logger,
	}
}

// Register creates an unverified account and returns it together with the
// email verification token. Token delivery is the caller's problem; there is
// no mailer here.
func (s *Service) Register(ctx context.Context, email, name, password string) (*types.User, string, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Service.Register")
	defer span.End()

	hash, err := authentication.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.storage.CreateUser(ctx, &types.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	verification, err := s.provider.IssueVerificationToken(ctx, user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue verification token: %w", err)
	}

	return user, verification.Token, nil
}

// Login checks the password and issues an access/refresh token pair. The
// refresh token is persisted server side as a hash.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Service.Login")
	defer span.End()

	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Security().AuthFailure(email)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !authentication.CheckPassword(user.PasswordHash, password) {
		s.logger.Security().AuthFailure(user.ID)
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Security().AuthSuccess(user.ID)

	return pair, nil
}

// Refresh rotates the refresh token: the presented token is revoked and a
// fresh pair issued. A presented token that was already revoked is treated
// as theft and every session of the user is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Service.Refresh")
	defer span.End()

	userID, tokenID, err := s.provider.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	record, err := s.storage.GetRefreshTokenByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Security().AuthFailure(userID)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if record.Revoked {
		s.logger.Security().AuthFailure(userID)
		if err := s.storage.RevokeRefreshTokensByUserID(ctx, userID); err != nil {
			s.logger.Errorf("failed to revoke sessions after token reuse: %v", err)
		}
		return nil, ErrInvalidCredentials
	}

	if record.UserID != userID || record.TokenHash != authentication.HashToken(refreshToken) || time.Now().After(record.ExpiresAt) {
		s.logger.Security().AuthFailure(userID)
		return nil, ErrInvalidCredentials
	}

	if err := s.storage.RevokeRefreshToken(ctx, tokenID); err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return s.issuePair(ctx, userID)
}

// Logout revokes every refresh token of the user. Outstanding access tokens
// stay valid until they expire.
func (s *Service) Logout(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "auth.Service.Logout")
	defer span.End()

	if err := s.storage.RevokeRefreshTokensByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	s.logger.Security().TokenRevoked(userID)

	return nil
}

// Verify marks the account behind a verification token as verified.
func (s *Service) Verify(ctx context.Context, verificationToken string) error {
	ctx, span := s.tracer.Start(ctx, "auth.Service.Verify")
	defer span.End()

	userID, err := s.provider.VerifyVerificationToken(ctx, verificationToken)
	if err != nil {
		return ErrInvalidCredentials
	}

	if err := s.storage.SetUserVerified(ctx, userID); err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}

	return nil
}

func (s *Service) issuePair(ctx context.Context, userID string) (*TokenPair, error) {
	access, err := s.provider.IssueAccessToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	refresh, err := s.provider.IssueRefreshToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	if err := s.storage.CreateRefreshToken(ctx, &types.RefreshToken{
		ID:        refresh.ID,
		UserID:    userID,
		TokenHash: authentication.HashToken(refresh.Token),
		ExpiresAt: refresh.ExpiresAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	s.logger.Security().TokenIssued(userID)

	return &TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		TokenType:    "Bearer",
		ExpiresAt:    access.ExpiresAt,
	}, nil
}
