// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package authentication

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring"
	"github.com/canonical/task-service/internal/tracing"
)

// Token purposes, carried as a claim so an access token can never be replayed
// as a refresh or verification token.
const (
	purposeAccess      = "access"
	purposeRefresh     = "refresh"
	purposeVerifyEmail = "verify_email"
)

// IssuedToken is a signed token together with the metadata the caller needs
// to persist or return it.
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

type localClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

var _ TokenProviderInterface = (*LocalTokenProvider)(nil)

// LocalTokenProvider signs and verifies HS256 tokens with a key owned by this
// service. It backs the register/login/refresh flow when no external OIDC
// issuer is configured.
type LocalTokenProvider struct {
	signingKey      []byte
	issuer          string
	audience        string
	accessLifetime  time.Duration
	refreshLifetime time.Duration

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (p *LocalTokenProvider) IssueAccessToken(ctx context.Context, userID string) (*IssuedToken, error) {
	_, span := p.tracer.Start(ctx, "authentication.LocalTokenProvider.IssueAccessToken")
	defer span.End()

	return p.issue(userID, purposeAccess, p.accessLifetime)
}

func (p *LocalTokenProvider) IssueRefreshToken(ctx context.Context, userID string) (*IssuedToken, error) {
	_, span := p.tracer.Start(ctx, "authentication.LocalTokenProvider.IssueRefreshToken")
	defer span.End()

	return p.issue(userID, purposeRefresh, p.refreshLifetime)
}

// IssueVerificationToken mints the token returned by the register endpoint
// and consumed by the public verify endpoint. It shares the access token
// lifetime, long enough to click a link, short enough not to linger.
func (p *LocalTokenProvider) IssueVerificationToken(ctx context.Context, userID string) (*IssuedToken, error) {
	_, span := p.tracer.Start(ctx, "authentication.LocalTokenProvider.IssueVerificationToken")
	defer span.End()

	return p.issue(userID, purposeVerifyEmail, 24*time.Hour)
}

func (p *LocalTokenProvider) VerifyToken(ctx context.Context, rawToken string) (string, error) {
	_, span := p.tracer.Start(ctx, "authentication.LocalTokenProvider.VerifyToken")
	defer span.End()

	claims, err := p.parse(rawToken, purposeAccess)
	if err != nil {
		return "", err
	}

	return claims.Subject, nil
}

func (p *LocalTokenProvider) VerifyRefreshToken(ctx context.Context, rawToken string) (string, string, error) {
	_, span := p.tracer.Start(ctx, "authentication.LocalTokenProvider.VerifyRefreshToken")
	defer span.End()

	claims, err := p.parse(rawToken, purposeRefresh)
	if err != nil {
		return "", "", err
	}

	return claims.Subject, claims.ID, nil
}

func (p *LocalTokenProvider) VerifyVerificationToken(ctx context.Context, rawToken string) (string, error) {
	_, span := p.tracer.Start(ctx, "authentication.LocalTokenProvider.VerifyVerificationToken")
	defer span.End()

	claims, err := p.parse(rawToken, purposeVerifyEmail)
	if err != nil {
		return "", err
	}

	return claims.Subject, nil
}

func (p *LocalTokenProvider) issue(userID, purpose string, lifetime time.Duration) (*IssuedToken, error) {
	jti, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token ID: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(lifetime)

	claims := localClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &IssuedToken{Token: signed, ID: jti.String(), ExpiresAt: expiresAt}, nil
}

func (p *LocalTokenProvider) parse(rawToken, purpose string) (*localClaims, error) {
	claims := new(localClaims)

	_, err := jwt.ParseWithClaims(
		rawToken,
		claims,
		func(t *jwt.Token) (interface{}, error) { return p.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	if claims.Purpose != purpose {
		p.logger.Security().AuthFailure(claims.Subject)
		return nil, fmt.Errorf("token purpose mismatch: have %q, want %q", claims.Purpose, purpose)
	}

	return claims, nil
}

// HashToken is the digest stored server side for refresh tokens, so a
// database leak does not hand out usable credentials.
func HashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

func NewLocalTokenProvider(
	signingKey, issuer, audience string,
	accessLifetime, refreshLifetime time.Duration,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) (*LocalTokenProvider, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("signing key is required for local token issuance")
	}

	p := new(LocalTokenProvider)

	p.signingKey = []byte(signingKey)
	p.issuer = issuer
	p.audience = audience
	p.accessLifetime = accessLifetime
	p.refreshLifetime = refreshLifetime

	p.tracer = tracer
	p.monitor = monitor
	p.logger = logger

	return p, nil
}
