// Copyright 2025 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package authentication

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
)

type ProviderInterface interface {
	// Verifier returns the token verifier associated with the specified OIDC issuer
	Verifier(*oidc.Config) *oidc.IDTokenVerifier
}

type TokenVerifierInterface interface {
	// VerifyToken verifies a raw JWT string and validates authorization claims
	// Returns the subject (user ID) if the token is valid and authorized, otherwise an error
	VerifyToken(ctx context.Context, rawToken string) (string, error)
}

// TokenProviderInterface issues and verifies the tokens minted by this
// service: short-lived access tokens, long-lived refresh tokens and the
// single-purpose email verification tokens.
type TokenProviderInterface interface {
	TokenVerifierInterface

	IssueAccessToken(ctx context.Context, userID string) (*IssuedToken, error)
	IssueRefreshToken(ctx context.Context, userID string) (*IssuedToken, error)
	IssueVerificationToken(ctx context.Context, userID string) (*IssuedToken, error)
	// VerifyRefreshToken returns the subject and token ID (jti) of a valid
	// refresh token. The server-side revocation record is keyed by the jti.
	VerifyRefreshToken(ctx context.Context, rawToken string) (userID, tokenID string, err error)
	VerifyVerificationToken(ctx context.Context, rawToken string) (string, error)
}
