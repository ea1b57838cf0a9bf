// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring/prometheus"
	"github.com/canonical/task-service/internal/tracing"
	"github.com/canonical/task-service/pkg/authentication"
)

var (
	clientID     string
	clientSecret string
	tokenURL     string
	issuerURL    string
	scopes       []string

	signingKey  string
	tokenUserID string
	jwtIssuer   string
	jwtAudience string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Get an access token",
	Long:  `Mint a local access token with a signing key, or fetch one from an OIDC provider using the Client Credentials flow.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if signingKey != "" {
			if tokenUserID == "" {
				log.Fatal("--user-id is required with --signing-key")
			}

			logger := logging.NewNoopLogger()
			provider, err := authentication.NewLocalTokenProvider(
				signingKey,
				jwtIssuer,
				jwtAudience,
				time.Hour,
				24*time.Hour,
				tracing.NewTracer(tracing.NewConfig(false, "", "", logger)),
				prometheus.NewMonitor("task-service", logger),
				logger,
			)
			if err != nil {
				log.Fatalf("Failed to create token provider: %v", err)
			}

			issued, err := provider.IssueAccessToken(ctx, tokenUserID)
			if err != nil {
				log.Fatalf("Failed to issue token: %v", err)
			}

			fmt.Println(issued.Token)
			return
		}

		if tokenURL == "" {
			if issuerURL == "" {
				log.Fatal("Either --token-url, --issuer-url or --signing-key must be provided")
			}

			// Discovery endpoint
			provider, err := oidc.NewProvider(ctx, issuerURL)
			if err != nil {
				log.Fatalf("Failed to create OIDC provider from issuer: %v", err)
			}
			tokenURL = provider.Endpoint().TokenURL
		}

		config := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
		}

		token, err := config.Token(ctx)
		if err != nil {
			log.Fatalf("Failed to get token: %v", err)
		}

		fmt.Println(token.AccessToken)
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&clientID, "client-id", "", "Client ID")
	tokenCmd.Flags().StringVar(&clientSecret, "client-secret", "", "Client Secret")
	tokenCmd.Flags().StringVar(&tokenURL, "token-url", "", "Token URL")
	tokenCmd.Flags().StringVar(&issuerURL, "issuer-url", "", "Issuer URL (for OIDC discovery)")
	tokenCmd.Flags().StringSliceVar(&scopes, "scopes", []string{}, "Scopes (comma-separated)")

	tokenCmd.Flags().StringVar(&signingKey, "signing-key", "", "Local JWT signing key, mints a token without an OIDC provider")
	tokenCmd.Flags().StringVar(&tokenUserID, "user-id", "", "Subject for a locally minted token")
	tokenCmd.Flags().StringVar(&jwtIssuer, "jwt-issuer", "task-service", "Issuer claim for a locally minted token")
	tokenCmd.Flags().StringVar(&jwtAudience, "jwt-audience", "task-service", "Audience claim for a locally minted token")
}
