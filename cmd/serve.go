// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/canonical/task-service/internal/cache"
	"github.com/canonical/task-service/internal/config"
	"github.com/canonical/task-service/internal/db"
	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring/prometheus"
	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/tracing"
	"github.com/canonical/task-service/pkg/authentication"
	"github.com/canonical/task-service/pkg/notifications"
	"github.com/canonical/task-service/pkg/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve starts the web server",
	Long:  `Launch the web application, list of environment variables is available in the readme`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := serve(); err != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() error {
	specs := new(config.EnvSpec)
	if err := envconfig.Process("", specs); err != nil {
		panic(fmt.Errorf("issues with environment sourcing: %s", err))
	}

	logger := logging.NewLogger(specs.LogLevel)
	logger.Debugf("env vars: %v", specs)
	defer logger.Sync()

	monitor := prometheus.NewMonitor("task-service", logger)
	tracer := tracing.NewTracer(tracing.NewConfig(specs.TracingEnabled, specs.OtelGRPCEndpoint, specs.OtelHTTPEndpoint, logger))

	dbConfig := db.Config{
		DSN:             specs.DSN,
		MaxConns:        specs.DBMaxConns,
		MinConns:        specs.DBMinConns,
		MaxConnLifetime: specs.DBMaxConnLifetime,
		MaxConnIdleTime: specs.DBMaxConnIdleTime,
		TracingEnabled:  specs.TracingEnabled,
	}
	dbClient, err := db.NewDBClient(dbConfig, tracer, monitor, logger)
	if err != nil {
		return fmt.Errorf("failed to create database client: %v", err)
	}
	defer dbClient.Close()
	// The client constructor pings the database, reaching this point means
	// the dependency is up.
	if err := monitor.SetDependencyAvailability(map[string]string{"component": "postgres"}, 1); err != nil {
		logger.Warnf("failed to set postgres availability gauge: %v", err)
	}
	s := storage.NewStorage(dbClient, tracer, monitor, logger)

	brokerCtx, stopBroker := context.WithCancel(context.Background())
	defer stopBroker()

	hub := notifications.NewHub(logger)

	var cacheClient cache.CacheInterface = cache.NewNoopCache()
	var notifier notifications.NotifierInterface = hub
	if specs.CacheEnabled {
		redisClient, err := cache.NewClient(context.Background(), specs.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to create redis client: %v", err)
		}
		defer redisClient.Close()
		if err := monitor.SetDependencyAvailability(map[string]string{"component": "redis"}, 1); err != nil {
			logger.Warnf("failed to set redis availability gauge: %v", err)
		}

		cacheClient = cache.NewCache(redisClient, tracer, monitor, logger)

		// With redis available, events fan out through pub/sub so every
		// replica delivers them to its own websocket clients.
		broker := notifications.NewBroker(redisClient, hub, tracer, monitor, logger)
		go broker.Run(brokerCtx)
		notifier = broker

		logger.Info("Cache and notification broker are enabled")
	} else {
		logger.Info("Cache is disabled, using in-process notifications only")
	}

	provider, err := authentication.NewLocalTokenProvider(
		specs.JWTSigningKey,
		specs.JWTIssuer,
		specs.JWTAudience,
		specs.AccessTokenLifetime,
		specs.RefreshTokenLifetime,
		tracer,
		monitor,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create token provider: %v", err)
	}

	var verifier authentication.TokenVerifierInterface = provider
	if specs.OIDCIssuer != "" {
		oidcProvider, err := authentication.NewProvider(context.Background(), specs.OIDCIssuer)
		if err != nil {
			return fmt.Errorf("failed to create OIDC provider: %v", err)
		}
		verifier = authentication.NewJWTVerifier(
			oidcProvider,
			specs.OIDCIssuer,
			specs.OIDCAllowedSubs,
			specs.OIDCRequiredScope,
			tracer,
			monitor,
			logger,
		)
		logger.Infof("Verifying bearer tokens against OIDC issuer %s", specs.OIDCIssuer)
	}

	router, err := web.NewRouter(
		s,
		cacheClient,
		hub,
		notifier,
		provider,
		verifier,
		specs.CORSAllowedOrigins,
		specs.AuthRateLimit,
		tracer,
		monitor,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to build router: %v", err)
	}

	logger.Infof("Starting HTTP server on port %v", specs.Port)

	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%v", specs.Port),
		WriteTimeout: time.Second * 60,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      router,
	}

	var serverError error
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Security().SystemStartup()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError = fmt.Errorf("server error: %w", err)
			c <- os.Interrupt
		}
	}()

	<-c

	// Create a deadline to wait for.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Security().SystemShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		serverError = fmt.Errorf("server shutdown error: %w", err)
	}

	return serverError
}
