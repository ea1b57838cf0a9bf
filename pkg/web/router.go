// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package web

import (
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/canonical/task-service/internal/access"
	"github.com/canonical/task-service/internal/cache"
	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring"
	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/tracing"
	"github.com/canonical/task-service/internal/validation"
	"github.com/canonical/task-service/pkg/auth"
	"github.com/canonical/task-service/pkg/authentication"
	"github.com/canonical/task-service/pkg/comments"
	"github.com/canonical/task-service/pkg/metrics"
	"github.com/canonical/task-service/pkg/notifications"
	"github.com/canonical/task-service/pkg/projects"
	"github.com/canonical/task-service/pkg/status"
	"github.com/canonical/task-service/pkg/tasks"
	"github.com/canonical/task-service/pkg/users"
)

// NewRouter assembles every API on a chi mux. The credential endpoints sit
// behind a rate limiter, everything else behind bearer authentication.
func NewRouter(
	s storage.StorageInterface,
	c cache.CacheInterface,
	hub *notifications.Hub,
	notifier notifications.NotifierInterface,
	provider authentication.TokenProviderInterface,
	verifier authentication.TokenVerifierInterface,
	corsAllowedOrigins []string,
	authRateLimit string,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) (http.Handler, error) {
	router := chi.NewMux()

	router.Use(
		middleware.RequestID,
		monitoring.NewMiddleware(monitor, logger).ResponseTime(),
		cors.Handler(cors.Options{
			AllowedOrigins:   corsAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	validator := validation.NewValidator(logger)
	evaluator := access.NewEvaluator(tracer, monitor, logger)

	authAPI := auth.NewAPI(
		auth.NewService(s, provider, tracer, monitor, logger),
		validator, tracer, monitor, logger,
	)
	usersAPI := users.NewAPI(
		users.NewService(s, notifier, tracer, monitor, logger),
		validator, tracer, monitor, logger,
	)
	projectsAPI := projects.NewAPI(
		projects.NewService(s, c, evaluator, notifier, tracer, monitor, logger),
		validator, tracer, monitor, logger,
	)
	tasksAPI := tasks.NewAPI(
		tasks.NewService(s, c, evaluator, notifier, tracer, monitor, logger),
		validator, tracer, monitor, logger,
	)
	commentsAPI := comments.NewAPI(
		comments.NewService(s, c, evaluator, notifier, tracer, monitor, logger),
		validator, tracer, monitor, logger,
	)
	notificationsAPI := notifications.NewAPI(
		hub,
		notifications.NewRoomAuthorizer(s, evaluator, tracer, logger),
		tracer, monitor, logger,
	)

	metrics.NewAPI(logger).RegisterEndpoints(router)
	status.NewAPI(tracer, monitor, logger).RegisterEndpoints(router)

	rate, err := limiter.NewRateFromFormatted(authRateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid auth rate limit %q: %w", authRateLimit, err)
	}
	rateLimiter := stdlib.NewMiddleware(limiter.New(memory.NewStore(), rate))

	router.Group(func(r chi.Router) {
		r.Use(rateLimiter.Handler)
		authAPI.RegisterEndpoints(r)
	})

	router.Group(func(r chi.Router) {
		r.Use(authentication.NewMiddleware(verifier, tracer, monitor, logger).Authenticate())

		authAPI.RegisterProtectedEndpoints(r)
		usersAPI.RegisterEndpoints(r)
		projectsAPI.RegisterEndpoints(r)
		tasksAPI.RegisterEndpoints(r)
		commentsAPI.RegisterEndpoints(r)
		notificationsAPI.RegisterEndpoints(r)
	})

	return tracing.NewMiddleware(monitor, logger).OpenTelemetry(router), nil
}
