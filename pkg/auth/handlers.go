// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	httptypes "github.com/canonical/task-service/internal/http/types"
	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring"
	"github.com/canonical/task-service/internal/tracing"
	"github.com/canonical/task-service/internal/types"
	"github.com/canonical/task-service/internal/validation"
	"github.com/canonical/task-service/pkg/authentication"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=1,max=200"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type registerResponse struct {
	User *types.User `json:"user"`
	// VerificationToken is returned in the response because the service
	// sends no email; the frontend owns delivery.
	VerificationToken string `json:"verification_token"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type API struct {
	service   ServiceInterface
	validator validation.ValidatorInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

// RegisterEndpoints mounts the unauthenticated surface.
func (a *API) RegisterEndpoints(mux chi.Router) {
	mux.Post("/api/v0/auth/register", a.handleRegister)
	mux.Post("/api/v0/auth/login", a.handleLogin)
	mux.Post("/api/v0/auth/refresh", a.handleRefresh)
	mux.Get("/api/v0/auth/verify", a.handleVerify)
}

// RegisterProtectedEndpoints mounts the part that needs a bearer token.
func (a *API) RegisterProtectedEndpoints(mux chi.Router) {
	mux.Post("/api/v0/auth/logout", a.handleLogout)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "auth.API.handleRegister")
	defer span.End()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.validator.ValidateStruct(req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	user, verificationToken, err := a.service.Register(ctx, req.Email, req.Name, req.Password)
	if err != nil {
		a.logger.Errorf("failed to register user: %v", err)
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusCreated, registerResponse{
		User:              user,
		VerificationToken: verificationToken,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "auth.API.handleLogin")
	defer span.End()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.validator.ValidateStruct(req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := a.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		a.logger.Errorf("failed to log in user: %v", err)
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, pair)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "auth.API.handleRefresh")
	defer span.End()

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.validator.ValidateStruct(req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := a.service.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		a.logger.Errorf("failed to refresh session: %v", err)
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, pair)
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "auth.API.handleVerify")
	defer span.End()

	token := r.URL.Query().Get("token")
	if token == "" {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, "missing token parameter")
		return
	}

	if err := a.service.Verify(ctx, token); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "invalid verification token")
			return
		}
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "email verified"})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "auth.API.handleLogout")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	if err := a.service.Logout(ctx, userID); err != nil {
		a.logger.Errorf("failed to log out user: %v", err)
		httptypes.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func NewAPI(
	service ServiceInterface,
	validator validation.ValidatorInterface,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) *API {
	return &API{
		service:   service,
		validator: validator,
		tracer:    tracer,
		monitor:   monitor,
		logger:    logger,
	}
}
