// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package users

import (
	"encoding/json"
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

type updateMeRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=200"`
	Email *string `json:"email" validate:"omitempty,email"`
}

type API struct {
	service   ServiceInterface
	validator validation.ValidatorInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (a *API) RegisterEndpoints(mux chi.Router) {
	mux.Get("/api/v0/users/me", a.handleMe)
	mux.Patch("/api/v0/users/me", a.handleUpdateMe)
	mux.Get("/api/v0/users/{id}", a.handleDetail)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "users.API.handleMe")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	user, err := a.service.GetMe(ctx, userID)
	if err != nil {
		a.logger.Errorf("failed to get user: %v", err)
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, user)
}

func (a *API) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "users.API.handleUpdateMe")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req updateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.validator.ValidateStruct(req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	update, paths := req.apply()
	if len(paths) == 0 {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, "no fields to update")
		return
	}

	user, err := a.service.UpdateMe(ctx, userID, update, paths)
	if err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, user)
}

func (a *API) handleDetail(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "users.API.handleDetail")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	user, err := a.service.GetUser(ctx, chi.URLParam(r, "id"), userID)
	if err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, user)
}

func (r updateMeRequest) apply() (*types.User, []string) {
	update := new(types.User)
	paths := make([]string, 0, 2)

	if r.Name != nil {
		update.Name = *r.Name
		paths = append(paths, "name")
	}
	if r.Email != nil {
		update.Email = *r.Email
		paths = append(paths, "email")
	}

	return update, paths
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
