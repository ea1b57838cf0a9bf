// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package comments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"

	httptypes "github.com/canonical/task-service/internal/http/types"
	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring"
	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/tracing"
	"github.com/canonical/task-service/internal/validation"
	"github.com/canonical/task-service/pkg/authentication"
)

type commentRequest struct {
	Body string `json:"body" validate:"required,min=1,max=5000"`
}

type API struct {
	service   ServiceInterface
	validator validation.ValidatorInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (a *API) RegisterEndpoints(mux chi.Router) {
	mux.Post("/api/v0/tasks/{id}/comments", a.handleCreate)
	mux.Get("/api/v0/tasks/{id}/comments", a.handleList)
	mux.Patch("/api/v0/comments/{id}", a.handleUpdate)
	mux.Delete("/api/v0/comments/{id}", a.handleDelete)
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "comments.API.handleCreate")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.validator.ValidateStruct(req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := a.service.CreateComment(ctx, chi.URLParam(r, "id"), userID, req.Body)
	if err != nil {
		a.logger.Errorf("failed to create comment: %v", err)
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusCreated, comment)
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "comments.API.handleList")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	filter, err := parseCommentFilter(r)
	if err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := a.service.ListComments(ctx, chi.URLParam(r, "id"), userID, filter)
	if err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, comments)
}

func (a *API) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "comments.API.handleUpdate")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.validator.ValidateStruct(req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := a.service.UpdateComment(ctx, chi.URLParam(r, "id"), userID, req.Body)
	if err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, comment)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "comments.API.handleDelete")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	if err := a.service.DeleteComment(ctx, chi.URLParam(r, "id"), userID); err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseCommentFilter(r *http.Request) (storage.CommentFilter, error) {
	var filter storage.CommentFilter

	for param, dest := range map[string]*int64{"page": &filter.Page, "size": &filter.Size} {
		raw := r.URL.Query().Get(param)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return storage.CommentFilter{}, errors.New("invalid " + param + " parameter")
		}
		*dest = v
	}

	return filter, nil
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
