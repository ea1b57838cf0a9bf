// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package projects

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

type createProjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type updateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Archived    *bool   `json:"archived"`
}

type addMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,project_role"`
}

type updateMemberRequest struct {
	Role string `json:"role" validate:"required,project_role"`
}

type API struct {
	service   ServiceInterface
	validator validation.ValidatorInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (a *API) RegisterEndpoints(mux chi.Router) {
	mux.Post("/api/v0/projects", a.handleCreate)
	mux.Get("/api/v0/projects", a.handleList)
	mux.Get("/api/v0/projects/{id}", a.handleDetail)
	mux.Patch("/api/v0/projects/{id}", a.handleUpdate)
	mux.Delete("/api/v0/projects/{id}", a.handleDelete)

	mux.Get("/api/v0/projects/{id}/members", a.handleListMembers)
	mux.Post("/api/v0/projects/{id}/members", a.handleAddMember)
	mux.Patch("/api/v0/projects/{id}/members/{userID}", a.handleUpdateMember)
	mux.Delete("/api/v0/projects/{id}/members/{userID}", a.handleRemoveMember)
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "projects.API.handleCreate")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.validator.ValidateStruct(req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := a.service.CreateProject(ctx, userID, req.Name, req.Description)
	if err != nil {
		a.logger.Errorf("failed to create project: %v", err)
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusCreated, project)
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "projects.API.handleList")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	projects, err := a.service.ListProjects(ctx, userID)
	if err != nil {
		a.logger.Errorf("failed to list projects: %v", err)
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, projects)
}

func (a *API) handleDetail(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "projects.API.handleDetail")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	project, err := a.service.GetProject(ctx, chi.URLParam(r, "id"), userID)
	if err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, project)
}

func (a *API) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "projects.API.handleUpdate")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req updateProjectRequest
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

	project, err := a.service.UpdateProject(ctx, chi.URLParam(r, "id"), userID, update, paths)
	if err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, project)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "projects.API.handleDelete")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	if err := a.service.DeleteProject(ctx, chi.URLParam(r, "id"), userID); err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListMembers(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "projects.API.handleListMembers")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	members, err := a.service.ListMembers(ctx, chi.URLParam(r, "id"), userID)
	if err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, members)
}

func (a *API) handleAddMember(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "projects.API.handleAddMember")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.validator.ValidateStruct(req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	member, err := a.service.AddMember(ctx, chi.URLParam(r, "id"), userID, req.Email, req.Role)
	if err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusCreated, member)
}

func (a *API) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "projects.API.handleUpdateMember")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req updateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.validator.ValidateStruct(req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	member, err := a.service.UpdateMemberRole(ctx, chi.URLParam(r, "id"), userID, chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, member)
}

func (a *API) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "projects.API.handleRemoveMember")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	if err := a.service.RemoveMember(ctx, chi.URLParam(r, "id"), userID, chi.URLParam(r, "userID")); err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// apply folds the patch body into an update struct and the list of paths the
// storage layer should touch.
func (r updateProjectRequest) apply() (*types.Project, []string) {
	update := new(types.Project)
	paths := make([]string, 0, 3)

	if r.Name != nil {
		update.Name = *r.Name
		paths = append(paths, "name")
	}
	if r.Description != nil {
		update.Description = *r.Description
		paths = append(paths, "description")
	}
	if r.Archived != nil {
		update.Archived = *r.Archived
		paths = append(paths, "archived")
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
