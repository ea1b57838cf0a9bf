// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package tasks

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"

	httptypes "github.com/canonical/task-service/internal/http/types"
	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring"
	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/tracing"
	"github.com/canonical/task-service/internal/types"
	"github.com/canonical/task-service/internal/validation"
	"github.com/canonical/task-service/pkg/authentication"
)

type createTaskRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	Status      string     `json:"status" validate:"omitempty,task_status"`
	Priority    string     `json:"priority" validate:"omitempty,task_priority"`
	AssigneeID  *string    `json:"assignee_id"`
	DueAt       *time.Time `json:"due_at"`
}

type updateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Status      *string    `json:"status" validate:"omitempty,task_status"`
	Priority    *string    `json:"priority" validate:"omitempty,task_priority"`
	AssigneeID  *string    `json:"assignee_id"`
	DueAt       *time.Time `json:"due_at"`
}

type API struct {
	service   ServiceInterface
	validator validation.ValidatorInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (a *API) RegisterEndpoints(mux chi.Router) {
	mux.Post("/api/v0/projects/{id}/tasks", a.handleCreate)
	mux.Get("/api/v0/projects/{id}/tasks", a.handleList)
	mux.Get("/api/v0/tasks/{id}", a.handleDetail)
	mux.Patch("/api/v0/tasks/{id}", a.handleUpdate)
	mux.Delete("/api/v0/tasks/{id}", a.handleDelete)
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "tasks.API.handleCreate")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.validator.ValidateStruct(req); err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	task := &types.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		DueAt:       req.DueAt,
	}

	created, err := a.service.CreateTask(ctx, chi.URLParam(r, "id"), userID, task)
	if err != nil {
		if errors.Is(err, ErrInvalidAssignee) {
			httptypes.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Errorf("failed to create task: %v", err)
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusCreated, created)
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "tasks.API.handleList")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	filter, err := parseTaskFilter(r)
	if err != nil {
		httptypes.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	tasks, err := a.service.ListTasks(ctx, chi.URLParam(r, "id"), userID, filter)
	if err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, tasks)
}

func (a *API) handleDetail(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "tasks.API.handleDetail")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	task, err := a.service.GetTask(ctx, chi.URLParam(r, "id"), userID)
	if err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, task)
}

func (a *API) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "tasks.API.handleUpdate")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req updateTaskRequest
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

	task, err := a.service.UpdateTask(ctx, chi.URLParam(r, "id"), userID, update, paths)
	if err != nil {
		if errors.Is(err, ErrInvalidAssignee) {
			httptypes.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		httptypes.WriteServiceError(w, err)
		return
	}

	httptypes.WriteJSONResponse(w, http.StatusOK, task)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "tasks.API.handleDelete")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		httptypes.WriteErrorResponse(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	if err := a.service.DeleteTask(ctx, chi.URLParam(r, "id"), userID); err != nil {
		httptypes.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseTaskFilter reads the list query parameters. Unknown parameters are
// ignored, malformed pagination is rejected.
func parseTaskFilter(r *http.Request) (storage.TaskFilter, error) {
	filter := storage.TaskFilter{
		Status:     r.URL.Query().Get("status"),
		AssigneeID: r.URL.Query().Get("assignee_id"),
	}

	for param, dest := range map[string]*int64{"page": &filter.Page, "size": &filter.Size} {
		raw := r.URL.Query().Get(param)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return storage.TaskFilter{}, errors.New("invalid " + param + " parameter")
		}
		*dest = v
	}

	return filter, nil
}

// apply folds the patch body into an update struct and the list of paths the
// storage layer should touch. An explicit null assignee_id cannot be told
// apart from an omitted one with plain pointers, so unassigning goes through
// an explicit empty string.
func (r updateTaskRequest) apply() (*types.Task, []string) {
	update := new(types.Task)
	paths := make([]string, 0, 6)

	if r.Title != nil {
		update.Title = *r.Title
		paths = append(paths, "title")
	}
	if r.Description != nil {
		update.Description = *r.Description
		paths = append(paths, "description")
	}
	if r.Status != nil {
		update.Status = *r.Status
		paths = append(paths, "status")
	}
	if r.Priority != nil {
		update.Priority = *r.Priority
		paths = append(paths, "priority")
	}
	if r.AssigneeID != nil {
		if *r.AssigneeID == "" {
			update.AssigneeID = nil
		} else {
			update.AssigneeID = r.AssigneeID
		}
		paths = append(paths, "assignee_id")
	}
	if r.DueAt != nil {
		update.DueAt = r.DueAt
		paths = append(paths, "due_at")
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
