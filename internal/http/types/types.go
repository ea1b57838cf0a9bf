// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package types

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/canonical/task-service/internal/access"
	"github.com/canonical/task-service/internal/storage"
)

// ErrorResponse is the standard json response for errors, every non-2xx body
// uses this shape.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Pagination carries the page/size query parameters, zero when absent.
type Pagination struct {
	Page int64
	Size int64
}

// ParsePagination reads page and size from the request query. Malformed or
// negative values fall back to zero and the storage defaults apply.
func ParsePagination(r *http.Request) Pagination {
	var p Pagination

	if page, err := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64); err == nil && page > 0 {
		p.Page = page
	}
	if size, err := strconv.ParseInt(r.URL.Query().Get("size"), 10, 64); err == nil && size > 0 {
		p.Size = size
	}

	return p
}

// WriteJSONResponse writes v with the given status. Encoding failures are
// unrecoverable at this point, the header is already out.
func WriteJSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse writes the standard error body.
func WriteErrorResponse(w http.ResponseWriter, status int, message string) {
	WriteJSONResponse(w, status, ErrorResponse{Status: status, Message: message})
}

// WriteServiceError maps domain errors onto the standard response: not-found
// and duplicate-key from storage, forbidden from access evaluation, anything
// else is an opaque 500.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		WriteErrorResponse(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, storage.ErrDuplicateKey):
		WriteErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, access.ErrForbidden):
		WriteErrorResponse(w, http.StatusForbidden, err.Error())
	default:
		WriteErrorResponse(w, http.StatusInternalServerError, "internal server error")
	}
}
