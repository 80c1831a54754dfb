// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"

	"github.com/flapi-dev/flapi/pkg/errors"
	"github.com/flapi-dev/flapi/pkg/logger"
)

// dataEnvelope is the success shape of every REST response.
type dataEnvelope struct {
	Data []map[string]any `json:"data"`
	Next string           `json:"next,omitempty"`
	// TotalCount is present only on paginated responses.
	TotalCount *int64 `json:"total_count,omitempty"`
}

// errorBody is the error object inside the failure envelope.
type errorBody struct {
	Category string         `json:"category"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// errorEnvelope is the failure shape of every REST response.
type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("failed to write response: %v", err)
	}
}

// writeData writes the success envelope. rows must not be nil so an
// empty result serializes as [].
func writeData(w http.ResponseWriter, rows []map[string]any, next string, totalCount *int64) {
	writeJSON(w, http.StatusOK, dataEnvelope{Data: rows, Next: next, TotalCount: totalCount})
}

// writeError maps the error through the taxonomy to a status code and
// the failure envelope. Engine details never leak past the single
// message line.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Category: errors.Category(err), Message: err.Error()}
	if e, ok := errors.As(err); ok {
		body.Message = e.Message
		body.Details = e.Details
	}
	writeJSON(w, errors.HTTPStatus(err), errorEnvelope{Success: false, Error: body})
}
