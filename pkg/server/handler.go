// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/errors"
	"github.com/flapi-dev/flapi/pkg/validation"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 4 * 1024 * 1024

// endpointHandler serves one endpoint: extract parameters, validate,
// render the template, execute, paginate, respond.
func (s *Server) endpointHandler(e *endpoints.EndpointConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, err := extractParams(r, e)
		if err != nil {
			writeError(w, err)
			return
		}

		page, err := parsePagination(params)
		if err != nil {
			writeError(w, err)
			return
		}

		for i := range e.Request {
			f := &e.Request[i]
			if _, present := params[f.FieldName]; !present && f.Default != nil {
				params[f.FieldName] = *f.Default
			}
		}

		if unknown := validation.UnknownParameters(e.Request, params); len(unknown) > 0 {
			writeError(w, errors.NewValidationError(
				fmt.Sprintf("unknown parameters: %s", strings.Join(unknown, ", ")), nil))
			return
		}
		if fieldErrs := validation.ValidateRequest(e.Request, params); len(fieldErrs) > 0 {
			// The first validator message is the envelope message; clients
			// match on these strings. The full field list rides in details.
			writeError(w, errors.NewValidationError(fieldErrs[0].Message, nil).
				WithDetails(map[string]any{"fields": fieldErrs}))
			return
		}

		paramsNS := make(map[string]any, len(params))
		for k, v := range params {
			paramsNS[k] = v
		}
		sql, err := s.renderer.RenderFile(r.Context(), e.TemplateSource, map[string]any{
			"params": paramsNS,
			"conn":   s.connProperties(e),
		})
		if err != nil {
			writeError(w, err)
			return
		}

		if page == nil {
			rows, err := s.runner.Execute(r.Context(), sql, nil)
			if err != nil {
				writeError(w, err)
				return
			}
			writeData(w, rows, "", nil)
			return
		}

		total, err := s.runner.Count(r.Context(), sql, nil)
		if err != nil {
			writeError(w, err)
			return
		}
		paged := fmt.Sprintf("SELECT * FROM (%s) LIMIT %d OFFSET %d",
			strings.TrimRight(strings.TrimSpace(sql), ";"), page.limit, page.offset)
		rows, err := s.runner.Execute(r.Context(), paged, nil)
		if err != nil {
			writeError(w, err)
			return
		}

		next := ""
		if int64(page.offset+len(rows)) < total {
			next = strconv.Itoa(page.offset + page.limit)
		}
		writeData(w, rows, next, &total)
	})
}

// connProperties exposes the endpoint's first connection's properties
// under the conn template namespace.
func (s *Server) connProperties(e *endpoints.EndpointConfig) map[string]any {
	props := map[string]any{}
	if s.cfg == nil || len(e.Connections) == 0 {
		return props
	}
	conn, ok := s.cfg.Connections[e.Connections[0]]
	if !ok {
		return props
	}
	for k, v := range conn.Properties {
		props[k] = v
	}
	return props
}

// extractParams gathers parameters from the query string, a JSON body,
// and the per-field path and header bindings. Later sources win so a
// path binding cannot be shadowed by a query value.
func extractParams(r *http.Request, e *endpoints.EndpointConfig) (map[string]string, error) {
	params := map[string]string{}

	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			params[name] = values[0]
		}
	}

	if hasJSONBody(r) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return nil, errors.NewValidationError("unable to read request body", err)
		}
		if len(body) > 0 {
			var decoded map[string]any
			if err := json.Unmarshal(body, &decoded); err != nil {
				return nil, errors.NewValidationError("request body is not valid JSON", err)
			}
			for name, value := range decoded {
				params[name] = stringifyValue(value)
			}
		}
	}

	for i := range e.Request {
		f := &e.Request[i]
		switch f.FieldIn {
		case "path":
			if v := chi.URLParam(r, f.FieldName); v != "" {
				params[f.FieldName] = v
			}
		case "header":
			if v := r.Header.Get(f.FieldName); v != "" {
				params[f.FieldName] = v
			}
		}
	}
	return params, nil
}

func hasJSONBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func stringifyValue(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case nil:
		return ""
	default:
		encoded, _ := json.Marshal(value)
		return string(encoded)
	}
}

// pagination is the parsed offset/limit pair; nil means unpaginated.
type pagination struct {
	offset int
	limit  int
}

// parsePagination reads the always-permitted offset and limit
// parameters. A limit of zero or absence of limit disables pagination.
func parsePagination(params map[string]string) (*pagination, error) {
	limitStr, hasLimit := params["limit"]
	if !hasLimit || limitStr == "" {
		return nil, nil
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 0 {
		return nil, errors.NewValidationError("limit must be a non-negative integer", nil)
	}
	if limit == 0 {
		return nil, nil
	}

	offset := 0
	if offsetStr, ok := params["offset"]; ok && offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return nil, errors.NewValidationError("offset must be a non-negative integer", nil)
		}
	}
	return &pagination{offset: offset, limit: limit}, nil
}
