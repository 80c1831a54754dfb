// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/logger"
	"github.com/flapi-dev/flapi/pkg/templates"
	"github.com/flapi-dev/flapi/pkg/validation"
)

// ProtocolVersion is the MCP protocol version this server speaks. It is
// returned on initialize regardless of the client's requested version;
// the requested version is recorded on the session.
const ProtocolVersion = "2025-06-18"

// SessionIDHeader carries session continuity between client and server.
const SessionIDHeader = "Mcp-Session-Id"

// maxRequestBody bounds JSON-RPC request bodies.
const maxRequestBody = 4 * 1024 * 1024

// QueryRunner executes rendered SQL into JSON rows. Implemented by
// query.Executor.
type QueryRunner interface {
	Execute(ctx context.Context, sql string, params map[string]any) ([]map[string]any, error)
}

// Options carries server identity reported by initialize, ping, and the
// health endpoint.
type Options struct {
	ServerName    string
	ServerVersion string
	Description   string
}

// Dispatcher routes JSON-RPC requests to the MCP method handlers. One
// dispatcher serves all sessions; per-request state stays on the stack.
type Dispatcher struct {
	store     *endpoints.Store
	sessions  *SessionManager
	auth      Authenticator
	refresher SessionRefresher
	runner    QueryRunner
	renderer  templates.Renderer

	serverName    string
	serverVersion string
	description   string
	startedAt     time.Time
}

// NewDispatcher builds the dispatcher. auth may be nil when no endpoint
// enables authentication.
func NewDispatcher(
	store *endpoints.Store,
	sessions *SessionManager,
	authn Authenticator,
	runner QueryRunner,
	renderer templates.Renderer,
	opts Options,
) *Dispatcher {
	return &Dispatcher{
		store:         store,
		sessions:      sessions,
		auth:          authn,
		runner:        runner,
		renderer:      renderer,
		serverName:    opts.ServerName,
		serverVersion: opts.ServerVersion,
		description:   opts.Description,
		startedAt:     time.Now(),
	}
}

// WithRefresher enables OIDC session token refresh.
func (d *Dispatcher) WithRefresher(r SessionRefresher) *Dispatcher {
	d.refresher = r
	return d
}

// HandleJSONRPC serves POST /mcp/jsonrpc.
func (d *Dispatcher) HandleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeResponse(w, http.StatusOK, NewError(nil, CodeParseError, "unable to read request body"))
		return
	}

	req, perr := ParseRequest(body)
	if perr != nil {
		writeResponse(w, http.StatusOK, &Response{JSONRPC: "2.0", ID: json.RawMessage("null"), Error: perr})
		return
	}
	if verr := ValidateRequest(req); verr != nil {
		writeResponse(w, http.StatusOK, &Response{JSONRPC: "2.0", ID: normalizeID(req.ID), Error: verr})
		return
	}

	session, hasSession := d.sessions.GetSession(r.Header.Get(SessionIDHeader))

	resp, newSessionID := d.dispatch(r.Context(), req, r, session, hasSession)
	if hasSession {
		d.sessions.UpdateActivity(session.ID)
	}
	if newSessionID != "" {
		w.Header().Set(SessionIDHeader, newSessionID)
	}

	status := http.StatusOK
	if resp.Error != nil && resp.Error.Code == CodeAuthRequired {
		status = http.StatusUnauthorized
	}
	writeResponse(w, status, resp)
}

func writeResponse(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Errorf("failed to write JSON-RPC response: %v", err)
	}
}

// dispatch routes one validated request. The second return value is a
// freshly created session id, set only by initialize.
func (d *Dispatcher) dispatch(
	ctx context.Context,
	req *Request,
	httpReq *http.Request,
	session Session,
	hasSession bool,
) (resp *Response, newSessionID string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("MCP handler panicked", "method", req.Method, "panic", r)
			resp = NewError(req.ID, CodeInternalError, fmt.Sprintf("%v", r))
		}
	}()

	switch req.Method {
	case "initialize":
		return d.handleInitialize(req)
	case "tools/list":
		return NewResult(req.ID, map[string]any{"tools": ToolDefinitions(d.store.Load())}), ""
	case "tools/call":
		return d.handleToolsCall(ctx, req, httpReq, session, hasSession), ""
	case "resources/list":
		return NewResult(req.ID, map[string]any{"resources": ResourceDefinitions(d.store.Load())}), ""
	case "resources/read":
		return d.handleResourcesRead(ctx, req, httpReq, session, hasSession), ""
	case "resources/templates/list":
		return NewResult(req.ID, map[string]any{"resourceTemplates": []any{}}), ""
	case "prompts/list":
		return NewResult(req.ID, map[string]any{"prompts": PromptDefinitions(d.store.Load())}), ""
	case "prompts/get":
		return d.handlePromptsGet(ctx, req, httpReq, session, hasSession), ""
	case "ping":
		return NewResult(req.ID, map[string]any{
			"message":   "pong",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"server":    d.serverName,
			"version":   d.serverVersion,
		}), ""
	case "logging/setLevel":
		return d.handleSetLevel(req), ""
	case "completion/complete":
		return d.handleComplete(req), ""
	default:
		return NewError(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method)), ""
	}
}

func (d *Dispatcher) handleInitialize(req *Request) (*Response, string) {
	var params struct {
		ProtocolVersion string         `json:"protocolVersion"`
		Capabilities    map[string]any `json:"capabilities"`
		ClientInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"clientInfo"`
	}
	// Params are optional on initialize; a missing body negotiates with
	// empty client info.
	_ = json.Unmarshal(req.Params, &params)

	session := d.sessions.CreateSession(Session{
		ClientName:               params.ClientInfo.Name,
		ClientVersion:            params.ClientInfo.Version,
		ProtocolVersion:          ProtocolVersion,
		RequestedProtocolVersion: params.ProtocolVersion,
		Capabilities:             params.Capabilities,
	})
	logger.Infow("MCP session created",
		"session_id", session.ID,
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"requested_protocol", params.ProtocolVersion)

	result := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools":       map[string]any{"listChanged": false},
			"resources":   map[string]any{"subscribe": false, "listChanged": false},
			"prompts":     map[string]any{"listChanged": false},
			"logging":     map[string]any{},
			"completions": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    d.serverName,
			"version": d.serverVersion,
		},
	}
	if d.description != "" {
		result["instructions"] = d.description
	}
	return NewResult(req.ID, result), session.ID
}

func (d *Dispatcher) handleToolsCall(
	ctx context.Context,
	req *Request,
	httpReq *http.Request,
	session Session,
	hasSession bool,
) *Response {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	_ = json.Unmarshal(req.Params, &params)

	e, ok := d.store.Load().GetByMCP(params.Name)
	if !ok || e.MCPTool == nil {
		return NewError(req.ID, CodeInvalidParams, fmt.Sprintf("unknown tool: %s", params.Name))
	}

	if _, authErr := d.authorize(ctx, httpReq, session, hasSession, e); authErr != nil {
		return &Response{JSONRPC: "2.0", ID: normalizeID(req.ID), Error: authErr}
	}

	args := stringifyArguments(params.Arguments)
	applyDefaults(e, args)

	if unknown := validation.UnknownParameters(e.Request, args); len(unknown) > 0 {
		return NewError(req.ID, CodeInvalidParams,
			fmt.Sprintf("unknown parameters: %s", strings.Join(unknown, ", ")))
	}
	if errs := validation.ValidateRequest(e.Request, args); len(errs) > 0 {
		return NewError(req.ID, CodeInvalidParams, formatFieldErrors(errs))
	}

	rows, err := d.runEndpoint(ctx, e, args)
	if err != nil {
		return NewError(req.ID, CodeInternalError, err.Error())
	}
	text, err := json.Marshal(rows)
	if err != nil {
		return NewError(req.ID, CodeInternalError, err.Error())
	}
	return NewResult(req.ID, map[string]any{
		"content": []mcp.Content{TextBlock(string(text))},
		"isError": false,
	})
}

func (d *Dispatcher) handleResourcesRead(
	ctx context.Context,
	req *Request,
	httpReq *http.Request,
	session Session,
	hasSession bool,
) *Response {
	var params struct {
		URI string `json:"uri"`
	}
	_ = json.Unmarshal(req.Params, &params)

	name, ok := resourceName(params.URI)
	if !ok {
		return NewError(req.ID, CodeInvalidParams,
			fmt.Sprintf("resource URI must use the %s scheme", ResourceScheme))
	}
	e, ok := d.store.Load().GetByMCP(name)
	if !ok || e.MCPResource == nil {
		return NewError(req.ID, CodeInvalidParams, fmt.Sprintf("unknown resource: %s", name))
	}

	if _, authErr := d.authorize(ctx, httpReq, session, hasSession, e); authErr != nil {
		return &Response{JSONRPC: "2.0", ID: normalizeID(req.ID), Error: authErr}
	}

	// Resources are read-only: only field defaults feed the template.
	args := map[string]string{}
	applyDefaults(e, args)

	rows, err := d.runEndpoint(ctx, e, args)
	if err != nil {
		return NewError(req.ID, CodeInternalError, err.Error())
	}
	text, err := json.Marshal(rows)
	if err != nil {
		return NewError(req.ID, CodeInternalError, err.Error())
	}

	mimeType := e.MCPResource.MIMEType
	if mimeType == "" {
		mimeType = "application/json"
	}
	return NewResult(req.ID, map[string]any{
		"contents": []any{map[string]any{
			"uri":      params.URI,
			"mimeType": mimeType,
			"text":     string(text),
		}},
	})
}

func (d *Dispatcher) handlePromptsGet(
	ctx context.Context,
	req *Request,
	httpReq *http.Request,
	session Session,
	hasSession bool,
) *Response {
	var params struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments"`
	}
	_ = json.Unmarshal(req.Params, &params)

	e, ok := d.store.Load().GetByMCP(params.Name)
	if !ok || e.MCPPrompt == nil {
		return NewError(req.ID, CodeInvalidParams, fmt.Sprintf("unknown prompt: %s", params.Name))
	}

	if _, authErr := d.authorize(ctx, httpReq, session, hasSession, e); authErr != nil {
		return &Response{JSONRPC: "2.0", ID: normalizeID(req.ID), Error: authErr}
	}

	for _, arg := range e.MCPPrompt.Arguments {
		if arg.Required && params.Arguments[arg.Name] == "" {
			return NewError(req.ID, CodeInvalidParams,
				fmt.Sprintf("missing required argument %q", arg.Name))
		}
	}

	rendered := RenderPrompt(e.MCPPrompt.Template, params.Arguments)
	return NewResult(req.ID, map[string]any{
		"description": e.MCPPrompt.Description,
		"messages": []mcp.PromptMessage{{
			Role:    mcp.RoleUser,
			Content: TextBlock(rendered),
		}},
	})
}

func (*Dispatcher) handleSetLevel(req *Request) *Response {
	var params struct {
		Level string `json:"level"`
	}
	_ = json.Unmarshal(req.Params, &params)

	var level slog.Level
	switch strings.ToLower(params.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "notice":
		level = slog.LevelInfo
	case "warning":
		level = slog.LevelWarn
	case "error", "critical", "alert", "emergency":
		level = slog.LevelError
	default:
		return NewError(req.ID, CodeInvalidParams, fmt.Sprintf("unknown log level: %s", params.Level))
	}
	logger.Set(logger.New(logger.WithLevel(level)))
	return NewResult(req.ID, map[string]any{})
}

// handleComplete serves argument completion: values come from enum
// validators on the referenced endpoint's matching field.
func (d *Dispatcher) handleComplete(req *Request) *Response {
	var params struct {
		Ref struct {
			Type string `json:"type"`
			Name string `json:"name"`
			URI  string `json:"uri"`
		} `json:"ref"`
		Argument struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"argument"`
	}
	_ = json.Unmarshal(req.Params, &params)

	name := params.Ref.Name
	if name == "" {
		name, _ = resourceName(params.Ref.URI)
	}

	values := []string{}
	if e, ok := d.store.Load().GetByMCP(name); ok {
		if f := e.Field(params.Argument.Name); f != nil {
			for i := range f.Validators {
				if f.Validators[i].Type != endpoints.ValidatorEnum {
					continue
				}
				for _, allowed := range f.Validators[i].AllowedValues {
					if strings.HasPrefix(allowed, params.Argument.Value) {
						values = append(values, allowed)
					}
				}
			}
		}
	}
	return NewResult(req.ID, map[string]any{
		"completion": map[string]any{
			"values":  values,
			"total":   len(values),
			"hasMore": false,
		},
	})
}

// runEndpoint renders the endpoint's template with the string arguments
// under the params namespace and executes the result.
func (d *Dispatcher) runEndpoint(ctx context.Context, e *endpoints.EndpointConfig, args map[string]string) ([]map[string]any, error) {
	paramsNS := make(map[string]any, len(args))
	for k, v := range args {
		paramsNS[k] = v
	}
	sql, err := d.renderer.RenderFile(ctx, e.TemplateSource, map[string]any{"params": paramsNS})
	if err != nil {
		return nil, err
	}
	return d.runner.Execute(ctx, sql, nil)
}

// HandleHealth serves GET /mcp/health.
func (d *Dispatcher) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	repo := d.store.Load()
	payload := map[string]any{
		"status":          "ok",
		"server":          d.serverName,
		"version":         d.serverVersion,
		"protocolVersion": ProtocolVersion,
		"uptime_seconds":  int64(time.Since(d.startedAt).Seconds()),
		"sessions":        d.sessions.Count(),
		"tools":           len(ToolDefinitions(repo)),
		"resources":       len(ResourceDefinitions(repo)),
		"prompts":         len(PromptDefinitions(repo)),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("failed to write health response: %v", err)
	}
}

// stringifyArguments flattens JSON argument values to the string form
// the validators and templates consume.
func stringifyArguments(args map[string]any) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		switch value := v.(type) {
		case string:
			out[k] = value
		case float64:
			out[k] = strconv.FormatFloat(value, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(value)
		case nil:
			out[k] = ""
		default:
			encoded, _ := json.Marshal(value)
			out[k] = string(encoded)
		}
	}
	return out
}

// applyDefaults fills absent arguments with configured field defaults.
func applyDefaults(e *endpoints.EndpointConfig, args map[string]string) {
	for i := range e.Request {
		f := &e.Request[i]
		if _, present := args[f.FieldName]; !present && f.Default != nil {
			args[f.FieldName] = *f.Default
		}
	}
}

func formatFieldErrors(errs []validation.FieldError) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.FieldName, fe.Message))
	}
	return strings.Join(parts, "; ")
}
