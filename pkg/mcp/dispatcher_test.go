// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapi-dev/flapi/pkg/auth"
	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/errors"
)

type fakeRunner struct {
	rows    []map[string]any
	err     error
	lastSQL string
}

func (f *fakeRunner) Execute(_ context.Context, sql string, _ map[string]any) ([]map[string]any, error) {
	f.lastSQL = sql
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeRenderer struct {
	lastName   string
	lastParams map[string]any
}

func (f *fakeRenderer) RenderFile(_ context.Context, name string, params map[string]any) (string, error) {
	f.lastName = name
	f.lastParams = params
	return "SELECT * FROM customers", nil
}

type fakeAuthenticator struct {
	ac    *auth.AuthContext
	err   error
	calls int
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, _ string, _ *endpoints.AuthConfig) (*auth.AuthContext, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.ac, nil
}

func testRepository() *endpoints.Repository {
	repo := endpoints.NewRepository()
	repo.Add(&endpoints.EndpointConfig{
		URLPath:        "/customers",
		Method:         "GET",
		Description:    "List customers",
		TemplateSource: "customers.sql",
		Request: []endpoints.RequestFieldConfig{
			{
				FieldName: "segment",
				FieldIn:   "query",
				Required:  true,
				Validators: []endpoints.ValidatorConfig{{
					Type:          endpoints.ValidatorEnum,
					AllowedValues: []string{"premium", "standard"},
				}},
			},
			{
				FieldName: "limit",
				FieldIn:   "query",
				Default:   strPtr("10"),
			},
		},
		MCPTool: &endpoints.MCPToolConfig{Name: "list_customers", Description: "List customers by segment"},
	})
	repo.Add(&endpoints.EndpointConfig{
		TemplateSource: "schema.sql",
		MCPResource:    &endpoints.MCPResourceConfig{Name: "schema_info", Description: "Schema overview"},
	})
	repo.Add(&endpoints.EndpointConfig{
		MCPPrompt: &endpoints.MCPPromptConfig{
			Name:     "sales_report",
			Template: "Summarize sales for {{region}}.",
			Arguments: []endpoints.MCPPromptArgument{
				{Name: "region", Required: true},
			},
		},
	})
	return repo
}

func strPtr(s string) *string { return &s }

type testEnv struct {
	dispatcher *Dispatcher
	sessions   *SessionManager
	runner     *fakeRunner
	renderer   *fakeRenderer
	authn      *fakeAuthenticator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sessions := NewSessionManager(DefaultSessionTimeout)
	t.Cleanup(sessions.Stop)

	runner := &fakeRunner{rows: []map[string]any{{"id": float64(1), "name": "Acme"}}}
	renderer := &fakeRenderer{}
	authn := &fakeAuthenticator{}

	d := NewDispatcher(
		endpoints.NewStore(testRepository()),
		sessions,
		authn,
		runner,
		renderer,
		Options{ServerName: "flapi", ServerVersion: "0.1.0", Description: "data gateway"},
	)
	return &testEnv{dispatcher: d, sessions: sessions, runner: runner, renderer: renderer, authn: authn}
}

type rpcReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

func (env *testEnv) post(t *testing.T, body string, headers map[string]string) (*httptest.ResponseRecorder, rpcReply) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/mcp/jsonrpc", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.dispatcher.HandleJSONRPC(rec, req)

	var reply rpcReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	return rec, reply
}

func TestHandleJSONRPCRejectsNonPost(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/mcp/jsonrpc", nil)
	rec := httptest.NewRecorder()
	env.dispatcher.HandleJSONRPC(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestInitializeCreatesSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec, reply := env.post(t, `{
		"jsonrpc": "2.0",
		"id": 1,
		"method": "initialize",
		"params": {
			"protocolVersion": "2024-11-05",
			"clientInfo": {"name": "test-client", "version": "1.2.3"}
		}
	}`, nil)

	require.Nil(t, reply.Error)

	sessionID := rec.Header().Get(SessionIDHeader)
	require.NotEmpty(t, sessionID)

	session, ok := env.sessions.GetSession(sessionID)
	require.True(t, ok)
	assert.Equal(t, "test-client", session.ClientName)
	assert.Equal(t, "2024-11-05", session.RequestedProtocolVersion)
	assert.Equal(t, ProtocolVersion, session.ProtocolVersion)

	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
		Instructions string `json:"instructions"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "flapi", result.ServerInfo.Name)
	assert.Equal(t, "data gateway", result.Instructions)
}

func TestToolsList(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, reply := env.post(t, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, nil)
	require.Nil(t, reply.Error)

	var result struct {
		Tools []struct {
			Name        string          `json:"name"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	require.Len(t, result.Tools, 1)
	assert.Equal(t, "list_customers", result.Tools[0].Name)

	var schema struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	require.NoError(t, json.Unmarshal(result.Tools[0].InputSchema, &schema))
	assert.Equal(t, "object", schema.Type)
	assert.Contains(t, schema.Properties, "segment")
	assert.Equal(t, []string{"segment"}, schema.Required)
}

func TestToolsCall(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, reply := env.post(t, `{
		"jsonrpc": "2.0",
		"id": 3,
		"method": "tools/call",
		"params": {"name": "list_customers", "arguments": {"segment": "premium"}}
	}`, nil)
	require.Nil(t, reply.Error)

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.JSONEq(t, `[{"id":1,"name":"Acme"}]`, result.Content[0].Text)

	assert.Equal(t, "customers.sql", env.renderer.lastName)
	params, ok := env.renderer.lastParams["params"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "premium", params["segment"])
	assert.Equal(t, "10", params["limit"], "field default should be applied")
}

func TestToolsCallErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		params   string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "unknown tool",
			params:   `{"name": "no_such_tool"}`,
			wantCode: CodeInvalidParams,
			wantMsg:  "unknown tool",
		},
		{
			name:     "enum violation",
			params:   `{"name": "list_customers", "arguments": {"segment": "platinum"}}`,
			wantCode: CodeInvalidParams,
			wantMsg:  "segment",
		},
		{
			name:     "missing required argument",
			params:   `{"name": "list_customers", "arguments": {}}`,
			wantCode: CodeInvalidParams,
			wantMsg:  "segment",
		},
		{
			name:     "unknown argument",
			params:   `{"name": "list_customers", "arguments": {"segment": "premium", "extra": "x"}}`,
			wantCode: CodeInvalidParams,
			wantMsg:  "unknown parameters: extra",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			body := fmt.Sprintf(`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":%s}`, tt.params)
			_, reply := env.post(t, body, nil)
			require.NotNil(t, reply.Error)
			assert.Equal(t, tt.wantCode, reply.Error.Code)
			assert.Contains(t, reply.Error.Message, tt.wantMsg)
		})
	}
}

func TestToolsCallQueryFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.runner.err = errors.NewDatabaseError("no such table: customers", nil)

	_, reply := env.post(t, `{
		"jsonrpc": "2.0",
		"id": 5,
		"method": "tools/call",
		"params": {"name": "list_customers", "arguments": {"segment": "premium"}}
	}`, nil)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeInternalError, reply.Error.Code)
	assert.Contains(t, reply.Error.Message, "no such table")
}

func TestResourcesListAndRead(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, listReply := env.post(t, `{"jsonrpc":"2.0","id":6,"method":"resources/list"}`, nil)
	require.Nil(t, listReply.Error)
	var listResult struct {
		Resources []struct {
			URI      string `json:"uri"`
			Name     string `json:"name"`
			MIMEType string `json:"mimeType"`
		} `json:"resources"`
	}
	require.NoError(t, json.Unmarshal(listReply.Result, &listResult))
	require.Len(t, listResult.Resources, 1)
	assert.Equal(t, "flapi://schema_info", listResult.Resources[0].URI)
	assert.Equal(t, "application/json", listResult.Resources[0].MIMEType)

	_, readReply := env.post(t, `{
		"jsonrpc": "2.0",
		"id": 7,
		"method": "resources/read",
		"params": {"uri": "flapi://schema_info"}
	}`, nil)
	require.Nil(t, readReply.Error)
	var readResult struct {
		Contents []struct {
			URI      string `json:"uri"`
			MIMEType string `json:"mimeType"`
			Text     string `json:"text"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(readReply.Result, &readResult))
	require.Len(t, readResult.Contents, 1)
	assert.Equal(t, "flapi://schema_info", readResult.Contents[0].URI)
	assert.JSONEq(t, `[{"id":1,"name":"Acme"}]`, readResult.Contents[0].Text)
}

func TestResourcesReadRejectsForeignScheme(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, reply := env.post(t, `{
		"jsonrpc": "2.0",
		"id": 8,
		"method": "resources/read",
		"params": {"uri": "file:///etc/passwd"}
	}`, nil)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeInvalidParams, reply.Error.Code)
}

func TestPromptsGet(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, reply := env.post(t, `{
		"jsonrpc": "2.0",
		"id": 9,
		"method": "prompts/get",
		"params": {"name": "sales_report", "arguments": {"region": "EMEA"}}
	}`, nil)
	require.Nil(t, reply.Error)

	var result struct {
		Messages []struct {
			Role    string `json:"role"`
			Content struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "user", result.Messages[0].Role)
	assert.Equal(t, "Summarize sales for EMEA.", result.Messages[0].Content.Text)
}

func TestPromptsGetMissingRequiredArgument(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, reply := env.post(t, `{
		"jsonrpc": "2.0",
		"id": 10,
		"method": "prompts/get",
		"params": {"name": "sales_report"}
	}`, nil)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeInvalidParams, reply.Error.Code)
	assert.Contains(t, reply.Error.Message, "region")
}

func TestPing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, reply := env.post(t, `{"jsonrpc":"2.0","id":11,"method":"ping"}`, nil)
	require.Nil(t, reply.Error)

	var result struct {
		Message string `json:"message"`
		Server  string `json:"server"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	assert.Equal(t, "pong", result.Message)
	assert.Equal(t, "flapi", result.Server)
}

func TestMethodNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, reply := env.post(t, `{"jsonrpc":"2.0","id":12,"method":"tools/uninstall"}`, nil)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeMethodNotFound, reply.Error.Code)
}

func TestCompletionComplete(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, reply := env.post(t, `{
		"jsonrpc": "2.0",
		"id": 13,
		"method": "completion/complete",
		"params": {
			"ref": {"type": "ref/tool", "name": "list_customers"},
			"argument": {"name": "segment", "value": "pre"}
		}
	}`, nil)
	require.Nil(t, reply.Error)

	var result struct {
		Completion struct {
			Values  []string `json:"values"`
			Total   int      `json:"total"`
			HasMore bool     `json:"hasMore"`
		} `json:"completion"`
	}
	require.NoError(t, json.Unmarshal(reply.Result, &result))
	assert.Equal(t, []string{"premium"}, result.Completion.Values)
	assert.Equal(t, 1, result.Completion.Total)
	assert.False(t, result.Completion.HasMore)
}

func TestAuthRequiredToolCall(t *testing.T) {
	t.Parallel()

	repo := endpoints.NewRepository()
	repo.Add(&endpoints.EndpointConfig{
		TemplateSource: "secure.sql",
		Auth:           endpoints.AuthConfig{Enabled: true, Type: endpoints.AuthTypeBasic},
		MCPTool:        &endpoints.MCPToolConfig{Name: "secure_tool"},
	})

	sessions := NewSessionManager(DefaultSessionTimeout)
	t.Cleanup(sessions.Stop)
	authn := &fakeAuthenticator{err: errors.NewAuthenticationError("bad credentials", nil)}
	d := NewDispatcher(endpoints.NewStore(repo), sessions, authn,
		&fakeRunner{}, &fakeRenderer{}, Options{ServerName: "flapi"})
	env := &testEnv{dispatcher: d, sessions: sessions, authn: authn}

	rec, reply := env.post(t, `{
		"jsonrpc": "2.0",
		"id": 14,
		"method": "tools/call",
		"params": {"name": "secure_tool"}
	}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeAuthRequired, reply.Error.Code)
}

func TestAuthRequiredPromptsGet(t *testing.T) {
	t.Parallel()

	repo := endpoints.NewRepository()
	repo.Add(&endpoints.EndpointConfig{
		Auth: endpoints.AuthConfig{Enabled: true, Type: endpoints.AuthTypeBasic},
		MCPPrompt: &endpoints.MCPPromptConfig{
			Name:     "internal_briefing",
			Template: "Internal briefing notes for {{region}}.",
		},
	})

	sessions := NewSessionManager(DefaultSessionTimeout)
	t.Cleanup(sessions.Stop)
	authn := &fakeAuthenticator{err: errors.NewAuthenticationError("bad credentials", nil)}
	d := NewDispatcher(endpoints.NewStore(repo), sessions, authn,
		&fakeRunner{}, &fakeRenderer{}, Options{ServerName: "flapi"})
	env := &testEnv{dispatcher: d, sessions: sessions, authn: authn}

	rec, reply := env.post(t, `{
		"jsonrpc": "2.0",
		"id": 15,
		"method": "prompts/get",
		"params": {"name": "internal_briefing", "arguments": {"region": "emea"}}
	}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeAuthRequired, reply.Error.Code)
	assert.Empty(t, reply.Result)
}

func TestSessionAuthSatisfiesLaterCalls(t *testing.T) {
	t.Parallel()

	repo := endpoints.NewRepository()
	repo.Add(&endpoints.EndpointConfig{
		TemplateSource: "secure.sql",
		Auth:           endpoints.AuthConfig{Enabled: true, Type: endpoints.AuthTypeBasic},
		MCPTool:        &endpoints.MCPToolConfig{Name: "secure_tool"},
	})

	sessions := NewSessionManager(DefaultSessionTimeout)
	t.Cleanup(sessions.Stop)
	authn := &fakeAuthenticator{ac: &auth.AuthContext{
		Authenticated: true,
		Username:      "alice",
		AuthType:      auth.TypeBasic,
	}}
	d := NewDispatcher(endpoints.NewStore(repo), sessions, authn,
		&fakeRunner{rows: []map[string]any{}}, &fakeRenderer{}, Options{ServerName: "flapi"})
	env := &testEnv{dispatcher: d, sessions: sessions, authn: authn}

	rec, initReply := env.post(t, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, nil)
	require.Nil(t, initReply.Error)
	sessionID := rec.Header().Get(SessionIDHeader)
	require.NotEmpty(t, sessionID)

	// First call authenticates via the Authorization header and binds
	// the result to the session.
	_, reply := env.post(t, `{
		"jsonrpc": "2.0",
		"id": 2,
		"method": "tools/call",
		"params": {"name": "secure_tool"}
	}`, map[string]string{
		SessionIDHeader: sessionID,
		"Authorization": "Basic YWxpY2U6c2VjcmV0",
	})
	require.Nil(t, reply.Error)
	assert.Equal(t, 1, authn.calls)

	// Second call carries no credentials; the session auth satisfies it.
	_, reply = env.post(t, `{
		"jsonrpc": "2.0",
		"id": 3,
		"method": "tools/call",
		"params": {"name": "secure_tool"}
	}`, map[string]string{SessionIDHeader: sessionID})
	require.Nil(t, reply.Error)
	assert.Equal(t, 1, authn.calls, "bound session auth should not re-authenticate")
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.sessions.CreateSession(Session{})

	req := httptest.NewRequest(http.MethodGet, "/mcp/health", nil)
	rec := httptest.NewRecorder()
	env.dispatcher.HandleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Status    string `json:"status"`
		Sessions  int    `json:"sessions"`
		Tools     int    `json:"tools"`
		Resources int    `json:"resources"`
		Prompts   int    `json:"prompts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "ok", payload.Status)
	assert.Equal(t, 1, payload.Sessions)
	assert.Equal(t, 1, payload.Tools)
	assert.Equal(t, 1, payload.Resources)
	assert.Equal(t, 1, payload.Prompts)
}
