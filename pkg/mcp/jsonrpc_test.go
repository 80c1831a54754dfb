// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestMalformed(t *testing.T) {
	t.Parallel()

	req, perr := ParseRequest([]byte(`{"jsonrpc":"2.0","method":`))
	assert.Nil(t, req)
	require.NotNil(t, perr)
	assert.Equal(t, CodeParseError, perr.Code)
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{
			name: "valid ping",
			body: `{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		},
		{
			name:     "wrong jsonrpc version",
			body:     `{"jsonrpc":"1.0","id":1,"method":"ping"}`,
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "missing method",
			body:     `{"jsonrpc":"2.0","id":1}`,
			wantCode: CodeInvalidRequest,
		},
		{
			name:     "method with illegal characters",
			body:     `{"jsonrpc":"2.0","id":1,"method":"tools list"}`,
			wantCode: CodeInvalidRequest,
		},
		{
			name: "method with slash and dot",
			body: `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"x"}}`,
		},
		{
			name:     "tools/call without name",
			body:     `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{}}`,
			wantCode: CodeInvalidParams,
		},
		{
			name:     "tools/call with non-string name",
			body:     `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":7}}`,
			wantCode: CodeInvalidParams,
		},
		{
			name:     "resources/read without uri",
			body:     `{"jsonrpc":"2.0","id":1,"method":"resources/read"}`,
			wantCode: CodeInvalidParams,
		},
		{
			name:     "logging/setLevel without level",
			body:     `{"jsonrpc":"2.0","id":1,"method":"logging/setLevel","params":{}}`,
			wantCode: CodeInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req, perr := ParseRequest([]byte(tt.body))
			require.Nil(t, perr)

			verr := ValidateRequest(req)
			if tt.wantCode == 0 {
				assert.Nil(t, verr)
				return
			}
			require.NotNil(t, verr)
			assert.Equal(t, tt.wantCode, verr.Code)
		})
	}
}

func TestResponsePreservesRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		id     string
		wantID string
	}{
		{name: "number id", id: `42`, wantID: `42`},
		{name: "string id", id: `"req-7"`, wantID: `"req-7"`},
		{name: "null id", id: `null`, wantID: `null`},
		{name: "absent id", id: ``, wantID: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp := NewResult(json.RawMessage(tt.id), map[string]any{"ok": true})
			encoded, err := json.Marshal(resp)
			require.NoError(t, err)

			var decoded struct {
				ID json.RawMessage `json:"id"`
			}
			require.NoError(t, json.Unmarshal(encoded, &decoded))
			assert.JSONEq(t, tt.wantID, string(decoded.ID))
		})
	}
}

func TestNewErrorCarriesCode(t *testing.T) {
	t.Parallel()

	resp := NewError(json.RawMessage(`3`), CodeMethodNotFound, "method not found: nope")
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
	assert.Nil(t, resp.Result)
}
