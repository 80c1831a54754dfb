// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp serves the Model Context Protocol surface: a JSON-RPC 2.0
// dispatcher exposing endpoints as tools, resources, and prompts, with
// stateful sessions identified by Mcp-Session-Id.
package mcp

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeAuthRequired is in the implementation-defined server error
	// range; returned when a method needs an authenticated session.
	CodeAuthRequired = -32001
)

// Request is a JSON-RPC 2.0 request. ID stays raw so string, number,
// and null ids are echoed back byte-for-byte.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Response is a JSON-RPC 2.0 response carrying either Result or Error.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResult builds a success response echoing the request id.
func NewResult(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: normalizeID(id), Result: result}
}

// NewError builds an error response echoing the request id.
func NewError(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      normalizeID(id),
		Error:   &Error{Code: code, Message: message},
	}
}

// normalizeID keeps absent ids as explicit JSON null in responses.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

var methodPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_./]*$`)

// ParseRequest decodes a JSON-RPC request body. Malformed JSON yields a
// parse error with a null id, per spec.
func ParseRequest(body []byte) (*Request, *Error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &Error{Code: CodeParseError, Message: "parse error"}
	}
	return &req, nil
}

// ValidateRequest checks the envelope and the method-scoped parameter
// shape. A nil return means the request may be dispatched.
func ValidateRequest(req *Request) *Error {
	if req.JSONRPC != "2.0" {
		return &Error{Code: CodeInvalidRequest, Message: "jsonrpc must be \"2.0\""}
	}
	if req.Method == "" || !methodPattern.MatchString(req.Method) {
		return &Error{Code: CodeInvalidRequest, Message: "invalid method name"}
	}

	switch req.Method {
	case "tools/call":
		return requireStringParam(req.Params, "name")
	case "resources/read":
		return requireStringParam(req.Params, "uri")
	case "prompts/get":
		return requireStringParam(req.Params, "name")
	case "logging/setLevel":
		return requireStringParam(req.Params, "level")
	}
	return nil
}

// requireStringParam checks that params is an object carrying a
// non-empty string under key.
func requireStringParam(params json.RawMessage, key string) *Error {
	var obj map[string]json.RawMessage
	if len(params) == 0 || json.Unmarshal(params, &obj) != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("params must be an object with %q", key)}
	}
	raw, ok := obj[key]
	if !ok {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("missing required parameter %q", key)}
	}
	var value string
	if json.Unmarshal(raw, &value) != nil || value == "" {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("parameter %q must be a non-empty string", key)}
	}
	return nil
}
