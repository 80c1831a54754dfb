// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flapi-dev/flapi/pkg/endpoints"
)

// ResourceScheme prefixes every resource URI served by the gateway.
const ResourceScheme = "flapi://"

// ToolDefinitions derives SDK tool definitions from every endpoint with
// an mcp_tool block, in the repository's deterministic order.
func ToolDefinitions(repo *endpoints.Repository) []mcp.Tool {
	matches := repo.Find(func(e *endpoints.EndpointConfig) bool {
		return e.MCPTool != nil && e.MCPTool.Name != ""
	})
	tools := make([]mcp.Tool, 0, len(matches))
	for _, e := range matches {
		description := e.MCPTool.Description
		if description == "" {
			description = e.Description
		}
		tools = append(tools, mcp.Tool{
			Name:           e.MCPTool.Name,
			Description:    description,
			RawInputSchema: toolInputSchema(e),
		})
	}
	return tools
}

// toolInputSchema builds the JSON schema for a tool's arguments: one
// string property per request field, required fields listed.
func toolInputSchema(e *endpoints.EndpointConfig) json.RawMessage {
	properties := make(map[string]any, len(e.Request))
	required := []string{}
	for i := range e.Request {
		f := &e.Request[i]
		prop := map[string]any{"type": "string"}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		properties[f.FieldName] = prop
		if f.Required {
			required = append(required, f.FieldName)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
	raw, _ := json.Marshal(schema)
	return raw
}

// ResourceDefinitions derives SDK resource definitions from endpoints
// with an mcp_resource block.
func ResourceDefinitions(repo *endpoints.Repository) []mcp.Resource {
	matches := repo.Find(func(e *endpoints.EndpointConfig) bool {
		return e.MCPResource != nil && e.MCPResource.Name != ""
	})
	resources := make([]mcp.Resource, 0, len(matches))
	for _, e := range matches {
		mimeType := e.MCPResource.MIMEType
		if mimeType == "" {
			mimeType = "application/json"
		}
		resources = append(resources, mcp.Resource{
			URI:         ResourceScheme + e.MCPResource.Name,
			Name:        e.MCPResource.Name,
			Description: e.MCPResource.Description,
			MIMEType:    mimeType,
		})
	}
	return resources
}

// PromptDefinitions derives SDK prompt definitions from endpoints with
// an mcp_prompt block.
func PromptDefinitions(repo *endpoints.Repository) []mcp.Prompt {
	matches := repo.Find(func(e *endpoints.EndpointConfig) bool {
		return e.MCPPrompt != nil && e.MCPPrompt.Name != ""
	})
	prompts := make([]mcp.Prompt, 0, len(matches))
	for _, e := range matches {
		args := make([]mcp.PromptArgument, 0, len(e.MCPPrompt.Arguments))
		for _, a := range e.MCPPrompt.Arguments {
			args = append(args, mcp.PromptArgument{
				Name:        a.Name,
				Description: a.Description,
				Required:    a.Required,
			})
		}
		prompts = append(prompts, mcp.Prompt{
			Name:        e.MCPPrompt.Name,
			Description: e.MCPPrompt.Description,
			Arguments:   args,
		})
	}
	return prompts
}

// RenderPrompt substitutes {{arg}} occurrences in the prompt template.
// Unknown placeholders are left in place.
func RenderPrompt(template string, args map[string]string) string {
	rendered := template
	for name, value := range args {
		rendered = strings.ReplaceAll(rendered, "{{"+name+"}}", value)
	}
	return rendered
}

// resourceName strips the flapi:// scheme from a resource URI.
func resourceName(uri string) (string, bool) {
	if !strings.HasPrefix(uri, ResourceScheme) {
		return "", false
	}
	return strings.TrimPrefix(uri, ResourceScheme), true
}
