// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package templates renders SQL and prompt templates.
//
// The template grammar is a deliberately small subset: {{name}} tokens,
// where name is a dotted path into the parameter map ({{params.id}},
// {{cacheTable}}). Tokens resolving to nothing render as the empty string.
// Anything beyond substitution (loops, conditionals) is out of contract.
package templates

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// FileReader is the slice of the VFS the renderer needs to load template
// sources by name.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// Renderer resolves a template source name to rendered text. The request
// path and the cache manager both depend on this contract only.
type Renderer interface {
	RenderFile(ctx context.Context, name string, params map[string]any) (string, error)
}

// FileRenderer loads template sources through a FileReader and substitutes
// parameters. Wrap the reader in the caching file provider to avoid
// re-reading remote sources per request.
type FileRenderer struct {
	files FileReader
	// baseDir is prefixed to relative template names.
	baseDir string
}

// NewFileRenderer returns a renderer reading template sources under baseDir.
func NewFileRenderer(files FileReader, baseDir string) *FileRenderer {
	return &FileRenderer{files: files, baseDir: baseDir}
}

// RenderFile implements Renderer.
func (r *FileRenderer) RenderFile(ctx context.Context, name string, params map[string]any) (string, error) {
	path := name
	if r.baseDir != "" && !strings.Contains(name, "://") && !strings.HasPrefix(name, "/") {
		path = r.baseDir + "/" + name
	}
	raw, err := r.files.ReadFile(ctx, path)
	if err != nil {
		return "", fmt.Errorf("reading template %s: %w", path, err)
	}
	return Render(string(raw), params), nil
}

// Render substitutes every {{name}} token in source with the parameter it
// resolves to. Unterminated tokens are left verbatim.
func Render(source string, params map[string]any) string {
	var out strings.Builder
	out.Grow(len(source))

	for {
		open := strings.Index(source, "{{")
		if open < 0 {
			out.WriteString(source)
			return out.String()
		}
		out.WriteString(source[:open])

		rest := source[open+2:]
		closing := strings.Index(rest, "}}")
		if closing < 0 {
			out.WriteString(source[open:])
			return out.String()
		}

		name := strings.TrimSpace(rest[:closing])
		out.WriteString(lookup(params, name))
		source = rest[closing+2:]
	}
}

// lookup resolves a dotted path into nested maps and stringifies the value.
func lookup(params map[string]any, path string) string {
	if path == "" {
		return ""
	}

	var current any = params
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = m[segment]
		if !ok {
			return ""
		}
	}
	return stringify(current)
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []string:
		return strings.Join(val, ",")
	default:
		return fmt.Sprintf("%v", val)
	}
}
