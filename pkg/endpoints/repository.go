// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package endpoints

import (
	"sort"
	"strings"
	"sync/atomic"
)

// RestKey builds the REST index key for a method and path.
func RestKey(method, urlPath string) string {
	return strings.ToUpper(method) + ":" + urlPath
}

// Repository is the dual index over endpoints: REST routes under
// "METHOD:url_path" and MCP surfaces under their MCP name. An endpoint may
// live in both indices; removal from one leaves the other intact.
//
// A Repository is not safe for concurrent mutation. It is built during
// load, then published read-only through a Store; reloads build a new one.
type Repository struct {
	rest map[string]*EndpointConfig
	mcp  map[string]*EndpointConfig
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{
		rest: make(map[string]*EndpointConfig),
		mcp:  make(map[string]*EndpointConfig),
	}
}

// Add indexes the endpoint in whichever indices apply, replacing any prior
// entry under the same key.
func (r *Repository) Add(e *EndpointConfig) {
	if e.HasREST() {
		r.rest[RestKey(e.Method, e.URLPath)] = e
	}
	if name := e.MCPName(); name != "" {
		r.mcp[name] = e
	}
}

// GetByRest looks up the endpoint serving method+path.
func (r *Repository) GetByRest(urlPath, method string) (*EndpointConfig, bool) {
	e, ok := r.rest[RestKey(method, urlPath)]
	return e, ok
}

// GetByMCP looks up the endpoint exposed under the given MCP name.
func (r *Repository) GetByMCP(name string) (*EndpointConfig, bool) {
	e, ok := r.mcp[name]
	return e, ok
}

// RemoveRest drops the REST index entry only.
func (r *Repository) RemoveRest(urlPath, method string) {
	delete(r.rest, RestKey(method, urlPath))
}

// RemoveMCP drops the MCP index entry only.
func (r *Repository) RemoveMCP(name string) {
	delete(r.mcp, name)
}

// Count reports the number of unique endpoints; one endpoint present in
// both indices counts once.
func (r *Repository) Count() int {
	seen := make(map[*EndpointConfig]struct{}, len(r.rest)+len(r.mcp))
	for _, e := range r.rest {
		seen[e] = struct{}{}
	}
	for _, e := range r.mcp {
		seen[e] = struct{}{}
	}
	return len(seen)
}

// Find returns the unique endpoints matching the predicate, in a
// deterministic order: REST entries sorted by key first, then MCP-only
// entries sorted by name. A nil predicate matches everything.
func (r *Repository) Find(predicate func(*EndpointConfig) bool) []*EndpointConfig {
	match := func(e *EndpointConfig) bool {
		return predicate == nil || predicate(e)
	}

	seen := make(map[*EndpointConfig]struct{}, len(r.rest)+len(r.mcp))
	var out []*EndpointConfig

	restKeys := make([]string, 0, len(r.rest))
	for k := range r.rest {
		restKeys = append(restKeys, k)
	}
	sort.Strings(restKeys)
	for _, k := range restKeys {
		e := r.rest[k]
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		if match(e) {
			out = append(out, e)
		}
	}

	mcpNames := make([]string, 0, len(r.mcp))
	for name := range r.mcp {
		mcpNames = append(mcpNames, name)
	}
	sort.Strings(mcpNames)
	for _, name := range mcpNames {
		e := r.mcp[name]
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		if match(e) {
			out = append(out, e)
		}
	}

	return out
}

// Store publishes a Repository to concurrent readers. Readers snapshot the
// current repository at request start; reloads swap in a fresh one without
// touching the published copy.
type Store struct {
	current atomic.Pointer[Repository]
}

// NewStore returns a Store publishing the given repository.
func NewStore(r *Repository) *Store {
	s := &Store{}
	if r == nil {
		r = NewRepository()
	}
	s.current.Store(r)
	return s
}

// Load returns the currently published repository.
func (s *Store) Load() *Repository {
	return s.current.Load()
}

// Swap atomically publishes a new repository.
func (s *Store) Swap(r *Repository) {
	s.current.Store(r)
}
