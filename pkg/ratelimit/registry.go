// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/flapi-dev/flapi/pkg/endpoints"
)

// Registry holds one limiter per endpoint. Limiter state survives
// across requests; a config reload that changes the limit parameters
// lands on a fresh limiter because the parameters are part of the
// cache key.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]Limiter
}

// NewRegistry returns an empty limiter registry.
func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]Limiter)}
}

// For returns the limiter for an endpoint, creating it on first use.
// An unknown strategy falls back to the token bucket.
func (r *Registry) For(endpointKey string, cfg *endpoints.RateLimitConfig) Limiter {
	key := fmt.Sprintf("%s|%s|%d|%d", endpointKey, cfg.Strategy, cfg.Max, cfg.Interval)

	r.mu.Lock()
	defer r.mu.Unlock()

	if lim, ok := r.limiters[key]; ok {
		return lim
	}

	interval := time.Duration(cfg.Interval) * time.Second
	var lim Limiter
	if cfg.Strategy == StrategyFixedWindow {
		lim = NewFixedWindow(cfg.Max, interval)
	} else {
		lim = NewTokenBucket(cfg.Max, interval)
	}
	r.limiters[key] = lim
	return lim
}
