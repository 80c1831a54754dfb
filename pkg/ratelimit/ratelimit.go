// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit throttles endpoint traffic with per-key token
// buckets or fixed windows. Keys are the caller identity, authenticated
// username when present and remote address otherwise.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Endpoint strategies.
const (
	StrategyTokenBucket = "token_bucket"
	StrategyFixedWindow = "fixed_window"
)

// maxTrackedKeys caps the per-limiter key maps. Past the cap, entries
// idle longer than ten intervals are pruned on access.
const maxTrackedKeys = 4096

// Decision is the outcome of one Allow call. RetryAfter is only set on
// denial and feeds the Retry-After response header.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter admits or rejects a request for a caller key.
type Limiter interface {
	Allow(key string) Decision
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// tokenBucket refills max tokens over every interval and allows bursts
// up to max.
type tokenBucket struct {
	limit    rate.Limit
	burst    int
	interval time.Duration

	mu     sync.Mutex
	perKey map[string]*bucketEntry
}

// NewTokenBucket returns a limiter admitting maxRequests per interval
// per key, with burst capacity maxRequests.
func NewTokenBucket(maxRequests int, interval time.Duration) Limiter {
	maxRequests, interval = clampLimits(maxRequests, interval)
	return &tokenBucket{
		limit:    rate.Limit(float64(maxRequests) / interval.Seconds()),
		burst:    maxRequests,
		interval: interval,
		perKey:   make(map[string]*bucketEntry),
	}
}

func (t *tokenBucket) Allow(key string) Decision {
	now := time.Now()

	t.mu.Lock()
	entry := t.perKey[key]
	if entry == nil {
		entry = &bucketEntry{lim: rate.NewLimiter(t.limit, t.burst)}
		t.perKey[key] = entry
	}
	entry.lastSeen = now
	if len(t.perKey) > maxTrackedKeys {
		cutoff := now.Add(-10 * t.interval)
		for k, e := range t.perKey {
			if e.lastSeen.Before(cutoff) {
				delete(t.perKey, k)
			}
		}
	}
	t.mu.Unlock()

	res := entry.lim.Reserve()
	if !res.OK() {
		return Decision{RetryAfter: t.interval}
	}
	if delay := res.Delay(); delay > 0 {
		// Do not consume the reservation, the request is rejected.
		res.Cancel()
		return Decision{RetryAfter: delay}
	}
	return Decision{Allowed: true}
}

type windowEntry struct {
	start    time.Time
	count    int
	lastSeen time.Time
}

// fixedWindow counts requests per key and resets the counter every
// interval.
type fixedWindow struct {
	max      int
	interval time.Duration

	mu     sync.Mutex
	perKey map[string]*windowEntry
}

// NewFixedWindow returns a limiter admitting maxRequests per interval
// window per key, with the counter resetting at window boundaries.
func NewFixedWindow(maxRequests int, interval time.Duration) Limiter {
	maxRequests, interval = clampLimits(maxRequests, interval)
	return &fixedWindow{
		max:      maxRequests,
		interval: interval,
		perKey:   make(map[string]*windowEntry),
	}
}

func (f *fixedWindow) Allow(key string) Decision {
	now := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	entry := f.perKey[key]
	if entry == nil {
		entry = &windowEntry{start: now}
		f.perKey[key] = entry
	}
	entry.lastSeen = now
	if len(f.perKey) > maxTrackedKeys {
		cutoff := now.Add(-10 * f.interval)
		for k, e := range f.perKey {
			if e.lastSeen.Before(cutoff) {
				delete(f.perKey, k)
			}
		}
	}

	if now.Sub(entry.start) >= f.interval {
		entry.start = now
		entry.count = 0
	}
	entry.count++
	if entry.count <= f.max {
		return Decision{Allowed: true}
	}
	return Decision{RetryAfter: entry.start.Add(f.interval).Sub(now)}
}

func clampLimits(maxRequests int, interval time.Duration) (int, time.Duration) {
	if maxRequests < 1 {
		maxRequests = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return maxRequests, interval
}
