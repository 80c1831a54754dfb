// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/logger"
)

const defaultTick = time.Second

// Scheduler fires periodic cache refreshes. One cooperative loop walks
// the endpoint repository on every tick and posts due refreshes to a
// bounded worker pool; a per-endpoint lock keeps at most one refresh in
// flight per endpoint.
type Scheduler struct {
	refresh refreshFunc
	store   *endpoints.Store
	workers *semaphore.Weighted
	tick    time.Duration

	mu       sync.Mutex
	nextFire map[string]time.Time
	inFlight map[string]*sync.Mutex

	wg sync.WaitGroup
}

type refreshFunc func(ctx context.Context, e *endpoints.EndpointConfig) error

// NewScheduler creates a scheduler posting refreshes to the manager,
// with at most workers refreshes running concurrently.
func NewScheduler(manager *Manager, store *endpoints.Store, workers int64) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		refresh:  manager.RefreshEndpoint,
		store:    store,
		workers:  semaphore.NewWeighted(workers),
		tick:     defaultTick,
		nextFire: make(map[string]time.Time),
		inFlight: make(map[string]*sync.Mutex),
	}
}

// Run blocks until ctx is canceled, then waits for in-flight refreshes
// to drain. Scheduled endpoints fire once immediately and then on every
// interval boundary.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		s.fireDue(ctx, time.Now())
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
		}
	}
}

// fireDue launches a refresh for every scheduled endpoint whose next
// fire time has passed, and advances its next fire time.
func (s *Scheduler) fireDue(ctx context.Context, now time.Time) {
	repo := s.store.Load()
	scheduled := repo.Find(func(e *endpoints.EndpointConfig) bool {
		return e.Cache.Enabled && e.Cache.Table != "" && e.Cache.Schedule != ""
	})

	for _, e := range scheduled {
		interval, err := ParseSchedule(e.Cache.Schedule)
		if err != nil {
			logger.Warnf("Skipping refresh of %s: %v", endpointKey(e), err)
			continue
		}

		key := TableName(&e.Cache)

		s.mu.Lock()
		next, seen := s.nextFire[key]
		if seen && now.Before(next) {
			s.mu.Unlock()
			continue
		}
		s.nextFire[key] = now.Add(interval)
		lock := s.inFlight[key]
		if lock == nil {
			lock = &sync.Mutex{}
			s.inFlight[key] = lock
		}
		s.mu.Unlock()

		s.launch(ctx, e, lock)
	}
}

func (s *Scheduler) launch(ctx context.Context, e *endpoints.EndpointConfig, lock *sync.Mutex) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// A previous refresh of this endpoint is still running, the
		// next tick will catch up.
		if !lock.TryLock() {
			return
		}
		defer lock.Unlock()

		if err := s.workers.Acquire(ctx, 1); err != nil {
			return
		}
		defer s.workers.Release(1)

		if err := s.refresh(ctx, e); err != nil {
			logger.Errorf("Scheduled cache refresh failed for %s: %v", endpointKey(e), err)
		}
	}()
}
