// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/flapi-dev/flapi/pkg/logger"
)

// maxConcurrentProbes bounds parallel health probes.
const maxConcurrentProbes = 8

// Probe is one storage backend health check.
type Probe struct {
	// Name identifies the backend in reports, e.g. "local" or "s3".
	Name string

	// Check performs the probe. A typical check stats a known path.
	Check func(ctx context.Context) error
}

// BackendStatus is the outcome of one probe.
type BackendStatus struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// CheckHealth probes all backends concurrently and reports per-backend
// latency and error. A failed probe is retried once before being reported
// unhealthy; an unhealthy backend never fails the overall call.
func CheckHealth(ctx context.Context, probes []Probe) []BackendStatus {
	statuses := make([]BackendStatus, len(probes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)

	for i, probe := range probes {
		g.Go(func() error {
			start := time.Now()
			err := runProbe(ctx, probe)
			status := BackendStatus{
				Name:    probe.Name,
				Healthy: err == nil,
				Latency: time.Since(start),
			}
			if err != nil {
				status.Error = err.Error()
				logger.Warnf("Storage backend %s is unhealthy: %v", probe.Name, err)
			}
			statuses[i] = status
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

// runProbe executes the check with a single retry.
func runProbe(ctx context.Context, probe Probe) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 200 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, probe.Check(ctx)
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(2),
	)
	return err
}
