// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// CacheStats reports caching decorator counters. Hits, misses, and evictions
// are monotonic; the current counters move both ways.
type CacheStats struct {
	Hits             int64 `json:"hits"`
	Misses           int64 `json:"misses"`
	Evictions        int64 `json:"evictions"`
	CurrentEntries   int64 `json:"current_entries"`
	CurrentSizeBytes int64 `json:"current_size_bytes"`
}

type cacheEntry struct {
	content    []byte
	expiresAt  time.Time
	lastAccess time.Time
}

// CachingFileProvider decorates a FileProvider with a TTL + LRU byte-bounded
// cache for remote reads. Local paths always read through: the freshness of
// local files is the filesystem's problem, not ours. FileExists and
// ListFiles are never cached.
type CachingFileProvider struct {
	inner        FileProvider
	ttl          time.Duration
	maxSizeBytes int64

	mu      sync.Mutex
	entries map[string]*cacheEntry
	size    int64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	count     atomic.Int64
	bytes     atomic.Int64

	// now is replaceable in tests.
	now func() time.Time
}

// NewCachingFileProvider wraps inner with a remote-read cache. A
// maxSizeBytes of zero or less means no byte bound.
func NewCachingFileProvider(inner FileProvider, ttl time.Duration, maxSizeBytes int64) *CachingFileProvider {
	return &CachingFileProvider{
		inner:        inner,
		ttl:          ttl,
		maxSizeBytes: maxSizeBytes,
		entries:      make(map[string]*cacheEntry),
		now:          time.Now,
	}
}

// ReadFile serves remote paths from the cache when possible.
func (c *CachingFileProvider) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if !IsRemote(path) {
		return c.inner.ReadFile(ctx, path)
	}

	if content, ok := c.lookup(path); ok {
		c.hits.Add(1)
		return content, nil
	}
	c.misses.Add(1)

	content, err := c.inner.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	c.insert(path, content)
	return content, nil
}

// lookup returns a cached copy, refreshing its access time. Expired entries
// are dropped.
func (c *CachingFileProvider) lookup(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.removeLocked(path, entry)
		return nil, false
	}
	entry.lastAccess = c.now()
	content := make([]byte, len(entry.content))
	copy(content, entry.content)
	return content, true
}

// insert stores content, evicting least-recently-accessed entries until it
// fits. With a byte bound, content larger than the whole cache is not
// stored at all.
func (c *CachingFileProvider) insert(path string, content []byte) {
	size := int64(len(content))
	bounded := c.maxSizeBytes > 0
	if bounded && size > c.maxSizeBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[path]; ok {
		c.removeLocked(path, old)
	}
	for bounded && c.size+size > c.maxSizeBytes {
		lruPath, lru := c.oldestLocked()
		if lru == nil {
			break
		}
		c.removeLocked(lruPath, lru)
		c.evictions.Add(1)
	}

	stored := make([]byte, len(content))
	copy(stored, content)
	now := c.now()
	c.entries[path] = &cacheEntry{
		content:    stored,
		expiresAt:  now.Add(c.ttl),
		lastAccess: now,
	}
	c.size += size
	c.count.Add(1)
	c.bytes.Add(size)
}

func (c *CachingFileProvider) oldestLocked() (string, *cacheEntry) {
	var oldestPath string
	var oldest *cacheEntry
	for path, entry := range c.entries {
		if oldest == nil || entry.lastAccess.Before(oldest.lastAccess) {
			oldestPath, oldest = path, entry
		}
	}
	return oldestPath, oldest
}

func (c *CachingFileProvider) removeLocked(path string, entry *cacheEntry) {
	delete(c.entries, path)
	c.size -= int64(len(entry.content))
	c.count.Add(-1)
	c.bytes.Add(-int64(len(entry.content)))
}

// FileExists always asks the underlying provider.
func (c *CachingFileProvider) FileExists(ctx context.Context, path string) (bool, error) {
	return c.inner.FileExists(ctx, path)
}

// ListFiles always asks the underlying provider.
func (c *CachingFileProvider) ListFiles(ctx context.Context, glob string) ([]string, error) {
	return c.inner.ListFiles(ctx, glob)
}

// Stats returns a snapshot of the cache counters.
func (c *CachingFileProvider) Stats() CacheStats {
	return CacheStats{
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		Evictions:        c.evictions.Load(),
		CurrentEntries:   c.count.Load(),
		CurrentSizeBytes: c.bytes.Load(),
	}
}
