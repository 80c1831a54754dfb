// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/flapi-dev/flapi/pkg/auth"
)

// DefaultSessionTimeout is the idle window after which a session is
// evicted.
const DefaultSessionTimeout = 30 * time.Minute

// sessionIDBytes gives 96 bits of entropy per session id.
const sessionIDBytes = 12

// Session is one MCP client session, created on initialize and carried
// across requests via the Mcp-Session-Id header.
type Session struct {
	ID string

	// ClientName and ClientVersion come from the initialize clientInfo.
	ClientName    string
	ClientVersion string

	// ProtocolVersion is the version the server negotiated; the client's
	// requested version is kept for capability detection.
	ProtocolVersion          string
	RequestedProtocolVersion string

	// Capabilities is the client's declared capability map.
	Capabilities map[string]any

	CreatedAt    time.Time
	LastActivity time.Time

	Auth *auth.AuthContext
}

// Authenticated reports whether the session carries a live auth context.
func (s *Session) Authenticated() bool {
	return s.Auth != nil && s.Auth.Authenticated
}

// SessionManager owns the session map. All mutation happens under its
// lock; callers get value copies so concurrent reads never observe a
// half-updated session.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once

	now func() time.Time
}

// NewSessionManager creates a manager with the given idle timeout and
// starts the background cleanup worker.
func NewSessionManager(timeout time.Duration) *SessionManager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	m := &SessionManager{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
	go m.cleanupRoutine()
	return m
}

func (m *SessionManager) cleanupRoutine() {
	ticker := time.NewTicker(m.timeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.CleanupExpired()
		case <-m.stopCh:
			return
		}
	}
}

// CreateSession registers a new session and returns a copy of it.
func (m *SessionManager) CreateSession(s Session) Session {
	buf := make([]byte, sessionIDBytes)
	// rand.Read never fails on supported platforms.
	_, _ = rand.Read(buf)
	s.ID = hex.EncodeToString(buf)

	now := m.now()
	s.CreatedAt = now
	s.LastActivity = now

	m.mu.Lock()
	stored := s
	m.sessions[s.ID] = &stored
	m.mu.Unlock()
	return s
}

// GetSession returns a copy of the session, or false when the id is
// unknown or the session has idled past the timeout. Expired sessions
// are evicted on the call that discovers them.
func (m *SessionManager) GetSession(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	if m.now().Sub(s.LastActivity) > m.timeout {
		delete(m.sessions, id)
		return Session{}, false
	}
	return *s, true
}

// UpdateActivity bumps the session's last-activity timestamp.
func (m *SessionManager) UpdateActivity(id string) {
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		s.LastActivity = m.now()
	}
	m.mu.Unlock()
}

// UpdateAuth replaces the session's auth context, e.g. after an OIDC
// token refresh.
func (m *SessionManager) UpdateAuth(id string, ac *auth.AuthContext) {
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		s.Auth = ac
	}
	m.mu.Unlock()
}

// CleanupExpired evicts every session past the idle timeout.
func (m *SessionManager) CleanupExpired() {
	cutoff := m.now().Add(-m.timeout)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.LastActivity.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}

// Count reports the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Stop terminates the cleanup worker.
func (m *SessionManager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
