// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"math"
	"net"
	"net/http"

	"github.com/flapi-dev/flapi/pkg/auth"
	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/errors"
)

// withRateLimit throttles the endpoint when its rate_limit block is
// enabled. It runs before auth, keying on the remote address unless an
// earlier layer already bound an identity.
func (s *Server) withRateLimit(e *endpoints.EndpointConfig, next http.Handler) http.Handler {
	if !e.RateLimit.Enabled || s.limits == nil {
		return next
	}
	endpointKey := endpoints.RestKey(e.Method, e.URLPath)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := s.limits.For(endpointKey, &e.RateLimit)
		decision := limiter.Allow(clientKey(r))
		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			writeError(w, errors.NewRateLimitedError("rate limit exceeded", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAuth enforces the endpoint's auth block. Successful auth binds
// the AuthContext into the request context for downstream layers.
func (s *Server) withAuth(e *endpoints.EndpointConfig, next http.Handler) http.Handler {
	if !e.Auth.Enabled || s.authn == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, err := s.authn.Authenticate(r.Context(), r.Header.Get("Authorization"), &e.Auth)
		if err != nil {
			if challenge := auth.Challenge(&e.Auth); challenge != "" {
				w.Header().Set("WWW-Authenticate", challenge)
			}
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithAuthContext(r.Context(), ac)))
	})
}

// clientKey identifies the caller for rate limiting: authenticated
// username when bound, remote host otherwise.
func clientKey(r *http.Request) string {
	if ac, ok := auth.FromContext(r.Context()); ok && ac.Authenticated {
		return ac.Username
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
