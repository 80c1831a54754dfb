// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/errors"
)

// StoredUser is one entry of an external user blob persisted into the
// local auth table.
type StoredUser struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
}

// ParseUserBlob decodes a JSON user blob. Both a bare array and a
// {"users": [...]} wrapper are accepted.
func ParseUserBlob(payload string) ([]StoredUser, error) {
	raw := strings.TrimSpace(payload)

	var users []StoredUser
	if err := json.Unmarshal([]byte(raw), &users); err == nil {
		return users, nil
	}

	var wrapped struct {
		Users []StoredUser `json:"users"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, errors.NewConfigurationError("user blob is not a JSON user list", err)
	}
	return wrapped.Users, nil
}

// LocalUserStore is the engine slice basic auth reads external users
// from.
type LocalUserStore interface {
	LocalAuthSecret(ctx context.Context, name string) (string, error)
}

// BasicAuthenticator verifies Authorization: Basic headers against
// inline endpoint users and, when configured, the local auth table.
type BasicAuthenticator struct {
	users LocalUserStore
}

// NewBasicAuthenticator returns a basic authenticator. users may be nil
// when no endpoint references an external secret store.
func NewBasicAuthenticator(users LocalUserStore) *BasicAuthenticator {
	return &BasicAuthenticator{users: users}
}

// Authenticate validates the header value and returns the principal.
func (b *BasicAuthenticator) Authenticate(ctx context.Context, authorization string, cfg *endpoints.AuthConfig) (*AuthContext, error) {
	const prefix = "Basic "
	if !strings.HasPrefix(authorization, prefix) {
		return nil, errors.NewAuthenticationError("basic authentication required", nil)
	}

	decoded, err := base64.StdEncoding.DecodeString(authorization[len(prefix):])
	if err != nil {
		return nil, errors.NewAuthenticationError("malformed basic credentials", err)
	}
	username, password, found := strings.Cut(string(decoded), ":")
	if !found || username == "" {
		return nil, errors.NewAuthenticationError("malformed basic credentials", nil)
	}

	allowLegacy := cfg.LegacyHashesAllowed()

	for _, u := range cfg.Users {
		if u.Username != username {
			continue
		}
		if VerifyPassword(u.Password, password, allowLegacy) {
			return basicContext(username, u.Roles), nil
		}
		return nil, errors.NewAuthenticationError("invalid credentials", nil)
	}

	if cfg.ExternalSecret != nil && b.users != nil {
		user, err := b.lookupExternal(ctx, cfg.ExternalSecret.Table, username)
		if err != nil {
			return nil, err
		}
		if user != nil && VerifyPassword(user.Password, password, allowLegacy) {
			return basicContext(username, user.Roles), nil
		}
	}

	return nil, errors.NewAuthenticationError("invalid credentials", nil)
}

// lookupExternal finds a username in the persisted user blob. A missing
// blob or username is not an error here, the caller responds with the
// generic invalid-credentials failure.
func (b *BasicAuthenticator) lookupExternal(ctx context.Context, table, username string) (*StoredUser, error) {
	payload, err := b.users.LocalAuthSecret(ctx, table)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.NewDatabaseError(fmt.Sprintf("local auth lookup failed for table %s", table), err)
	}

	users, err := ParseUserBlob(payload)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Username == username {
			return &users[i], nil
		}
	}
	return nil, nil
}

func basicContext(username string, roles []string) *AuthContext {
	return &AuthContext{
		Authenticated: true,
		Username:      username,
		Roles:         roles,
		AuthType:      TypeBasic,
		AuthTime:      time.Now(),
	}
}
