// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	// MD5 remains only as a comparison target for already-stored legacy
	// hashes behind allow_legacy_hashes.
	"crypto/md5" // #nosec G501
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/flapi-dev/flapi/pkg/logger"
)

var legacyWarnOnce sync.Once

// VerifyPassword checks a supplied password against a stored value.
// Stored bcrypt hashes (prefix $2a$, $2b$, $2y$) always verify through
// bcrypt. Plaintext and 32-hex MD5 stored values only verify when
// allowLegacy is set, and the first legacy use logs a warning.
func VerifyPassword(stored, supplied string, allowLegacy bool) bool {
	if stored == "" {
		return false
	}

	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
	}

	if !allowLegacy {
		return false
	}
	legacyWarnOnce.Do(func() {
		logger.Warnf("Legacy password comparison in use; migrate stored credentials to bcrypt and set allow_legacy_hashes: false")
	})

	if isMD5Hex(stored) {
		sum := md5.Sum([]byte(supplied)) // #nosec G401
		digest := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(stored), []byte(digest)) == 1
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// isMD5Hex reports whether s is exactly 32 lowercase hex characters.
func isMD5Hex(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
