// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestVerifyPasswordBcrypt(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	// bcrypt verifies regardless of the legacy flag.
	assert.True(t, VerifyPassword(string(hash), "s3cret", false))
	assert.True(t, VerifyPassword(string(hash), "s3cret", true))
	assert.False(t, VerifyPassword(string(hash), "wrong", true))
}

func TestVerifyPasswordMD5(t *testing.T) {
	t.Parallel()

	// md5("password")
	const stored = "5f4dcc3b5aa765d61d8327deb882cf99"

	assert.True(t, VerifyPassword(stored, "password", true))
	assert.False(t, VerifyPassword(stored, "Password", true))

	// With legacy disabled the MD5 value never matches, not even as
	// literal text.
	assert.False(t, VerifyPassword(stored, "password", false))
	assert.False(t, VerifyPassword(stored, stored, false))
}

func TestVerifyPasswordPlaintext(t *testing.T) {
	t.Parallel()

	assert.True(t, VerifyPassword("hunter2", "hunter2", true))
	assert.False(t, VerifyPassword("hunter2", "hunter3", true))
	assert.False(t, VerifyPassword("hunter2", "hunter2", false))
	assert.False(t, VerifyPassword("", "", true))
}

func TestIsMD5Hex(t *testing.T) {
	t.Parallel()

	assert.True(t, isMD5Hex("5f4dcc3b5aa765d61d8327deb882cf99"))
	// Uppercase hex is not the legacy format.
	assert.False(t, isMD5Hex("5F4DCC3B5AA765D61D8327DEB882CF99"))
	assert.False(t, isMD5Hex("5f4dcc3b5aa765d61d8327deb882cf9"))
	assert.False(t, isMD5Hex("zf4dcc3b5aa765d61d8327deb882cf99"))
}
