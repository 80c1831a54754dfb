// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "https url", input: "https://example.com", expected: true},
		{name: "http url", input: "http://example.com", expected: true},
		{name: "url with path and query", input: "https://example.com/path?param=value", expected: true},
		{name: "url with port", input: "https://example.com:8080", expected: true},
		{name: "empty string", input: "", expected: false},
		{name: "bare hostname", input: "example.com", expected: false},
		{name: "unsupported scheme", input: "ftp://example.com", expected: false},
		{name: "missing host", input: "https://", expected: false},
		{name: "missing host with path", input: "https:///path", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsURL(tt.input), "Input: %s", tt.input)
		})
	}
}

func TestIsLocalhost(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "localhost without port", input: "localhost", expected: true},
		{name: "localhost with port", input: "localhost:8080", expected: true},
		{name: "loopback IPv4 without port", input: "127.0.0.1", expected: true},
		{name: "loopback IPv4 with port", input: "127.0.0.1:8080", expected: true},
		{name: "loopback IPv6 without port", input: "[::1]", expected: true},
		{name: "loopback IPv6 with port", input: "[::1]:8080", expected: true},
		{name: "empty string", input: "", expected: false},
		{name: "public hostname", input: "example.com", expected: false},
		{name: "public hostname with port", input: "example.com:8080", expected: false},
		{name: "public IPv4", input: "8.8.8.8", expected: false},
		{name: "private IPv4", input: "192.168.1.1", expected: false},
		{name: "public IPv6", input: "[2001:db8::1]:8080", expected: false},
		{name: "unvalidated port still matches", input: "localhost:99999", expected: true},
		{name: "non-numeric port still matches", input: "[::1]:abc", expected: true},
		{name: "uppercase is not matched", input: "LOCALHOST", expected: false},
		{name: "trailing space is not matched", input: "localhost ", expected: false},
		{name: "leading space is not matched", input: " 127.0.0.1", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsLocalhost(tt.input), "Input: %s", tt.input)
		})
	}
}
