// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"net/url"
	"strings"
)

// IsURL reports whether the string is a well-formed http or https URL
// with a non-empty host.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// localhostHosts are the host forms treated as local, with or without a
// trailing ":port". Matching is exact and case sensitive.
var localhostHosts = []string{"localhost", "127.0.0.1", "[::1]"}

// IsLocalhost reports whether the host portion of an address refers to
// the local machine. The port, if present, is not validated.
func IsLocalhost(host string) bool {
	for _, h := range localhostHosts {
		if host == h || strings.HasPrefix(host, h+":") {
			return true
		}
	}
	return false
}
