// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/flapi-dev/flapi/pkg/errors"
)

// maxDecodeIterations bounds iterative URL-decoding. Three levels catch
// double- and triple-encoded traversal sequences.
const maxDecodeIterations = 3

// PathValidatorOptions configures a PathValidator.
type PathValidatorOptions struct {
	// AllowedSchemes lists permitted URI schemes. Empty means file and https.
	AllowedSchemes []string

	// AllowedPrefixes confines local paths when non-empty.
	AllowedPrefixes []string

	// ResolveRealPaths resolves symlinks on local paths that exist.
	ResolveRealPaths bool
}

// PathValidator rejects traversal attempts and confines file access to
// allowed schemes and prefixes.
type PathValidator struct {
	allowedSchemes  map[string]bool
	allowedPrefixes []string
	resolveReal     bool
}

// NewPathValidator creates a validator from options.
func NewPathValidator(opts PathValidatorOptions) *PathValidator {
	schemes := opts.AllowedSchemes
	if len(schemes) == 0 {
		schemes = []string{"file", "https"}
	}
	allowed := make(map[string]bool, len(schemes))
	for _, s := range schemes {
		allowed[strings.ToLower(s)] = true
	}
	return &PathValidator{
		allowedSchemes:  allowed,
		allowedPrefixes: opts.AllowedPrefixes,
		resolveReal:     opts.ResolveRealPaths,
	}
}

// decode URL-decodes iteratively, stopping when the value is stable, the
// iteration budget runs out, or a malformed escape appears.
func decode(p string) string {
	for i := 0; i < maxDecodeIterations; i++ {
		decoded, err := url.PathUnescape(p)
		if err != nil || decoded == p {
			return p
		}
		p = decoded
	}
	return p
}

// normalize replaces backslashes with forward slashes and collapses //.
func normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

// hasDotDotSegment reports whether .. appears as a complete path segment.
func hasDotDotSegment(p string) bool {
	return p == ".." ||
		strings.HasPrefix(p, "../") ||
		strings.HasSuffix(p, "/..") ||
		strings.Contains(p, "/../")
}

// Validate checks userPath and returns its normalized form. Remote URIs are
// checked against the scheme allow-list; local paths are resolved against
// basePath when relative and confined to the allowed prefixes when any are
// configured.
func (v *PathValidator) Validate(userPath, basePath string) (string, error) {
	decoded := decode(userPath)

	scheme, rest := SplitScheme(decoded)
	if scheme != "" {
		normalized := normalize(rest)
		if hasDotDotSegment(normalized) {
			return "", errors.NewValidationError(fmt.Sprintf("path traversal detected in path: %s", userPath), nil)
		}
		if !v.allowedSchemes[scheme] {
			return "", errors.NewValidationError(fmt.Sprintf("URI scheme %s is not allowed", scheme), nil)
		}
		return scheme + "://" + normalized, nil
	}

	normalized := normalize(decoded)
	if hasDotDotSegment(normalized) {
		return "", errors.NewValidationError(fmt.Sprintf("path traversal detected in path: %s", userPath), nil)
	}

	if !strings.HasPrefix(normalized, "/") {
		if basePath == "" {
			return "", errors.NewValidationError(fmt.Sprintf("relative path requires a base path: %s", userPath), nil)
		}
		normalized = normalize(basePath) + "/" + normalized
	}
	normalized = path.Clean(normalized)

	if v.resolveReal {
		if real, err := filepath.EvalSymlinks(normalized); err == nil {
			normalized = real
		}
	}

	if len(v.allowedPrefixes) > 0 && !v.underAllowedPrefix(normalized) {
		return "", errors.NewValidationError(fmt.Sprintf("path is not under an allowed prefix: %s", userPath), nil)
	}
	return normalized, nil
}

func (v *PathValidator) underAllowedPrefix(p string) bool {
	for _, prefix := range v.allowedPrefixes {
		clean := path.Clean(normalize(prefix))
		if p == clean || strings.HasPrefix(p, clean+"/") {
			return true
		}
	}
	return false
}
