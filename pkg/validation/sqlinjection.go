// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package validation

import (
	"regexp"
	"strings"
)

// sqlKeywordRegex flags reserved SQL keywords as whole words,
// case-insensitively. Substring hits like UPDATED do not match.
var sqlKeywordRegex = regexp.MustCompile(`(?i)\b(?:SELECT|INSERT|UPDATE|DELETE|DROP|TRUNCATE|ALTER|CREATE|TABLE|UNION|EXEC|EXECUTE|SCRIPT|DECLARE|CAST|CONVERT)\b`)

// sqlPatterns are matched as plain substrings against the upper-cased
// value. The list is deliberately aggressive; callers opt out per
// validator with prevent_sql_injection: false.
var sqlPatterns = []string{
	"';",
	"--",
	"/*",
	"*/",
	"XP_",
	"SP_",
	" OR 1=1",
	" OR '1'='1",
	"AND 1=1",
	"1=1",
	"1=2",
}

// proximityTokens flag a single quote appearing within two characters of
// any of them. This heuristic is contextual and can false-positive on
// legitimate values containing apostrophes (e.g. L'OREAL).
var proximityTokens = []string{"OR", "AND", ";", "="}

// ContainsSQLInjection reports whether value trips any of the injection
// heuristics: a reserved keyword as a whole word, a dangerous substring,
// or a single quote near OR/AND/;/=.
func ContainsSQLInjection(value string) bool {
	if sqlKeywordRegex.MatchString(value) {
		return true
	}

	upper := strings.ToUpper(value)
	for _, pattern := range sqlPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}

	return quoteNearToken(upper)
}

// quoteNearToken reports whether any single quote in upper sits within two
// characters of a proximity token occurrence.
func quoteNearToken(upper string) bool {
	for p := 0; p < len(upper); p++ {
		if upper[p] != '\'' {
			continue
		}
		for _, token := range proximityTokens {
			if tokenWithinDistance(upper, token, p, 2) {
				return true
			}
		}
	}
	return false
}

// tokenWithinDistance reports whether token occurs in s with a gap of at
// most maxGap characters between the occurrence and position p.
func tokenWithinDistance(s, token string, p, maxGap int) bool {
	for from := 0; ; {
		idx := strings.Index(s[from:], token)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(token) - 1

		var gap int
		switch {
		case start > p:
			gap = start - p - 1
		case end < p:
			gap = p - end - 1
		default:
			gap = 0
		}
		if gap <= maxGap {
			return true
		}
		from = start + 1
	}
}
