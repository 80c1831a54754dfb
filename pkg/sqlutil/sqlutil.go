// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlutil provides quote-aware helpers for working with raw SQL
// text: statement splitting for init scripts and comment stripping for
// rendered cache templates.
package sqlutil

import "strings"

// SplitStatements splits a script into individual statements on
// semicolons, respecting single-quoted strings ('' escapes a quote),
// double-quoted identifiers, and dollar-quoted blocks ($tag$...$tag$).
// Backslash is not an escape character in any context. Empty statements
// are dropped.
func SplitStatements(script string) []string {
	var statements []string
	var current strings.Builder

	for i := 0; i < len(script); {
		c := script[i]
		switch c {
		case '\'':
			i = consumeQuoted(script, i, &current, '\'')
		case '"':
			i = consumeQuoted(script, i, &current, '"')
		case '$':
			if tag, ok := dollarTag(script[i:]); ok {
				i = consumeDollarQuoted(script, i, tag, &current)
				continue
			}
			current.WriteByte(c)
			i++
		case ';':
			appendStatement(&statements, &current)
			i++
		default:
			current.WriteByte(c)
			i++
		}
	}
	appendStatement(&statements, &current)
	return statements
}

// consumeQuoted copies a quoted region starting at the opening quote.
// Inside single quotes a doubled quote stays part of the string. An
// unterminated quote runs to the end of the script.
func consumeQuoted(script string, start int, out *strings.Builder, quote byte) int {
	out.WriteByte(script[start])
	i := start + 1
	for i < len(script) {
		c := script[i]
		out.WriteByte(c)
		i++
		if c != quote {
			continue
		}
		// '' inside single quotes is an escaped quote, not a close.
		if quote == '\'' && i < len(script) && script[i] == quote {
			out.WriteByte(script[i])
			i++
			continue
		}
		return i
	}
	return i
}

// dollarTag reports whether s starts a dollar-quote opener and returns the
// full tag including both dollar signs, e.g. "$body$" or "$$". Tag bodies
// are restricted to [A-Za-z0-9_].
func dollarTag(s string) (string, bool) {
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			return s[:i+1], true
		}
		if !isTagChar(c) {
			return "", false
		}
	}
	return "", false
}

func isTagChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// consumeDollarQuoted copies everything from the opening tag through the
// matching closing tag. An unterminated block runs to the end.
func consumeDollarQuoted(script string, start int, tag string, out *strings.Builder) int {
	end := strings.Index(script[start+len(tag):], tag)
	if end < 0 {
		out.WriteString(script[start:])
		return len(script)
	}
	stop := start + len(tag) + end + len(tag)
	out.WriteString(script[start:stop])
	return stop
}

func appendStatement(statements *[]string, current *strings.Builder) {
	stmt := strings.TrimSpace(current.String())
	current.Reset()
	if stmt != "" {
		*statements = append(*statements, stmt)
	}
}

// TrimComments removes -- line comments and /* */ block comments outside
// quoted regions. Quote handling matches SplitStatements.
func TrimComments(sql string) string {
	var out strings.Builder

	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '\'':
			i = consumeQuoted(sql, i, &out, '\'')
		case c == '"':
			i = consumeQuoted(sql, i, &out, '"')
		case c == '$':
			if tag, ok := dollarTag(sql[i:]); ok {
				i = consumeDollarQuoted(sql, i, tag, &out)
				continue
			}
			out.WriteByte(c)
			i++
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return out.String()
			}
			i += 2 + end + 2
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}
