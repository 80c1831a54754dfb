// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package query turns engine result sets into the JSON value model served
// by the REST and MCP surfaces.
package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Converter maps a driver value of one engine column type to a JSON value.
type Converter func(value any) (any, error)

// Registry maps normalized engine column types to converters. The zero
// registry falls back to family-based conversion for everything.
type Registry struct {
	mu         sync.RWMutex
	converters map[string]Converter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{converters: make(map[string]Converter)}
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r := NewRegistry()
	registerDefaults(r)
	return r
})

// DefaultRegistry returns the process-wide registry with the standard
// converters installed.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// Register installs a converter for a column type, replacing any previous
// one. The type name is normalized the same way lookups are.
func (r *Registry) Register(databaseType string, conv Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converters[normalizeType(databaseType)] = conv
}

// Convert maps one driver value to its JSON form. NULL is always JSON
// null. Types without a registered converter go through family-based
// conversion, then fall back to stringification.
func (r *Registry) Convert(databaseType string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	normalized := normalizeType(databaseType)

	r.mu.RLock()
	conv, ok := r.converters[normalized]
	r.mu.RUnlock()
	if ok {
		return conv(value)
	}
	return convertByFamily(normalized, value)
}

// normalizeType folds a declared column type to its lookup key:
// "varchar(255)" becomes "VARCHAR".
func normalizeType(databaseType string) string {
	t := strings.ToUpper(strings.TrimSpace(databaseType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

func registerDefaults(r *Registry) {
	for _, t := range []string{
		"TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT", "INT2", "INT4", "INT8",
	} {
		r.Register(t, convertInteger)
	}
	for _, t := range []string{"REAL", "FLOAT", "DOUBLE", "DOUBLE PRECISION"} {
		r.Register(t, convertFloat)
	}
	for _, t := range []string{"BOOLEAN", "BOOL"} {
		r.Register(t, convertBoolean)
	}
	for _, t := range []string{"VARCHAR", "CHAR", "TEXT", "STRING", "CLOB"} {
		r.Register(t, convertString)
	}
}

func convertInteger(value any) (any, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, nil
		}
		return v, nil
	default:
		return value, nil
	}
}

func convertFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, nil
		}
		return v, nil
	default:
		return value, nil
	}
}

func convertBoolean(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b, nil
		}
		return v, nil
	default:
		return value, nil
	}
}

func convertString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return fmt.Sprintf("%v", value), nil
	}
}

// convertByFamily handles the complex types: temporal values become
// ISO-8601, decimals become doubles, structured types become parsed JSON,
// and blob-like types become strings. Anything else passes through if the
// driver value is already JSON-representable, otherwise it is stringified.
func convertByFamily(normalized string, value any) (any, error) {
	switch {
	case isTemporalType(normalized):
		return convertTemporal(normalized, value)
	case normalized == "DECIMAL" || normalized == "NUMERIC":
		return convertFloat(value)
	case normalized == "BLOB" || normalized == "UUID" || normalized == "BIT" || normalized == "ENUM":
		return convertString(value)
	case isStructuredType(normalized):
		return convertStructured(value)
	}

	switch v := value.(type) {
	case int64, float64, string, bool:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return fmt.Sprintf("%v", value), nil
	}
}

func isTemporalType(normalized string) bool {
	switch normalized {
	case "DATE", "TIME", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ",
		"TIMESTAMP WITH TIME ZONE", "INTERVAL":
		return true
	}
	return false
}

func isStructuredType(normalized string) bool {
	switch normalized {
	case "JSON", "JSONB", "LIST", "ARRAY", "STRUCT", "MAP":
		return true
	}
	return false
}

// convertTemporal renders temporal values as ISO-8601. Integer and float
// values are unix seconds; the common space-separated datetime form is
// reshaped, everything else is passed through as stored.
func convertTemporal(normalized string, value any) (any, error) {
	switch v := value.(type) {
	case int64:
		return time.Unix(v, 0).UTC().Format(time.RFC3339), nil
	case float64:
		sec := int64(v)
		nsec := int64((v - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC().Format(time.RFC3339), nil
	case string:
		if normalized == "DATE" || normalized == "TIME" || normalized == "INTERVAL" {
			return v, nil
		}
		if t, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			return t.UTC().Format(time.RFC3339), nil
		}
		return v, nil
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	default:
		return fmt.Sprintf("%v", value), nil
	}
}

// convertStructured parses JSON text emitted by the engine's JSON
// functions so lists become arrays and structs become objects.
func convertStructured(value any) (any, error) {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return value, nil
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return string(raw), nil
	}
	return parsed, nil
}
