// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package preprocess defines the extended-YAML preprocessor contract
// consumed by the config loader.
//
// An implementation resolves `{{include[:section] from path [if cond]}}`
// directives recursively and substitutes `{{env.VAR}}` against a
// whitelist of variable-name patterns before the YAML is decoded. The
// request path never touches this package.
package preprocess

import (
	"context"
	"fmt"
	"strings"
)

// Preprocessor turns a file into a parsed configuration tree with all
// directives resolved.
type Preprocessor interface {
	// Process reads path, resolves include and env directives, and
	// returns the parsed tree. Implementations must detect circular
	// includes and return a *CircularIncludeError.
	Process(ctx context.Context, path string) (map[string]any, error)
}

// CircularIncludeError reports an include cycle. Chain lists the paths
// in inclusion order, ending with the file that closed the cycle.
type CircularIncludeError struct {
	Chain []string
}

func (e *CircularIncludeError) Error() string {
	return fmt.Sprintf("circular include detected: %s", strings.Join(e.Chain, " -> "))
}

// EvalCondition evaluates an include-directive condition. The grammar
// is `true`, `false`, `env.VAR`, and `!env.VAR`; an env reference is
// truthy when the variable is set and non-empty. lookup abstracts the
// environment for testability.
func EvalCondition(cond string, lookup func(name string) (string, bool)) (bool, error) {
	cond = strings.TrimSpace(cond)
	switch cond {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	negate := false
	if strings.HasPrefix(cond, "!") {
		negate = true
		cond = strings.TrimSpace(cond[1:])
	}
	name, ok := strings.CutPrefix(cond, "env.")
	if !ok || name == "" {
		return false, fmt.Errorf("invalid include condition %q", cond)
	}

	value, set := lookup(name)
	truthy := set && value != ""
	if negate {
		return !truthy, nil
	}
	return truthy, nil
}
