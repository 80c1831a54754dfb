// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package preprocess

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalCondition(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"FLAPI_ENV": "production",
		"EMPTY":     "",
	}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}

	tests := []struct {
		cond    string
		want    bool
		wantErr bool
	}{
		{cond: "true", want: true},
		{cond: "false", want: false},
		{cond: "env.FLAPI_ENV", want: true},
		{cond: "!env.FLAPI_ENV", want: false},
		{cond: "env.MISSING", want: false},
		{cond: "!env.MISSING", want: true},
		{cond: "env.EMPTY", want: false},
		{cond: " env.FLAPI_ENV ", want: true},
		{cond: "maybe", wantErr: true},
		{cond: "env.", wantErr: true},
		{cond: "!", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			t.Parallel()

			got, err := EvalCondition(tt.cond, lookup)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCircularIncludeError(t *testing.T) {
	t.Parallel()

	err := &CircularIncludeError{Chain: []string{"a.yaml", "b.yaml", "a.yaml"}}
	assert.Contains(t, err.Error(), "a.yaml -> b.yaml -> a.yaml")
}

type mapFiles map[string]string

func (m mapFiles) ReadFile(_ context.Context, path string) ([]byte, error) {
	content, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return []byte(content), nil
}

func TestNoopPreprocessor(t *testing.T) {
	t.Parallel()

	files := mapFiles{
		"flapi.yaml": "project_name: demo\nconnections:\n  main:\n    properties:\n      schema: public\n",
	}
	p := NewNoopPreprocessor(files)

	tree, err := p.Process(context.Background(), "flapi.yaml")
	require.NoError(t, err)
	assert.Equal(t, "demo", tree["project_name"])

	_, err = p.Process(context.Background(), "missing.yaml")
	assert.Error(t, err)

	files["bad.yaml"] = "a: [unclosed"
	_, err = p.Process(context.Background(), "bad.yaml")
	assert.Error(t, err)
}
