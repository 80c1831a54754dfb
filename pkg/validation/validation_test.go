// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapi-dev/flapi/pkg/endpoints"
)

func intField(name string, required bool, min, max int) endpoints.RequestFieldConfig {
	return endpoints.RequestFieldConfig{
		FieldName: name,
		Required:  required,
		Validators: []endpoints.ValidatorConfig{
			{Type: endpoints.ValidatorInt, Min: min, Max: max},
		},
	}
}

func TestValidateRequestIntBounds(t *testing.T) {
	t.Parallel()

	fields := []endpoints.RequestFieldConfig{intField("id", true, 1, 1000000)}

	tests := []struct {
		name   string
		value  string
		errMsg string
	}{
		{"in range", "42", ""},
		{"at lower bound", "1", ""},
		{"at upper bound", "1000000", ""},
		{"below minimum", "-1", MsgIntBelowMin},
		{"zero below minimum", "0", MsgIntBelowMin},
		{"above maximum", "1000001", MsgIntAboveMax},
		{"not an integer", "abc", MsgNotAnInteger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			errs := ValidateRequest(fields, map[string]string{"id": tt.value})
			if tt.errMsg == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Equal(t, "id", errs[0].FieldName)
			assert.Equal(t, tt.errMsg, errs[0].Message)
		})
	}
}

func TestValidateRequestMissingRequired(t *testing.T) {
	t.Parallel()

	fields := []endpoints.RequestFieldConfig{
		intField("id", true, 1, 100),
		intField("age", false, 1, 100),
	}

	errs := ValidateRequest(fields, map[string]string{})
	require.Len(t, errs, 1, "optional missing field contributes nothing")
	assert.Equal(t, FieldError{"id", MsgMissingRequired}, errs[0])
}

func TestValidateRequestStringRules(t *testing.T) {
	t.Parallel()

	fields := []endpoints.RequestFieldConfig{{
		FieldName: "code",
		Validators: []endpoints.ValidatorConfig{
			{Type: endpoints.ValidatorString, Min: 2, Max: 4, Regex: `[A-Z]+`},
		},
	}}

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"valid", "ABC", nil},
		{"too short", "A", []string{MsgStringTooShort}},
		{"too long and pattern", "abcdef", []string{MsgStringTooLong, MsgStringPattern}},
		{"partial match rejected", "AB1", []string{MsgStringPattern}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			errs := ValidateRequest(fields, map[string]string{"code": tt.in})
			var got []string
			for _, e := range errs {
				got = append(got, e.Message)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateRequestFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		validator endpoints.ValidatorConfig
		value     string
		errMsg    string
	}{
		{"valid email", endpoints.ValidatorConfig{Type: endpoints.ValidatorEmail}, "a.user+tag@example.co", ""},
		{"invalid email", endpoints.ValidatorConfig{Type: endpoints.ValidatorEmail}, "not-an-email", MsgInvalidEmail},
		{"valid uuid", endpoints.ValidatorConfig{Type: endpoints.ValidatorUUID}, "123e4567-e89b-12d3-a456-426614174000", ""},
		{"invalid uuid", endpoints.ValidatorConfig{Type: endpoints.ValidatorUUID}, "123e4567e89b12d3a456426614174000", MsgInvalidUUID},
		{"valid date", endpoints.ValidatorConfig{Type: endpoints.ValidatorDate}, "2024-02-29", ""},
		{"invalid date", endpoints.ValidatorConfig{Type: endpoints.ValidatorDate}, "2024-13-01", MsgInvalidDate},
		{"date below min", endpoints.ValidatorConfig{Type: endpoints.ValidatorDate, MinDate: "2024-01-01"}, "2023-12-31", MsgDateBeforeMin},
		{"date above max", endpoints.ValidatorConfig{Type: endpoints.ValidatorDate, MaxDate: "2024-01-01"}, "2024-01-02", MsgDateAfterMax},
		{"valid time", endpoints.ValidatorConfig{Type: endpoints.ValidatorTime}, "23:59:59", ""},
		{"invalid time", endpoints.ValidatorConfig{Type: endpoints.ValidatorTime}, "24:00:00", MsgInvalidTime},
		{"time below min", endpoints.ValidatorConfig{Type: endpoints.ValidatorTime, MinTime: "09:00:00"}, "08:59:59", MsgTimeBeforeMin},
		{"time above max", endpoints.ValidatorConfig{Type: endpoints.ValidatorTime, MaxTime: "17:00:00"}, "17:00:01", MsgTimeAfterMax},
		{"enum member", endpoints.ValidatorConfig{Type: endpoints.ValidatorEnum, AllowedValues: []string{"asc", "desc"}}, "asc", ""},
		{"enum non-member", endpoints.ValidatorConfig{Type: endpoints.ValidatorEnum, AllowedValues: []string{"asc", "desc"}}, "sideways", MsgNotInEnum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			off := false
			v := tt.validator
			v.PreventSQLInjection = &off
			fields := []endpoints.RequestFieldConfig{{
				FieldName:  "f",
				Validators: []endpoints.ValidatorConfig{v},
			}}

			errs := ValidateRequest(fields, map[string]string{"f": tt.value})
			if tt.errMsg == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Equal(t, tt.errMsg, errs[0].Message)
		})
	}
}

func TestValidateRequestIdempotent(t *testing.T) {
	t.Parallel()

	fields := []endpoints.RequestFieldConfig{
		intField("id", true, 1, 10),
		{
			FieldName: "q",
			Validators: []endpoints.ValidatorConfig{
				{Type: endpoints.ValidatorString, Min: 3},
			},
		},
	}
	params := map[string]string{"id": "99", "q": "a'; DROP TABLE users"}

	first := ValidateRequest(fields, params)
	second := ValidateRequest(fields, params)
	assert.Equal(t, first, second)
}

func TestUnknownParameters(t *testing.T) {
	t.Parallel()

	fields := []endpoints.RequestFieldConfig{intField("id", true, 0, 0)}
	params := map[string]string{
		"id":     "1",
		"offset": "20",
		"limit":  "10",
		"zzz":    "x",
		"aaa":    "y",
	}

	unknown := UnknownParameters(fields, params)
	assert.Equal(t, []string{"aaa", "zzz"}, unknown, "offset and limit are always permitted")
}
