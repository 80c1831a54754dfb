// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package validation runs endpoint request-field validators over incoming
// parameters and applies the SQL-injection heuristics.
package validation

import (
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/flapi-dev/flapi/pkg/endpoints"
)

// FieldError is one validation failure, attributed to a field.
type FieldError struct {
	FieldName string `json:"field_name"`
	Message   string `json:"error_message"`
}

// Validation messages. Clients match on these strings, so they are part of
// the API surface.
const (
	MsgMissingRequired  = "Missing required field"
	MsgStringTooShort   = "String is shorter than the minimum allowed length"
	MsgStringTooLong    = "String is longer than the maximum allowed length"
	MsgStringPattern    = "String does not match the required pattern"
	MsgNotAnInteger     = "Value is not a valid integer"
	MsgIntBelowMin      = "Integer is less than the minimum allowed value"
	MsgIntAboveMax      = "Integer is greater than the maximum allowed value"
	MsgInvalidEmail     = "Invalid email format"
	MsgInvalidUUID      = "Invalid UUID format"
	MsgInvalidDate      = "Invalid date format, expected YYYY-MM-DD"
	MsgDateBeforeMin    = "Date is before the minimum allowed date"
	MsgDateAfterMax     = "Date is after the maximum allowed date"
	MsgInvalidTime      = "Invalid time format, expected HH:MM:SS"
	MsgTimeBeforeMin    = "Time is before the minimum allowed time"
	MsgTimeAfterMax     = "Time is after the maximum allowed time"
	MsgNotInEnum        = "Value is not in the list of allowed values"
	MsgSQLInjection     = "Potential SQL injection detected"
	MsgUnknownParameter = "Unknown parameter"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

var (
	emailRegex = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	uuidRegex  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

// ValidateRequest runs every field's validators against params and returns
// the accumulated errors in field order. A missing required field
// contributes exactly one error and suppresses the field's validators.
// Fields absent from params and not required are skipped.
func ValidateRequest(fields []endpoints.RequestFieldConfig, params map[string]string) []FieldError {
	var errs []FieldError

	for i := range fields {
		field := &fields[i]
		value, present := params[field.FieldName]
		if !present {
			if field.Required {
				errs = append(errs, FieldError{field.FieldName, MsgMissingRequired})
			}
			continue
		}

		injectionCheck := false
		for j := range field.Validators {
			v := &field.Validators[j]
			if v.SQLInjectionCheckEnabled() {
				injectionCheck = true
			}
			errs = append(errs, runValidator(field.FieldName, v, value)...)
		}

		// The injection check runs once per field, after the type
		// validators, whenever at least one validator asks for it.
		if injectionCheck && ContainsSQLInjection(value) {
			errs = append(errs, FieldError{field.FieldName, MsgSQLInjection})
		}
	}

	return errs
}

// UnknownParameters returns the parameter names not declared by any field.
// offset and limit are pagination controls and always permitted.
func UnknownParameters(fields []endpoints.RequestFieldConfig, params map[string]string) []string {
	declared := make(map[string]struct{}, len(fields))
	for i := range fields {
		declared[fields[i].FieldName] = struct{}{}
	}

	var unknown []string
	for name := range params {
		if name == "offset" || name == "limit" {
			continue
		}
		if _, ok := declared[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func runValidator(fieldName string, v *endpoints.ValidatorConfig, value string) []FieldError {
	var errs []FieldError
	add := func(msg string) {
		errs = append(errs, FieldError{fieldName, msg})
	}

	switch v.Type {
	case endpoints.ValidatorString:
		if v.Min > 0 && len(value) < v.Min {
			add(MsgStringTooShort)
		}
		if v.Max > 0 && len(value) > v.Max {
			add(MsgStringTooLong)
		}
		if v.Regex != "" {
			re, err := fullMatchRegex(v.Regex)
			if err == nil && !re.MatchString(value) {
				add(MsgStringPattern)
			}
		}

	case endpoints.ValidatorInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			add(MsgNotAnInteger)
			break
		}
		if v.Min != 0 || v.Max != 0 {
			if n < int64(v.Min) {
				add(MsgIntBelowMin)
			}
			if n > int64(v.Max) {
				add(MsgIntAboveMax)
			}
		}

	case endpoints.ValidatorEmail:
		if !emailRegex.MatchString(value) {
			add(MsgInvalidEmail)
		}

	case endpoints.ValidatorUUID:
		if !uuidRegex.MatchString(value) {
			add(MsgInvalidUUID)
		}

	case endpoints.ValidatorDate:
		parsed, err := time.Parse(dateLayout, value)
		if err != nil {
			add(MsgInvalidDate)
			break
		}
		if v.MinDate != "" {
			if minDate, err := time.Parse(dateLayout, v.MinDate); err == nil && parsed.Before(minDate) {
				add(MsgDateBeforeMin)
			}
		}
		if v.MaxDate != "" {
			if maxDate, err := time.Parse(dateLayout, v.MaxDate); err == nil && parsed.After(maxDate) {
				add(MsgDateAfterMax)
			}
		}

	case endpoints.ValidatorTime:
		parsed, err := time.Parse(timeLayout, value)
		if err != nil {
			add(MsgInvalidTime)
			break
		}
		if v.MinTime != "" {
			if minTime, err := time.Parse(timeLayout, v.MinTime); err == nil && parsed.Before(minTime) {
				add(MsgTimeBeforeMin)
			}
		}
		if v.MaxTime != "" {
			if maxTime, err := time.Parse(timeLayout, v.MaxTime); err == nil && parsed.After(maxTime) {
				add(MsgTimeAfterMax)
			}
		}

	case endpoints.ValidatorEnum:
		found := false
		for _, allowed := range v.AllowedValues {
			if value == allowed {
				found = true
				break
			}
		}
		if !found {
			add(MsgNotInEnum)
		}
	}

	return errs
}

// regexCache holds compiled full-match patterns; validator configs are
// static, so the cache only ever grows to the number of distinct patterns.
var regexCache sync.Map

func fullMatchRegex(pattern string) (*regexp.Regexp, error) {
	if cached, ok := regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

