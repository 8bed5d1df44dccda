// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package spec

import "strings"

// Validation error codes.
const (
	CodeInvalidShape            = "invalid_shape"
	CodeUnknownModel            = "unknown_model"
	CodeUnknownField            = "unknown_field"
	CodeModelNotDeclared        = "model_not_declared"
	CodeUnknownMetricAlias      = "unknown_metric_alias"
	CodeSelfJoin                = "self_join"
	CodeDuplicateJoin           = "duplicate_join"
	CodeJoinCycle               = "join_cycle"
	CodeDisconnectedModel       = "disconnected_model"
	CodeIncompleteRange         = "incomplete_range"
	CodeInvalidFilterValue      = "invalid_filter_value"
	CodeWindowWithoutTime       = "window_without_time"
	CodeInvalidWindow           = "invalid_window"
	CodeComparisonWithoutRange  = "comparison_without_range"
	CodeUnknownDerivedField     = "unknown_derived_field"
	CodeDuplicateDerivedField   = "duplicate_derived_field"
	CodeDerivedModelNotDeclared = "derived_model_not_declared"
	CodeDuplicateAlias          = "duplicate_alias"
)

// KindValidation is the error taxonomy kind of ValidationError.
const KindValidation = "validation"

// ValidationError is one failed check against a QuerySpec.
type ValidationError struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// Kind returns KindValidation.
func (e *ValidationError) Kind() string { return KindValidation }

// ValidationErrors is the ordered result of Validate.
type ValidationErrors []*ValidationError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return "invalid query spec: " + strings.Join(msgs, "; ")
}

// Kind returns KindValidation.
func (ve ValidationErrors) Kind() string { return KindValidation }

// Codes returns the error codes in order.
func (ve ValidationErrors) Codes() []string {
	out := make([]string, len(ve))
	for i, e := range ve {
		out[i] = e.Code
	}
	return out
}
