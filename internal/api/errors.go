// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/innkeeper/internal/dashboard"
	"github.com/tomtom215/innkeeper/internal/derived"
	"github.com/tomtom215/innkeeper/internal/logging"
	"github.com/tomtom215/innkeeper/internal/planner"
	"github.com/tomtom215/innkeeper/internal/scheduler"
	"github.com/tomtom215/innkeeper/internal/spec"
	"github.com/tomtom215/innkeeper/internal/validation"
	"github.com/tomtom215/innkeeper/internal/warehouse"
)

// errorMapping is the HTTP rendition of an engine error.
type errorMapping struct {
	status  int
	code    string
	message string
	details interface{}
}

// mapError translates the error taxonomy into status codes and envelope
// codes. Unknown errors become 500 with a generic message.
func mapError(err error) errorMapping {
	var (
		specErrs  spec.ValidationErrors
		specErr   *spec.ValidationError
		shapeErr  *validation.RequestValidationError
		compile   *derived.CompileError
		stale     *derived.StaleError
		planErr   *planner.PlanError
		timeout   *scheduler.TimeoutError
		execution *scheduler.ExecutionError
	)

	switch {
	case errors.As(err, &specErrs):
		return errorMapping{http.StatusBadRequest, ErrCodeValidation, specErrs.Error(), map[string]interface{}{"errors": []*spec.ValidationError(specErrs)}}
	case errors.As(err, &specErr):
		return errorMapping{http.StatusBadRequest, ErrCodeValidation, specErr.Error(), map[string]interface{}{"errors": []*spec.ValidationError{specErr}}}
	case errors.As(err, &shapeErr):
		apiErr := shapeErr.ToAPIError()
		return errorMapping{http.StatusBadRequest, ErrCodeValidation, apiErr.Message, apiErr.Details}
	case errors.Is(err, dashboard.ErrInvalidPeriod):
		return errorMapping{http.StatusBadRequest, ErrCodeValidation, err.Error(), nil}
	case errors.As(err, &compile):
		return errorMapping{http.StatusUnprocessableEntity, ErrCodeCompile, compile.Error(), fieldDetails(compile.FieldID)}
	case errors.As(err, &planErr):
		return errorMapping{http.StatusUnprocessableEntity, ErrCodePlan, planErr.Error(), nil}
	case errors.As(err, &stale):
		return errorMapping{http.StatusConflict, ErrCodeStaleDerivedField, stale.Error(), fieldDetails(stale.FieldID)}
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return errorMapping{http.StatusGatewayTimeout, ErrCodeTimeout, err.Error(), nil}
	case errors.Is(err, scheduler.ErrQueueFull), errors.Is(err, scheduler.ErrRateLimited):
		return errorMapping{http.StatusTooManyRequests, ErrCodeTooManyRequests, err.Error(), nil}
	case errors.As(err, &execution), errors.Is(err, warehouse.ErrUnavailable):
		return errorMapping{http.StatusBadGateway, ErrCodeExecution, err.Error(), nil}
	case errors.Is(err, scheduler.ErrJobNotFound),
		errors.Is(err, derived.ErrNotFound),
		errors.Is(err, dashboard.ErrNotFound):
		return errorMapping{http.StatusNotFound, ErrCodeNotFound, err.Error(), nil}
	case errors.Is(err, derived.ErrExists):
		return errorMapping{http.StatusConflict, ErrCodeConflict, err.Error(), nil}
	case errors.Is(err, dashboard.ErrSuperseded):
		return errorMapping{http.StatusConflict, ErrCodeSuperseded, err.Error(), nil}
	}
	return errorMapping{http.StatusInternalServerError, ErrCodeInternalError, "internal server error", nil}
}

func fieldDetails(fieldID string) interface{} {
	if fieldID == "" {
		return nil
	}
	return map[string]string{"field_id": fieldID}
}

// writeError maps err and writes the envelope. Server-side failures are
// logged at error level, client errors at debug.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	m := mapError(err)
	event := logging.Ctx(r.Context()).Debug()
	if m.status >= http.StatusInternalServerError {
		event = logging.Ctx(r.Context()).Error()
	}
	event.Err(err).Str("code", m.code).Int("status", m.status).Msg("Request failed")

	NewResponseWriter(w, r).ErrorWithDetails(m.status, m.code, m.message, m.details)
}
