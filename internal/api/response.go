// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/innkeeper/internal/logging"
)

// Successful responses carry the resource itself. Failures use
// ErrorEnvelope:
//
//	{"success": false, "error": {"code": "...", "message": "..."}, "meta": {...}}
type ErrorEnvelope struct {
	Success bool          `json:"success"`
	Error   *ErrorBody    `json:"error,omitempty"`
	Meta    *ResponseMeta `json:"meta,omitempty"`
}

// ErrorBody is the error member of an ErrorEnvelope. Code is one of the
// ErrCode constants.
type ErrorBody struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// ResponseMeta describes the request that failed.
type ResponseMeta struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
}

// Error codes.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeCompile            = "COMPILE_ERROR"
	ErrCodePlan               = "PLAN_ERROR"
	ErrCodeStaleDerivedField  = "STALE_DERIVED_FIELD"
	ErrCodeExecution          = "EXECUTION_ERROR"
	ErrCodeTimeout            = "TIMEOUT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeSuperseded         = "SUPERSEDED"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ResponseWriter writes the body of one request. Create it when the
// handler starts so DurationMs covers the handler's work.
type ResponseWriter struct {
	w       http.ResponseWriter
	r       *http.Request
	started time.Time
}

// NewResponseWriter wraps w for request r.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r, started: time.Now()}
}

// JSON writes v with the given status.
func (rw *ResponseWriter) JSON(status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Type("type", v).Msg("Failed to encode JSON response")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(rw.envelope(ErrCodeInternalError, "internal server error", nil))
	}
	h := rw.w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(status)
	body = append(body, '\n')
	if _, err := rw.w.Write(body); err != nil {
		logging.Ctx(rw.r.Context()).Debug().Err(err).Msg("Client went away before the response was written")
	}
}

func (rw *ResponseWriter) OK(v interface{})      { rw.JSON(http.StatusOK, v) }
func (rw *ResponseWriter) Created(v interface{}) { rw.JSON(http.StatusCreated, v) }
func (rw *ResponseWriter) NoContent()            { rw.w.WriteHeader(http.StatusNoContent) }

// Error writes an ErrorEnvelope without details.
func (rw *ResponseWriter) Error(status int, code, message string) {
	rw.ErrorWithDetails(status, code, message, nil)
}

// ErrorWithDetails writes an ErrorEnvelope.
func (rw *ResponseWriter) ErrorWithDetails(status int, code, message string, details interface{}) {
	rw.JSON(status, rw.envelope(code, message, details))
}

func (rw *ResponseWriter) envelope(code, message string, details interface{}) ErrorEnvelope {
	id := logging.RequestIDFromContext(rw.r.Context())
	return ErrorEnvelope{
		Error: &ErrorBody{Code: code, Message: message, Details: details, RequestID: id},
		Meta: &ResponseMeta{
			RequestID:  id,
			Timestamp:  time.Now().UTC(),
			DurationMs: time.Since(rw.started).Milliseconds(),
		},
	}
}

func (rw *ResponseWriter) BadRequest(message string) {
	rw.Error(http.StatusBadRequest, ErrCodeBadRequest, message)
}

func (rw *ResponseWriter) NotFound(message string) {
	rw.Error(http.StatusNotFound, ErrCodeNotFound, message)
}

func (rw *ResponseWriter) TooManyRequests(message string) {
	rw.Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, message)
}

func (rw *ResponseWriter) ServiceUnavailable(message string) {
	rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}
