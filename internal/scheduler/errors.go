// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy kinds.
const (
	KindExecution = "execution"
	KindTimeout   = "timeout"
)

var (
	// ErrQueueFull is returned when the async queue has no free slot.
	ErrQueueFull = errors.New("job queue full")
	// ErrRateLimited is returned when async submissions exceed the
	// admission rate.
	ErrRateLimited = errors.New("job submission rate exceeded")
)

// ExecutionError is a server-side failure while running a plan, either
// synchronously or inside a job.
type ExecutionError struct {
	JobID   string
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("execution failed (job %s): %s", e.JobID, e.Message)
	}
	return "execution failed: " + e.Message
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Kind returns the taxonomy kind.
func (e *ExecutionError) Kind() string { return KindExecution }

// TimeoutError reports a wait that gave up. ClientSide distinguishes a
// caller that stopped polling from the server-side synchronous deadline;
// neither means the work itself failed.
type TimeoutError struct {
	Op         string
	After      time.Duration
	ClientSide bool
}

func (e *TimeoutError) Error() string {
	side := "server"
	if e.ClientSide {
		side = "client"
	}
	return fmt.Sprintf("%s timed out after %s (%s)", e.Op, e.After, side)
}

// Kind returns the taxonomy kind.
func (e *TimeoutError) Kind() string { return KindTimeout }

func newExecutionError(jobID string, err error) *ExecutionError {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee
	}
	return &ExecutionError{JobID: jobID, Message: err.Error(), Err: err}
}
