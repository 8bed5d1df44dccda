// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

// Package events carries job lifecycle events between the execution
// scheduler and in-process consumers over a Watermill Pub/Sub.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// SchemaVersion is the current JobEvent schema version.
const SchemaVersion = 1

// TopicJobs is the topic every job lifecycle event is published on.
const TopicJobs = "reports.jobs"

// Event types, one per job status reached.
const (
	TypeJobQueued    = "job.queued"
	TypeJobRunning   = "job.running"
	TypeJobCompleted = "job.completed"
	TypeJobFailed    = "job.failed"
)

// ErrInvalidEvent is returned for events missing their identity.
var ErrInvalidEvent = errors.New("invalid job event")

// JobEvent is one job status transition.
type JobEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	JobID         string    `json:"job_id"`
	Hash          string    `json:"hash"`
	From          string    `json:"from,omitempty"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	DurationMS    int64     `json:"duration_ms,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// NewJobEvent builds the event for a job reaching status.
func NewJobEvent(jobID, hash, from, status string, at time.Time) *JobEvent {
	return &JobEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		Type:          TypeFor(status),
		JobID:         jobID,
		Hash:          hash,
		From:          from,
		Status:        status,
		Timestamp:     at.UTC(),
	}
}

// TypeFor maps a job status to its event type.
func TypeFor(status string) string {
	return "job." + status
}

// Validate checks the fields every consumer relies on.
func (e *JobEvent) Validate() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("%w: missing event_id", ErrInvalidEvent)
	case e.JobID == "":
		return fmt.Errorf("%w: missing job_id", ErrInvalidEvent)
	case e.Status == "":
		return fmt.Errorf("%w: missing status", ErrInvalidEvent)
	}
	return nil
}

// SerializeEvent encodes an event for the wire.
func SerializeEvent(e *JobEvent) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// DeserializeEvent decodes an event from the wire. Events without a schema
// version are treated as version 1.
func DeserializeEvent(data []byte) (*JobEvent, error) {
	var e JobEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal job event: %w", err)
	}
	if e.SchemaVersion == 0 {
		e.SchemaVersion = SchemaVersion
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
