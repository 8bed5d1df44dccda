// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package scheduler

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/innkeeper/internal/models"
)

// Job statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	// ErrJobNotFound is returned for unknown or expired job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when a status change would move a
	// job backwards or out of a terminal status.
	ErrInvalidTransition = errors.New("invalid job transition")
)

// Job is one asynchronous execution unit.
type Job struct {
	ID         string              `json:"id"`
	Hash       string              `json:"hash"`
	Status     string              `json:"status"`
	QueuedAt   time.Time           `json:"queued_at"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Error      *models.JobError    `json:"error,omitempty"`
	Result     *models.QueryResult `json:"result,omitempty"`
}

func newJob(hash string, now time.Time) *Job {
	return &Job{
		ID:       uuid.New().String(),
		Hash:     hash,
		Status:   StatusQueued,
		QueuedAt: now.UTC(),
	}
}

// Terminal reports whether the job reached completed or failed.
func (j *Job) Terminal() bool {
	return IsTerminal(j.Status)
}

// IsTerminal reports whether status is completed or failed.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// CanTransition reports whether a job may move from one status to another.
// Only queued→running, queued→failed and running→{completed, failed} exist.
func CanTransition(from, to string) bool {
	switch from {
	case StatusQueued:
		return to == StatusRunning || to == StatusFailed
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// Handle returns the job handle returned to async submitters.
func (j *Job) Handle() *models.JobHandle {
	return &models.JobHandle{JobID: j.ID, Status: j.Status, Hash: j.Hash}
}

// View returns the polling representation of the job.
func (j *Job) View() *models.JobStatus {
	return &models.JobStatus{
		JobID:      j.ID,
		Status:     j.Status,
		Hash:       j.Hash,
		QueuedAt:   j.QueuedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
		Error:      j.Error,
		Result:     j.Result,
	}
}

func (j *Job) clone() *Job {
	c := *j
	return &c
}
