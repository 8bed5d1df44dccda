// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package models

import "time"

// Column describes one result column in output order.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Anomaly marks a metric cell far from its series mean.
type Anomaly struct {
	Row    int     `json:"row"`
	Alias  string  `json:"alias"`
	Value  float64 `json:"value"`
	ZScore float64 `json:"z_score"`
}

// QueryMeta describes how a result was produced.
type QueryMeta struct {
	Hash       string    `json:"hash"`
	RowCount   int       `json:"row_count"`
	DurationMS int64     `json:"duration_ms"`
	Cached     bool      `json:"cached"`
	ExecutedAt time.Time `json:"executed_at"`
	Explain    []string  `json:"explain,omitempty"`
	Anomalies  []Anomaly `json:"anomalies,omitempty"`
}

// QueryResult is the synchronous body of /reports/query and /reports/preview,
// and the body of a completed job.
type QueryResult struct {
	Rows    []map[string]interface{} `json:"rows"`
	Columns []Column                 `json:"columns"`
	SQL     string                   `json:"sql"`
	Meta    QueryMeta                `json:"meta"`
}

// JobHandle is the asynchronous body of /reports/query.
type JobHandle struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	Hash   string `json:"hash"`
}

// QueryResponse is exactly one of a synchronous result or a job handle. Both
// are embedded so the JSON body is flat: {rows, columns, sql, meta} or
// {jobId, status, hash}.
type QueryResponse struct {
	*QueryResult
	*JobHandle
}

// IsAsync reports whether the response is a job handle.
func (r *QueryResponse) IsAsync() bool {
	return r != nil && r.JobHandle != nil
}

// JobError is the payload of a failed job.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JobStatus is the body of GET /reports/query/jobs/{jobId}.
type JobStatus struct {
	JobID      string       `json:"jobId"`
	Status     string       `json:"status"`
	Hash       string       `json:"hash"`
	QueuedAt   time.Time    `json:"queuedAt"`
	StartedAt  *time.Time   `json:"startedAt,omitempty"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
	Error      *JobError    `json:"error,omitempty"`
	Result     *QueryResult `json:"result,omitempty"`
}
