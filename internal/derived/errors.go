// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package derived

import (
	"errors"
	"fmt"
)

// Error kinds.
const (
	KindCompile = "compile"
	KindStale   = "stale_derived_field"
)

// ErrNotFound is returned by stores for unknown ids.
var ErrNotFound = errors.New("derived field not found")

// CompileError means an expression cannot be resolved against a join graph.
type CompileError struct {
	FieldID string
	Message string
}

func (e *CompileError) Error() string {
	if e.FieldID == "" {
		return "compile: " + e.Message
	}
	return fmt.Sprintf("compile %s: %s", e.FieldID, e.Message)
}

// Kind returns KindCompile.
func (e *CompileError) Kind() string { return KindCompile }

// StaleError means a stored definition was compiled against a different join
// shape than the one in use.
type StaleError struct {
	FieldID string
	Want    string
	Got     string
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("derived field %s is stale: compiled for graph %s, query graph is %s", e.FieldID, short(e.Want), short(e.Got))
}

// Kind returns KindStale.
func (e *StaleError) Kind() string { return KindStale }

func short(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
