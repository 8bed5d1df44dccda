// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package planner

import "fmt"

// KindPlan is the error kind of *PlanError.
const KindPlan = "plan"

// PlanError reports a valid QuerySpec that cannot be turned into a plan.
type PlanError struct {
	Message string
}

func (e *PlanError) Error() string {
	return "plan: " + e.Message
}

// Kind returns KindPlan.
func (e *PlanError) Kind() string { return KindPlan }

func planErrorf(format string, args ...interface{}) *PlanError {
	return &PlanError{Message: fmt.Sprintf(format, args...)}
}
