// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

// Package dashboard hydrates dashboard cards: it resolves each card's
// period, batches the card queries into one bulk round trip, waits for
// async jobs and maps result rows into the card's view shape.
package dashboard

import (
	"time"

	"github.com/tomtom215/innkeeper/internal/models"
	"github.com/tomtom215/innkeeper/internal/period"
	"github.com/tomtom215/innkeeper/internal/spec"
)

// Card hydration states.
const (
	StateIdle    = "idle"
	StateLoading = "loading"
	StateSuccess = "success"
	StateError   = "error"
)

// Refresh triggers.
const (
	TriggerManual = "manual"
	TriggerAuto   = "auto"
	TriggerPeriod = "period"
)

// Dashboard is a persisted set of cards sharing a default period.
type Dashboard struct {
	ID          string           `json:"id" validate:"required,max=128"`
	Name        string           `json:"name" validate:"required,max=256"`
	Timezone    string           `json:"timezone,omitempty" validate:"omitempty,timezone"`
	AutoRefresh bool             `json:"autoRefresh"`
	Period      period.Selection `json:"period"`
	Cards       []Card           `json:"cards" validate:"dive"`
}

// Card is one dashboard tile.
type Card struct {
	ID         string            `json:"id" validate:"required,max=128"`
	TemplateID string            `json:"templateId,omitempty"`
	Title      string            `json:"title,omitempty"`
	Query      *spec.QuerySpec   `json:"query,omitempty"`
	DateField  *spec.FieldRef    `json:"dateField,omitempty"`
	Period     *period.Selection `json:"period,omitempty"`
	View       ViewConfig        `json:"viewConfig"`
	Linked     bool              `json:"linked"`
}

// LinkGroup is the period-selector group of a card: cards with the same
// template and date field share period changes while linked. The empty
// string means the card belongs to no group.
func (c *Card) LinkGroup() string {
	if c.TemplateID == "" || c.DateField == nil {
		return ""
	}
	return c.TemplateID + "|" + c.DateField.String()
}

// Location returns the dashboard time zone, UTC when unset or unknown.
func (d *Dashboard) Location() *time.Location {
	if d.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Card returns the card with id.
func (d *Dashboard) Card(id string) (*Card, bool) {
	for i := range d.Cards {
		if d.Cards[i].ID == id {
			return &d.Cards[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of d.
func (d *Dashboard) Clone() *Dashboard {
	c := *d
	c.Cards = make([]Card, len(d.Cards))
	for i, card := range d.Cards {
		if card.Query != nil {
			card.Query = card.Query.Clone()
		}
		if card.DateField != nil {
			f := *card.DateField
			card.DateField = &f
		}
		if card.Period != nil {
			p := *card.Period
			card.Period = &p
		}
		c.Cards[i] = card
	}
	return &c
}

// CardState is the hydration state of one card.
type CardState struct {
	CardID    string        `json:"cardId"`
	Mode      string        `json:"mode"`
	State     string        `json:"state"`
	Warning   string        `json:"warning,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"errorKind,omitempty"`
	Nonce     string        `json:"nonce,omitempty"`
	Period    *period.Range `json:"period,omitempty"`
	JobID     string        `json:"jobId,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`

	Visual    []VisualPoint   `json:"visual,omitempty"`
	Spotlight *SpotlightValue `json:"spotlight,omitempty"`
	Table     *TablePage      `json:"table,omitempty"`

	// result backs preview table paging.
	result *models.QueryResult
}

// Snapshot is the immutable input of one refresh cycle. Every card of the
// cycle is hydrated from the same nonce and resolved periods.
type Snapshot struct {
	Nonce   string
	Now     time.Time
	Periods map[string]period.Range
}

// result is the terminal outcome of one bulk entry after any polling.
type result struct {
	data  *models.QueryResult
	jobID string
	err   error
	kind  string
}
