// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package validation

import (
	"strings"
	"testing"
)

type samplePayload struct {
	Models   []string `json:"models" validate:"required,min=1,unique,dive,identifier"`
	Timezone string   `json:"timezone" validate:"omitempty,timezone"`
	Items    []struct {
		Operator string `json:"operator" validate:"required,oneof=eq neq"`
	} `json:"items" validate:"dive"`
	Limit int `json:"limit" validate:"gte=0,lte=100"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	valid := samplePayload{Models: []string{"bookings", "venues"}, Timezone: "Europe/Paris"}

	tests := []struct {
		name     string
		mutate   func(p *samplePayload)
		wantPath string
		wantTag  string
	}{
		{"valid", func(*samplePayload) {}, "", ""},
		{"empty models", func(p *samplePayload) { p.Models = nil }, "models", "required"},
		{"duplicate models", func(p *samplePayload) { p.Models = []string{"a", "a"} }, "models", "unique"},
		{"bad identifier", func(p *samplePayload) { p.Models = []string{"9lives"} }, "models[0]", "identifier"},
		{"bad timezone", func(p *samplePayload) { p.Timezone = "Mars/Olympus" }, "timezone", "timezone"},
		{"bad operator", func(p *samplePayload) {
			p.Items = append(p.Items, struct {
				Operator string `json:"operator" validate:"required,oneof=eq neq"`
			}{Operator: "like"})
		}, "items[0].operator", "oneof"},
		{"limit too large", func(p *samplePayload) { p.Limit = 101 }, "limit", "lte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := valid
			p.Models = append([]string(nil), valid.Models...)
			tt.mutate(&p)

			err := ValidateStruct(&p)
			if tt.wantTag == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			got := err.Errors()[0]
			if got.Path != tt.wantPath || got.Tag != tt.wantTag {
				t.Errorf("got %s/%s, want %s/%s", got.Path, got.Tag, tt.wantPath, tt.wantTag)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&samplePayload{Limit: -1})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %s", apiErr.Code)
	}
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 2 {
		t.Fatalf("expected two field errors, got %v", apiErr.Details)
	}
	if !strings.Contains(apiErr.Message, "models is required") {
		t.Errorf("message = %q", apiErr.Message)
	}
}
