// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package catalog

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `models:
  bookings:
    table: fact_bookings
    row_estimate: 1200
    fields:
      revenue:
        column: revenue_cents
        type: number
      booked_at:
        type: timestamp
      channel:
        column: sales_channel
  venues:
    fields:
      id:
        type: string
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := c.ModelIDs(); !reflect.DeepEqual(got, []string{"bookings", "venues"}) {
		t.Errorf("ModelIDs = %v", got)
	}
	m, _ := c.Model("bookings")
	if m.Table != "fact_bookings" || m.RowEstimate != 1200 {
		t.Errorf("model = %+v", m)
	}
	f, ok := c.Field("bookings", "revenue")
	if !ok || f.Column != "revenue_cents" || f.Type != TypeNumber {
		t.Errorf("revenue = %+v", f)
	}
	if f, _ := c.Field("bookings", "channel"); f.Type != TypeString || f.Column != "sales_channel" {
		t.Errorf("channel defaults = %+v", f)
	}
	if v, _ := c.Model("venues"); v.Table != "venues" {
		t.Errorf("table should default to id, got %q", v.Table)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name string
		doc  string
	}{
		{"no models", "other: 1\n"},
		{"bad type", "models:\n  a:\n    fields:\n      x:\n        type: blob\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.doc), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()

	c := Default()
	if !c.HasField("bookings", "revenue") || !c.HasField("reviews", "rating") {
		t.Error("default catalog missing core fields")
	}
	if c.HasModel("playbacks") {
		t.Error("unexpected model")
	}
	if c.RowEstimate("bookings") == 0 {
		t.Error("bookings should carry a row estimate")
	}
}
