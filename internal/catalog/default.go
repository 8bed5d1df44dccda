// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package catalog

func fields(pairs ...string) map[string]Field {
	out := make(map[string]Field, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i]] = Field{Type: FieldType(pairs[i+1])}
	}
	return out
}

// Default returns the built-in back-office schema used when no catalog file
// is configured.
func Default() *Catalog {
	c, err := New(
		Model{ID: "venues", RowEstimate: 200, Fields: fields(
			"id", "string", "name", "string", "city", "string", "seats", "number", "opened_at", "timestamp",
		)},
		Model{ID: "bookings", RowEstimate: 2_500_000, Fields: fields(
			"id", "string", "venue_id", "string", "session_id", "string", "guest_count", "number",
			"revenue", "number", "status", "string", "channel", "string", "booked_at", "timestamp",
			"service_date", "timestamp",
		)},
		Model{ID: "sessions", RowEstimate: 40_000, Fields: fields(
			"id", "string", "venue_id", "string", "name", "string", "starts_at", "timestamp", "capacity", "number",
		)},
		Model{ID: "reviews", RowEstimate: 300_000, Fields: fields(
			"id", "string", "venue_id", "string", "booking_id", "string", "rating", "number",
			"source", "string", "created_at", "timestamp",
		)},
		Model{ID: "shifts", RowEstimate: 600_000, Fields: fields(
			"id", "string", "venue_id", "string", "staff_id", "string", "starts_at", "timestamp",
			"hours", "number", "labour_cost", "number",
		)},
		Model{ID: "staff", RowEstimate: 5_000, Fields: fields(
			"id", "string", "name", "string", "role", "string", "active", "boolean",
		)},
		Model{ID: "ingredients", RowEstimate: 20_000, Fields: fields(
			"id", "string", "venue_id", "string", "name", "string", "category", "string",
			"unit_cost", "number", "stock_level", "number", "updated_at", "timestamp",
		)},
	)
	if err != nil {
		panic(err)
	}
	return c
}
