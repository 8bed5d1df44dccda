// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

// Package catalog holds the declarative schema the reporting engine resolves
// QuerySpec references against. The catalog is loaded from YAML; the engine
// never introspects the warehouse.
//
//	models:
//	  bookings:
//	    table: bookings
//	    row_estimate: 250000
//	    fields:
//	      revenue: {column: revenue_cents, type: number}
//	      booked_at: {type: timestamp}
package catalog

import (
	"fmt"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FieldType is the logical type of a field.
type FieldType string

// Field types.
const (
	TypeString    FieldType = "string"
	TypeNumber    FieldType = "number"
	TypeTimestamp FieldType = "timestamp"
	TypeBoolean   FieldType = "boolean"
)

// Field is one column of a model.
type Field struct {
	ID     string    `koanf:"-"`
	Column string    `koanf:"column"`
	Type   FieldType `koanf:"type"`
}

// Model is a queryable table.
type Model struct {
	ID          string           `koanf:"-"`
	Table       string           `koanf:"table"`
	RowEstimate int64            `koanf:"row_estimate"`
	Fields      map[string]Field `koanf:"fields"`
}

// Catalog is an immutable set of models.
type Catalog struct {
	models map[string]*Model
}

// New builds a catalog, filling table and column names from ids when unset.
func New(models ...Model) (*Catalog, error) {
	c := &Catalog{models: make(map[string]*Model, len(models))}
	for i := range models {
		m := models[i]
		if m.ID == "" {
			return nil, fmt.Errorf("catalog: model %d has no id", i)
		}
		if _, dup := c.models[m.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate model %q", m.ID)
		}
		if m.Table == "" {
			m.Table = m.ID
		}
		fields := make(map[string]Field, len(m.Fields))
		for id, f := range m.Fields {
			f.ID = id
			if f.Column == "" {
				f.Column = id
			}
			switch f.Type {
			case TypeString, TypeNumber, TypeTimestamp, TypeBoolean:
			case "":
				f.Type = TypeString
			default:
				return nil, fmt.Errorf("catalog: field %s.%s has unknown type %q", m.ID, id, f.Type)
			}
			fields[id] = f
		}
		m.Fields = fields
		c.models[m.ID] = &m
	}
	return c, nil
}

// Load reads a catalog YAML file.
func Load(path string) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}

	var doc struct {
		Models map[string]Model `koanf:"models"`
	}
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("unmarshal catalog %s: %w", path, err)
	}
	if len(doc.Models) == 0 {
		return nil, fmt.Errorf("catalog %s declares no models", path)
	}

	models := make([]Model, 0, len(doc.Models))
	for id, m := range doc.Models {
		m.ID = id
		models = append(models, m)
	}
	return New(models...)
}

// Model returns the model with id.
func (c *Catalog) Model(id string) (*Model, bool) {
	m, ok := c.models[id]
	return m, ok
}

// Field returns a field of a model.
func (c *Catalog) Field(modelID, fieldID string) (Field, bool) {
	m, ok := c.models[modelID]
	if !ok {
		return Field{}, false
	}
	f, ok := m.Fields[fieldID]
	return f, ok
}

// HasModel reports whether the model exists.
func (c *Catalog) HasModel(modelID string) bool {
	_, ok := c.models[modelID]
	return ok
}

// HasField reports whether the field exists.
func (c *Catalog) HasField(modelID, fieldID string) bool {
	_, ok := c.Field(modelID, fieldID)
	return ok
}

// RowEstimate returns the approximate row count of a model, 0 if unknown.
func (c *Catalog) RowEstimate(modelID string) int64 {
	if m, ok := c.models[modelID]; ok {
		return m.RowEstimate
	}
	return 0
}

// ModelIDs returns every model id, sorted.
func (c *Catalog) ModelIDs() []string {
	ids := make([]string, 0, len(c.models))
	for id := range c.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
