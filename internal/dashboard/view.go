// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package dashboard

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/innkeeper/internal/spec"
)

// View modes. The set is closed; anything else decodes as ModeLegacy.
const (
	ModeVisual       = "visual"
	ModeSpotlight    = "spotlight"
	ModePreviewTable = "preview_table"
	ModeLegacy       = "legacy"
)

// ViewConfigVersion is the current persisted view config version.
const ViewConfigVersion = 2

// ViewConfig is the tagged union of card view configurations. Exactly the
// member named by Mode is set; legacy configs keep their raw bytes.
type ViewConfig struct {
	Mode    string
	Version int

	Visual       *VisualConfig
	Spotlight    *SpotlightConfig
	PreviewTable *PreviewTableConfig
	Legacy       json.RawMessage
}

// VisualConfig maps rows to chart points.
type VisualConfig struct {
	Chart           string `json:"chart,omitempty" validate:"omitempty,oneof=bar line area pie table"`
	DimensionAlias  string `json:"dimensionAlias,omitempty"`
	MetricAlias     string `json:"metricAlias,omitempty"`
	ComparisonAlias string `json:"comparisonAlias,omitempty"`
}

// SpotlightConfig shows one client-side aggregated metric and its delta.
type SpotlightConfig struct {
	MetricAlias string `json:"metricAlias,omitempty"`
	Aggregation string `json:"aggregation" validate:"required,oneof=sum avg min max count count_distinct"`
	// ComparisonMode issues a comparison-window twin of the card query.
	ComparisonMode  string            `json:"comparisonMode,omitempty" validate:"omitempty,oneof=previous wow mom yoy custom"`
	ComparisonRange *spec.CustomRange `json:"comparisonRange,omitempty"`
	// ComparisonAlias reads the comparison from a column of the primary
	// result instead.
	ComparisonAlias string   `json:"comparisonAlias,omitempty"`
	Target          *float64 `json:"target,omitempty"`
}

// PreviewTableConfig pages raw rows.
type PreviewTableConfig struct {
	PageSize int            `json:"pageSize,omitempty" validate:"gte=0,lte=1000"`
	Columns  []ColumnConfig `json:"columns,omitempty" validate:"dive"`
}

// ColumnConfig is a persisted table column.
type ColumnConfig struct {
	Name  string `json:"name" validate:"required"`
	Label string `json:"label,omitempty"`
}

type viewHeader struct {
	Mode    string `json:"mode"`
	Version int    `json:"version"`
}

// UnmarshalJSON decodes the member named by "mode". Unknown modes, missing
// modes and members that fail to decode become ModeLegacy so the card still
// renders.
func (v *ViewConfig) UnmarshalJSON(data []byte) error {
	*v = ViewConfig{}
	var h viewHeader
	if err := json.Unmarshal(data, &h); err != nil {
		v.Mode = ModeLegacy
		v.Legacy = append(json.RawMessage(nil), data...)
		return nil
	}
	v.Version = h.Version

	var err error
	switch h.Mode {
	case ModeVisual:
		v.Visual = &VisualConfig{}
		err = json.Unmarshal(data, v.Visual)
	case ModeSpotlight:
		v.Spotlight = &SpotlightConfig{}
		err = json.Unmarshal(data, v.Spotlight)
	case ModePreviewTable:
		v.PreviewTable = &PreviewTableConfig{}
		err = json.Unmarshal(data, v.PreviewTable)
	default:
		err = fmt.Errorf("unknown view mode %q", h.Mode)
	}
	if err != nil {
		*v = ViewConfig{Mode: ModeLegacy, Version: h.Version, Legacy: append(json.RawMessage(nil), data...)}
		return nil
	}
	v.Mode = h.Mode
	return nil
}

// MarshalJSON encodes the active member with its mode and version.
func (v ViewConfig) MarshalJSON() ([]byte, error) {
	var member interface{}
	switch v.Mode {
	case ModeVisual:
		member = v.Visual
	case ModeSpotlight:
		member = v.Spotlight
	case ModePreviewTable:
		member = v.PreviewTable
	default:
		if len(v.Legacy) > 0 {
			return v.Legacy, nil
		}
		return json.Marshal(viewHeader{Mode: ModeLegacy, Version: v.Version})
	}
	if member == nil {
		return json.Marshal(viewHeader{Mode: v.Mode, Version: v.Version})
	}

	body, err := json.Marshal(member)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["mode"], _ = json.Marshal(v.Mode)
	version := v.Version
	if version == 0 {
		version = ViewConfigVersion
	}
	fields["version"], _ = json.Marshal(version)
	return json.Marshal(fields)
}

// Resolvable reports whether the config is a current, renderable mode.
func (v ViewConfig) Resolvable() bool {
	switch v.Mode {
	case ModeVisual:
		return v.Visual != nil
	case ModeSpotlight:
		return v.Spotlight != nil
	case ModePreviewTable:
		return v.PreviewTable != nil
	default:
		return false
	}
}
