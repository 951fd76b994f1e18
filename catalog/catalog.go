// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

// Package catalog models the discovered object catalog: per-stream schemas
// with field metadata controlling selection and inclusion. The catalog is
// an external artifact: discovery writes it out, sync reads it back.
package catalog

import (
	"encoding/json"
	"sort"

	"github.com/zeebo/errs"
)

// Error is the error class for catalog errors.
var Error = errs.Class("catalog")

// Inclusion values for field metadata.
const (
	InclusionAutomatic   = "automatic"
	InclusionAvailable   = "available"
	InclusionUnsupported = "unsupported"
)

// Replication methods.
const (
	ReplicationIncremental = "INCREMENTAL"
	ReplicationFullTable   = "FULL_TABLE"
)

// Catalog is the set of discovered streams.
type Catalog struct {
	Streams []*Stream `json:"streams"`
}

// Stream is one object descriptor: immutable after discovery.
type Stream struct {
	TapStreamID       string          `json:"tap_stream_id"`
	Name              string          `json:"stream"`
	KeyProperties     []string        `json:"key_properties"`
	Schema            Schema          `json:"schema"`
	Metadata          []MetadataEntry `json:"metadata"`
	ReplicationKey    string          `json:"replication_key,omitempty"`
	ReplicationMethod string          `json:"replication_method,omitempty"`
}

// Schema is the JSON schema surfaced for a stream.
type Schema struct {
	Type                 string               `json:"type"`
	AdditionalProperties bool                 `json:"additionalProperties"`
	Properties           map[string]*Property `json:"properties"`
}

// Property is one field's JSON schema. Type marshals as a bare string when
// there is a single type and as an array when the field is nullable.
type Property struct {
	Types  []string
	Format string
}

type propertyJSON struct {
	Type   json.RawMessage `json:"type"`
	Format string          `json:"format,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p *Property) MarshalJSON() ([]byte, error) {
	var typ interface{} = p.Types
	if len(p.Types) == 1 {
		typ = p.Types[0]
	}
	raw, err := json.Marshal(typ)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return json.Marshal(propertyJSON{Type: raw, Format: p.Format})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Property) UnmarshalJSON(data []byte) error {
	var decoded propertyJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return Error.Wrap(err)
	}
	p.Format = decoded.Format
	p.Types = nil
	if len(decoded.Type) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(decoded.Type, &single); err == nil {
		p.Types = []string{single}
		return nil
	}
	return Error.Wrap(json.Unmarshal(decoded.Type, &p.Types))
}

// Nullable reports whether the property admits null.
func (p *Property) Nullable() bool {
	for _, t := range p.Types {
		if t == "null" {
			return true
		}
	}
	return false
}

// MetadataEntry is one Singer metadata breadcrumb.
type MetadataEntry struct {
	Breadcrumb []string               `json:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, Error.Wrap(err)
	}
	return &cat, nil
}

// GetStream returns the stream with the given tap_stream_id, or nil.
func (cat *Catalog) GetStream(name string) *Stream {
	for _, stream := range cat.Streams {
		if stream.TapStreamID == name {
			return stream
		}
	}
	return nil
}

func breadcrumbEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// GetMetadata returns the metadata value at the breadcrumb, or nil.
func (stream *Stream) GetMetadata(breadcrumb []string, key string) interface{} {
	for _, entry := range stream.Metadata {
		if breadcrumbEqual(entry.Breadcrumb, breadcrumb) {
			return entry.Metadata[key]
		}
	}
	return nil
}

// WriteMetadata sets the metadata value at the breadcrumb, creating the
// entry when it does not exist yet.
func (stream *Stream) WriteMetadata(breadcrumb []string, key string, value interface{}) {
	for _, entry := range stream.Metadata {
		if breadcrumbEqual(entry.Breadcrumb, breadcrumb) {
			entry.Metadata[key] = value
			return
		}
	}
	stream.Metadata = append(stream.Metadata, MetadataEntry{
		Breadcrumb: breadcrumb,
		Metadata:   map[string]interface{}{key: value},
	})
}

func metadataBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func metadataString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// FieldInclusion returns the inclusion metadata of a field.
func (stream *Stream) FieldInclusion(field string) string {
	return metadataString(stream.GetMetadata([]string{"properties", field}, "inclusion"))
}

// FieldSelected reports whether a field was selected in the catalog.
func (stream *Stream) FieldSelected(field string) bool {
	return metadataBool(stream.GetMetadata([]string{"properties", field}, "selected"))
}

// JoinedObject returns the parent object name for a joined field, or "".
func (stream *Stream) JoinedObject(field string) string {
	return metadataString(stream.GetMetadata([]string{"properties", field}, "tap-zuora.joined_object"))
}

// IsSelected reports whether the stream itself was selected for sync.
func (stream *Stream) IsSelected() bool {
	return metadataBool(stream.GetMetadata([]string{}, "selected"))
}

// SelectedFields returns the projected field list: selected or automatic,
// never unsupported, with Deleted stripped since it is produced by the
// deleted-column declaration rather than the query. The result is sorted
// for stable queries across runs.
func (stream *Stream) SelectedFields() []string {
	var fields []string
	for name := range stream.Schema.Properties {
		if stream.FieldInclusion(name) == InclusionUnsupported {
			continue
		}
		if name == "Deleted" {
			continue
		}
		if stream.FieldSelected(name) || stream.FieldInclusion(name) == InclusionAutomatic {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

// QueryFields maps selected field names to their ZOQL spelling: joined
// fields regain the dot between parent object and column.
func (stream *Stream) QueryFields(fields []string) []string {
	queryFields := make([]string, 0, len(fields))
	for _, field := range fields {
		if parent := stream.JoinedObject(field); parent != "" {
			queryFields = append(queryFields, parent+"."+field[len(parent):])
		} else {
			queryFields = append(queryFields, field)
		}
	}
	return queryFields
}

// DeletedSelected reports whether the optional Deleted column exists in
// the schema and was selected.
func (stream *Stream) DeletedSelected() bool {
	_, ok := stream.Schema.Properties["Deleted"]
	return ok && stream.FieldSelected("Deleted")
}

// FieldType returns the declared tap type for a field ("" when the field
// is not part of the schema). Date and datetime fields surface as strings
// with a date-time format.
func (stream *Stream) FieldType(field string) string {
	prop, ok := stream.Schema.Properties[field]
	if !ok {
		return ""
	}
	for _, t := range prop.Types {
		if t != "null" {
			if t == "string" && prop.Format == "date-time" {
				return "datetime"
			}
			return t
		}
	}
	return ""
}
