// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

// Package singer writes the Singer message stream: SCHEMA, RECORD and
// STATE documents as JSON lines on a single append-only writer. Everything
// downstream treats this as an opaque sink.
package singer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/zeebo/errs"

	"github.com/singer-io/tap-zuora/catalog"
	"github.com/singer-io/tap-zuora/state"
)

// Error is the error class for message writing errors.
var Error = errs.Class("singer")

// timeExtractedFormat matches the reference implementation's microsecond
// timestamps.
const timeExtractedFormat = "2006-01-02T15:04:05.000000Z"

// Writer emits Singer messages. Every message is one complete line.
type Writer struct {
	out io.Writer
	enc *json.Encoder
}

// NewWriter wraps out, normally stdout.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out, enc: json.NewEncoder(out)}
}

type schemaMessage struct {
	Type          string         `json:"type"`
	Stream        string         `json:"stream"`
	Schema        catalog.Schema `json:"schema"`
	KeyProperties []string       `json:"key_properties"`
}

type recordMessage struct {
	Type          string                 `json:"type"`
	Stream        string                 `json:"stream"`
	Record        map[string]interface{} `json:"record"`
	TimeExtracted string                 `json:"time_extracted"`
}

type stateMessage struct {
	Type  string       `json:"type"`
	Value *state.State `json:"value"`
}

// Schema writes a SCHEMA message. It must precede any RECORD of the
// stream.
func (w *Writer) Schema(stream string, schema catalog.Schema, keyProperties []string) error {
	return Error.Wrap(w.enc.Encode(schemaMessage{
		Type:          "SCHEMA",
		Stream:        stream,
		Schema:        schema,
		KeyProperties: keyProperties,
	}))
}

// Record writes a RECORD message with its extraction timestamp.
func (w *Writer) Record(stream string, record map[string]interface{}, extracted time.Time) error {
	return Error.Wrap(w.enc.Encode(recordMessage{
		Type:          "RECORD",
		Stream:        stream,
		Record:        record,
		TimeExtracted: extracted.UTC().Format(timeExtractedFormat),
	}))
}

// State writes a STATE message carrying the whole state document.
func (w *Writer) State(value *state.State) error {
	return Error.Wrap(w.enc.Encode(stateMessage{Type: "STATE", Value: value}))
}
