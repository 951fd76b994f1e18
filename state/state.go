// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

// Package state implements the resumable sync state document: a
// current-stream marker plus per-stream bookmarks. The document is emitted
// as STATE messages and fed back on the next invocation; it must therefore
// keep a stable wire shape.
package state

import (
	"encoding/json"
	"time"

	"github.com/zeebo/errs"

	"github.com/singer-io/tap-zuora/catalog"
)

// Error is the error class for state errors.
var Error = errs.Class("state")

// Bookmark is the per-stream sync state. Replication holds the
// replication-key bookmark under the key's own name, matching the wire
// layout. FileIDs, CurrentWindowEnd and WindowLength are transient and
// cleared on clean completion of the stream.
type Bookmark struct {
	Version          int64
	FileIDs          []string
	CurrentWindowEnd string
	WindowLength     int
	Replication      map[string]string
}

// Value returns the bookmark value stored under the replication key.
func (bookmark *Bookmark) Value(replicationKey string) string {
	return bookmark.Replication[replicationKey]
}

// SetValue stores a bookmark value under the replication key.
func (bookmark *Bookmark) SetValue(replicationKey, value string) {
	if bookmark.Replication == nil {
		bookmark.Replication = make(map[string]string)
	}
	bookmark.Replication[replicationKey] = value
}

// ClearTransient drops the keys that only exist while a stream sync is in
// flight.
func (bookmark *Bookmark) ClearTransient() {
	bookmark.FileIDs = nil
	bookmark.CurrentWindowEnd = ""
	bookmark.WindowLength = 0
}

// MarshalJSON implements json.Marshaler, flattening the replication-key
// values into the object.
func (bookmark *Bookmark) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{})
	if bookmark.Version != 0 {
		flat["version"] = bookmark.Version
	}
	for key, value := range bookmark.Replication {
		flat[key] = value
	}
	if len(bookmark.FileIDs) > 0 {
		flat["file_ids"] = bookmark.FileIDs
	}
	if bookmark.CurrentWindowEnd != "" {
		flat["current_window_end"] = bookmark.CurrentWindowEnd
	}
	if bookmark.WindowLength > 0 {
		flat["window_length"] = bookmark.WindowLength
	}
	return json.Marshal(flat)
}

// UnmarshalJSON implements json.Unmarshaler.
func (bookmark *Bookmark) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return Error.Wrap(err)
	}

	*bookmark = Bookmark{}
	for key, raw := range flat {
		switch key {
		case "version":
			if err := json.Unmarshal(raw, &bookmark.Version); err != nil {
				return Error.Wrap(err)
			}
		case "file_ids":
			// A null file_ids (written by historical versions) reads the
			// same as an absent one.
			if string(raw) == "null" {
				continue
			}
			if err := json.Unmarshal(raw, &bookmark.FileIDs); err != nil {
				return Error.Wrap(err)
			}
		case "current_window_end":
			if err := json.Unmarshal(raw, &bookmark.CurrentWindowEnd); err != nil {
				return Error.Wrap(err)
			}
		case "window_length":
			if err := json.Unmarshal(raw, &bookmark.WindowLength); err != nil {
				return Error.Wrap(err)
			}
		default:
			var value string
			if err := json.Unmarshal(raw, &value); err != nil {
				return Error.Wrap(err)
			}
			bookmark.SetValue(key, value)
		}
	}
	return nil
}

// State is the whole sync state document.
type State struct {
	CurrentStream string
	Bookmarks     map[string]*Bookmark
}

type stateJSON struct {
	CurrentStream *string              `json:"current_stream"`
	Bookmarks     map[string]*Bookmark `json:"bookmarks"`
}

// MarshalJSON implements json.Marshaler. An unset current stream marshals
// as an explicit null.
func (state *State) MarshalJSON() ([]byte, error) {
	encoded := stateJSON{Bookmarks: state.Bookmarks}
	if encoded.Bookmarks == nil {
		encoded.Bookmarks = map[string]*Bookmark{}
	}
	if state.CurrentStream != "" {
		current := state.CurrentStream
		encoded.CurrentStream = &current
	}
	return json.Marshal(encoded)
}

// Get returns the bookmark for a stream, creating it when absent.
func (state *State) Get(stream string) *Bookmark {
	if state.Bookmarks == nil {
		state.Bookmarks = make(map[string]*Bookmark)
	}
	bookmark, ok := state.Bookmarks[stream]
	if !ok {
		bookmark = &Bookmark{}
		state.Bookmarks[stream] = bookmark
	}
	return bookmark
}

// Load parses a state document, migrates the legacy flat layout, and
// initialises bookmarks for every selected stream. startDate seeds
// replication-key bookmarks that have no value yet; now labels new
// versions.
func Load(data []byte, cat *catalog.Catalog, startDate string, now func() time.Time) (*State, error) {
	var raw map[string]json.RawMessage
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, Error.Wrap(err)
		}
	}

	state := &State{Bookmarks: make(map[string]*Bookmark)}

	if rawCurrent, ok := raw["current_stream"]; ok {
		var current *string
		if err := json.Unmarshal(rawCurrent, &current); err != nil {
			return nil, Error.Wrap(err)
		}
		if current != nil {
			state.CurrentStream = *current
		}
	}

	if rawBookmarks, ok := raw["bookmarks"]; ok {
		if err := json.Unmarshal(rawBookmarks, &state.Bookmarks); err != nil {
			return nil, Error.Wrap(err)
		}
	} else if len(raw) > 0 {
		// Legacy layout: top-level stream name to bookmark date. Only
		// selected incremental streams are carried over.
		for _, stream := range cat.Streams {
			rawValue, ok := raw[stream.TapStreamID]
			if !ok || !stream.IsSelected() || stream.ReplicationKey == "" {
				continue
			}
			var value string
			if err := json.Unmarshal(rawValue, &value); err != nil {
				return nil, Error.Wrap(err)
			}
			state.Get(stream.TapStreamID).SetValue(stream.ReplicationKey, value)
		}
	}

	for _, stream := range cat.Streams {
		if !stream.IsSelected() {
			if state.CurrentStream == stream.TapStreamID {
				state.CurrentStream = ""
			}
			continue
		}

		bookmark := state.Get(stream.TapStreamID)
		if bookmark.Version == 0 {
			bookmark.Version = now().UTC().Unix()
		}
		if stream.ReplicationKey != "" && bookmark.Value(stream.ReplicationKey) == "" {
			bookmark.SetValue(stream.ReplicationKey, startDate)
		}
	}

	return state, nil
}
