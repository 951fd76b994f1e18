// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package state_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/singer-io/tap-zuora/catalog"
	"github.com/singer-io/tap-zuora/state"
)

func fixedNow() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func testCatalog(selected ...string) *catalog.Catalog {
	cat := &catalog.Catalog{}
	for _, name := range selected {
		stream := &catalog.Stream{
			TapStreamID:    name,
			Name:           name,
			ReplicationKey: "UpdatedDate",
		}
		stream.WriteMetadata([]string{}, "selected", true)
		cat.Streams = append(cat.Streams, stream)
	}
	return cat
}

func TestLoadEmpty(t *testing.T) {
	st, err := state.Load(nil, testCatalog("Account"), "2020-01-01T00:00:00Z", fixedNow)
	require.NoError(t, err)

	require.Equal(t, "", st.CurrentStream)
	bookmark := st.Get("Account")
	require.Equal(t, fixedNow().Unix(), bookmark.Version)
	require.Equal(t, "2020-01-01T00:00:00Z", bookmark.Value("UpdatedDate"))
}

func TestLoadExisting(t *testing.T) {
	data := []byte(`{
		"current_stream": "Account",
		"bookmarks": {
			"Account": {
				"version": 1500000000,
				"UpdatedDate": "2023-06-01T00:00:00Z",
				"file_ids": ["f1", "f2"],
				"current_window_end": "2023-07-01T00:00:00Z",
				"window_length": 43200
			}
		}
	}`)

	st, err := state.Load(data, testCatalog("Account"), "2020-01-01T00:00:00Z", fixedNow)
	require.NoError(t, err)

	require.Equal(t, "Account", st.CurrentStream)
	bookmark := st.Get("Account")
	require.Equal(t, int64(1500000000), bookmark.Version)
	require.Equal(t, "2023-06-01T00:00:00Z", bookmark.Value("UpdatedDate"))
	require.Equal(t, []string{"f1", "f2"}, bookmark.FileIDs)
	require.Equal(t, "2023-07-01T00:00:00Z", bookmark.CurrentWindowEnd)
	require.Equal(t, 43200, bookmark.WindowLength)
}

func TestLoadLegacyLayout(t *testing.T) {
	// The historical layout was a flat map of stream name to bookmark.
	data := []byte(`{
		"Account": "2023-06-01T00:00:00Z",
		"Refund": "2023-05-01T00:00:00Z"
	}`)

	// Refund is not in the catalog, so its entry is dropped.
	st, err := state.Load(data, testCatalog("Account"), "2020-01-01T00:00:00Z", fixedNow)
	require.NoError(t, err)

	bookmark := st.Get("Account")
	require.Equal(t, "2023-06-01T00:00:00Z", bookmark.Value("UpdatedDate"))
	require.Equal(t, fixedNow().Unix(), bookmark.Version)

	_, ok := st.Bookmarks["Refund"]
	require.False(t, ok)
}

func TestLoadNullFileIDs(t *testing.T) {
	data := []byte(`{"bookmarks": {"Account": {"file_ids": null, "UpdatedDate": "2023-06-01T00:00:00Z"}}}`)

	st, err := state.Load(data, testCatalog("Account"), "2020-01-01T00:00:00Z", fixedNow)
	require.NoError(t, err)
	require.Nil(t, st.Get("Account").FileIDs)
}

func TestLoadClearsUnselectedCurrentStream(t *testing.T) {
	data := []byte(`{"current_stream": "Refund", "bookmarks": {}}`)

	st, err := state.Load(data, testCatalog("Account"), "2020-01-01T00:00:00Z", fixedNow)
	require.NoError(t, err)
	require.Equal(t, "", st.CurrentStream)
}

func TestLoadKeepsExistingBookmarkOverStartDate(t *testing.T) {
	data := []byte(`{"bookmarks": {"Account": {"version": 7, "UpdatedDate": "2023-06-01T00:00:00Z"}}}`)

	st, err := state.Load(data, testCatalog("Account"), "2020-01-01T00:00:00Z", fixedNow)
	require.NoError(t, err)

	bookmark := st.Get("Account")
	require.Equal(t, int64(7), bookmark.Version)
	require.Equal(t, "2023-06-01T00:00:00Z", bookmark.Value("UpdatedDate"))
}

func TestStateMarshal(t *testing.T) {
	st := &state.State{}
	bookmark := st.Get("Account")
	bookmark.Version = 42
	bookmark.SetValue("UpdatedDate", "2023-06-01T00:00:00Z")
	bookmark.FileIDs = []string{"f1"}
	bookmark.CurrentWindowEnd = "2023-07-01T00:00:00Z"

	data, err := json.Marshal(st)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"current_stream": null,
		"bookmarks": {
			"Account": {
				"version": 42,
				"UpdatedDate": "2023-06-01T00:00:00Z",
				"file_ids": ["f1"],
				"current_window_end": "2023-07-01T00:00:00Z"
			}
		}
	}`, string(data))

	st.CurrentStream = "Account"
	bookmark.ClearTransient()
	data, err = json.Marshal(st)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"current_stream": "Account",
		"bookmarks": {
			"Account": {"version": 42, "UpdatedDate": "2023-06-01T00:00:00Z"}
		}
	}`, string(data))
}

func TestStateMarshalEmpty(t *testing.T) {
	data, err := json.Marshal(&state.State{})
	require.NoError(t, err)
	require.JSONEq(t, `{"current_stream": null, "bookmarks": {}}`, string(data))
}

func TestBookmarkRoundTrip(t *testing.T) {
	bookmark := &state.Bookmark{
		Version:          123,
		FileIDs:          []string{"f1", "f2"},
		CurrentWindowEnd: "2023-07-01T00:00:00Z",
		WindowLength:     900,
	}
	bookmark.SetValue("TransactionDate", "2023-06-15T00:00:00Z")

	data, err := json.Marshal(bookmark)
	require.NoError(t, err)

	var decoded state.Bookmark
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, bookmark.Version, decoded.Version)
	require.Equal(t, bookmark.FileIDs, decoded.FileIDs)
	require.Equal(t, bookmark.CurrentWindowEnd, decoded.CurrentWindowEnd)
	require.Equal(t, bookmark.WindowLength, decoded.WindowLength)
	require.Equal(t, "2023-06-15T00:00:00Z", decoded.Value("TransactionDate"))
}
