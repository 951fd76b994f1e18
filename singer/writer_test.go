// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package singer_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/singer-io/tap-zuora/catalog"
	"github.com/singer-io/tap-zuora/singer"
	"github.com/singer-io/tap-zuora/state"
)

func TestWriterMessages(t *testing.T) {
	var out bytes.Buffer
	w := singer.NewWriter(&out)

	schema := catalog.Schema{
		Type: "object",
		Properties: map[string]*catalog.Property{
			"Id": {Types: []string{"string"}},
		},
	}
	require.NoError(t, w.Schema("Account", schema, []string{"Id"}))

	extracted := time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC)
	require.NoError(t, w.Record("Account", map[string]interface{}{"Id": "a1"}, extracted))

	st := &state.State{CurrentStream: "Account"}
	st.Get("Account").SetValue("UpdatedDate", "2024-03-01T00:00:00Z")
	require.NoError(t, w.State(st))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)

	require.JSONEq(t, `{
		"type": "SCHEMA",
		"stream": "Account",
		"schema": {
			"type": "object",
			"additionalProperties": false,
			"properties": {"Id": {"type": "string"}}
		},
		"key_properties": ["Id"]
	}`, lines[0])

	require.JSONEq(t, `{
		"type": "RECORD",
		"stream": "Account",
		"record": {"Id": "a1"},
		"time_extracted": "2024-03-01T12:00:00.123456Z"
	}`, lines[1])

	require.JSONEq(t, `{
		"type": "STATE",
		"value": {
			"current_stream": "Account",
			"bookmarks": {"Account": {"UpdatedDate": "2024-03-01T00:00:00Z"}}
		}
	}`, lines[2])

	// Every message is one complete line.
	for _, line := range lines {
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	}
}
