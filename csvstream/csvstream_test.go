// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package csvstream_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/singer-io/tap-zuora/catalog"
	"github.com/singer-io/tap-zuora/csvstream"
)

func testStream() *catalog.Stream {
	stream := &catalog.Stream{
		TapStreamID:    "Account",
		ReplicationKey: "UpdatedDate",
		Schema: catalog.Schema{
			Type: "object",
			Properties: map[string]*catalog.Property{
				"Id":          {Types: []string{"string"}},
				"UpdatedDate": {Types: []string{"string", "null"}, Format: "date-time"},
				"Balance":     {Types: []string{"number", "null"}},
				"Invoices":    {Types: []string{"integer", "null"}},
				"AutoPay":     {Types: []string{"boolean", "null"}},
				"Deleted":     {Types: []string{"boolean"}},
			},
		},
	}
	stream.WriteMetadata([]string{}, "selected", true)
	for _, field := range []string{"Id", "UpdatedDate", "Balance", "Invoices", "AutoPay", "Deleted"} {
		stream.WriteMetadata([]string{"properties", field}, "inclusion", catalog.InclusionAvailable)
		stream.WriteMetadata([]string{"properties", field}, "selected", true)
	}
	return stream
}

func TestRecordReader(t *testing.T) {
	csv := strings.Join([]string{
		"Account.Id,Account.UpdatedDate,Account.Balance,Account.Invoices,Account.AutoPay,Account.Deleted",
		"a1,2024-03-01T10:00:00+00:00,12.50,3,true,false",
		"a2,2024-03-02 11:30:00,,,false,true",
	}, "\n")

	reader, err := csvstream.NewRecordReader(strings.NewReader(csv), testStream())
	require.NoError(t, err)
	require.Equal(t, []string{"Id", "UpdatedDate", "Balance", "Invoices", "AutoPay", "Deleted"},
		reader.Header())

	record, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"Id":          "a1",
		"UpdatedDate": "2024-03-01T10:00:00Z",
		"Balance":     12.5,
		"Invoices":    int64(3),
		"AutoPay":     true,
		"Deleted":     false,
	}, record)

	record, err = reader.Next()
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"Id":          "a2",
		"UpdatedDate": "2024-03-02T11:30:00Z",
		"Balance":     nil,
		"Invoices":    nil,
		"AutoPay":     false,
		"Deleted":     true,
	}, record)

	_, err = reader.Next()
	require.True(t, errors.Is(err, io.EOF))
}

func TestRecordReaderSkipsBlankLines(t *testing.T) {
	csv := "Account.Id\na1\n\n\na2\n"
	reader, err := csvstream.NewRecordReader(strings.NewReader(csv), testStream())
	require.NoError(t, err)

	record, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, "a1", record["Id"])

	record, err = reader.Next()
	require.NoError(t, err)
	require.Equal(t, "a2", record["Id"])

	_, err = reader.Next()
	require.True(t, errors.Is(err, io.EOF))
}

func TestRecordReaderStripsNULBytes(t *testing.T) {
	csv := "Account.Id,Account.Balance\na\x001,4\x002.5\n"
	reader, err := csvstream.NewRecordReader(strings.NewReader(csv), testStream())
	require.NoError(t, err)

	record, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, "a1", record["Id"])
	require.Equal(t, 42.5, record["Balance"])
}

func TestRecordReaderRowWidth(t *testing.T) {
	csv := "Account.Id,Account.Balance\na1,1.0,extra\n"
	reader, err := csvstream.NewRecordReader(strings.NewReader(csv), testStream())
	require.NoError(t, err)

	_, err = reader.Next()
	require.True(t, csvstream.ErrRowWidth.Has(err))
	require.Contains(t, err.Error(), "found row with 3 entries, expected 2 entries from header line")
}

func TestRecordReaderDropsUndeclaredAndUnselected(t *testing.T) {
	stream := testStream()
	// Balance loses its selection; Mystery was never in the schema.
	stream.WriteMetadata([]string{"properties", "Balance"}, "selected", false)

	csv := "Account.Id,Account.Balance,Account.Mystery\na1,1.0,???\n"
	reader, err := csvstream.NewRecordReader(strings.NewReader(csv), stream)
	require.NoError(t, err)

	record, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"Id": "a1"}, record)
}

func TestRecordReaderJoinedHeader(t *testing.T) {
	stream := testStream()
	stream.Schema.Properties["DefaultPaymentMethodId"] = &catalog.Property{Types: []string{"string", "null"}}
	stream.WriteMetadata([]string{"properties", "DefaultPaymentMethodId"}, "inclusion", catalog.InclusionAvailable)
	stream.WriteMetadata([]string{"properties", "DefaultPaymentMethodId"}, "selected", true)

	csv := "Account.Id,DefaultPaymentMethod.Id\na1,pm1\n"
	reader, err := csvstream.NewRecordReader(strings.NewReader(csv), stream)
	require.NoError(t, err)
	require.Equal(t, []string{"Id", "DefaultPaymentMethodId"}, reader.Header())

	record, err := reader.Next()
	require.NoError(t, err)
	require.Equal(t, "pm1", record["DefaultPaymentMethodId"])
}

func TestRecordReaderEmptyFile(t *testing.T) {
	_, err := csvstream.NewRecordReader(strings.NewReader(""), testStream())
	require.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	for _, tt := range []struct {
		value     string
		fieldType string
		want      interface{}
	}{
		{"", "string", nil},
		{"", "integer", nil},
		{"hello", "string", "hello"},
		{"42", "integer", int64(42)},
		{"4.2", "number", 4.2},
		{"true", "boolean", true},
		{"TRUE", "boolean", true},
		{"false", "boolean", false},
		{"anything else", "boolean", false},
		{"2024-03-01", "date", "2024-03-01T00:00:00Z"},
		{"2024-03-01T10:00:00+02:00", "datetime", "2024-03-01T08:00:00Z"},
		{"2024-03-01T10:00:00.25Z", "datetime", "2024-03-01T10:00:00.250000Z"},
	} {
		got, err := csvstream.FormatValue(tt.value, tt.fieldType)
		require.NoError(t, err, "%s as %s", tt.value, tt.fieldType)
		require.Equal(t, tt.want, got, "%s as %s", tt.value, tt.fieldType)
	}

	_, err := csvstream.FormatValue("not a number", "integer")
	require.Error(t, err)
	_, err = csvstream.FormatValue("not a date", "datetime")
	require.Error(t, err)
}
