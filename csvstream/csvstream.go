// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

// Package csvstream decodes one export file's CSV byte stream into typed
// records, with strict structural validation: every row must match the
// header's width, and every value is coerced against the stream's declared
// schema.
package csvstream

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/zeebo/errs"

	"github.com/singer-io/tap-zuora/catalog"
	"github.com/singer-io/tap-zuora/private/dates"
)

var (
	// Error is the error class for CSV decoding errors.
	Error = errs.Class("csvstream")

	// ErrRowWidth marks a non-rectangular file: a data row whose column
	// count differs from the header's. The upstream session is considered
	// corrupted when this happens.
	ErrRowWidth = errs.Class("row width")
)

// maxLineLength bounds a single CSV line; exports put one record per line.
const maxLineLength = 4 << 20

// parseLine parses a single CSV line. NUL bytes are stripped first; some
// upstream exports contain them.
func parseLine(line string) ([]string, error) {
	line = strings.ReplaceAll(line, "\x00", "")
	values, err := csv.NewReader(strings.NewReader(line)).Read()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return values, nil
}

// convertHeader normalizes an export column name. Columns come prefixed
// with the object name; joined-object columns keep their parent's name
// with the dot collapsed.
func convertHeader(header, stream string) string {
	prefix, rest, found := strings.Cut(header, ".")
	if found && prefix == stream {
		return rest
	}
	return strings.ReplaceAll(header, ".", "")
}

// RecordReader streams typed records out of one CSV export file. The
// underlying HTTP body is consumed once; the reader is not restartable.
type RecordReader struct {
	stream   *catalog.Stream
	selected map[string]bool
	header   []string
	scanner  *bufio.Scanner
}

// NewRecordReader parses the header line and prepares field selection for
// the given stream.
func NewRecordReader(r io.Reader, stream *catalog.Stream) (*RecordReader, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, Error.Wrap(err)
		}
		return nil, Error.New("export file is empty")
	}

	rawHeader, err := parseLine(scanner.Text())
	if err != nil {
		return nil, err
	}
	header := make([]string, 0, len(rawHeader))
	for _, h := range rawHeader {
		header = append(header, convertHeader(h, stream.TapStreamID))
	}

	selected := make(map[string]bool)
	for _, field := range stream.SelectedFields() {
		selected[field] = true
	}
	if stream.DeletedSelected() {
		selected["Deleted"] = true
	}

	return &RecordReader{
		stream:   stream,
		selected: selected,
		header:   header,
		scanner:  scanner,
	}, nil
}

// Header returns the normalized column names.
func (reader *RecordReader) Header() []string { return reader.header }

// Next returns the next record, or io.EOF when the file is exhausted.
// Columns not declared in the schema and fields not selected are dropped;
// remaining values are coerced to their declared types.
func (reader *RecordReader) Next() (map[string]interface{}, error) {
	for reader.scanner.Scan() {
		line := reader.scanner.Text()
		if line == "" {
			continue
		}

		values, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		if len(values) != len(reader.header) {
			return nil, ErrRowWidth.New("found row with %d entries, expected %d entries from header line",
				len(values), len(reader.header))
		}

		record := make(map[string]interface{})
		for i, column := range reader.header {
			if !reader.selected[column] {
				continue
			}
			fieldType := reader.stream.FieldType(column)
			if fieldType == "" {
				continue
			}
			value, err := FormatValue(values[i], fieldType)
			if err != nil {
				return nil, err
			}
			record[column] = value
		}
		return record, nil
	}

	if err := reader.scanner.Err(); err != nil {
		return nil, Error.Wrap(err)
	}
	return nil, io.EOF
}

// FormatValue coerces a raw CSV cell to the declared field type. Empty
// cells become nil regardless of type.
func FormatValue(value, fieldType string) (interface{}, error) {
	if value == "" {
		return nil, nil
	}

	switch fieldType {
	case "integer":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		return parsed, nil
	case "number":
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		return parsed, nil
	case "boolean":
		return strings.EqualFold(value, "true"), nil
	case "date", "datetime":
		parsed, err := dates.Parse(value)
		if err != nil {
			return nil, err
		}
		return dates.FormatISO(parsed), nil
	default:
		return value, nil
	}
}
