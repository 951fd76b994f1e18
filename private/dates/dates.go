// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

// Package dates contains the date parsing and formatting conventions of
// the Zuora APIs. Instants are carried in UTC internally; conversion
// happens only at the edges that demand something else.
package dates

import (
	"strings"
	"time"

	"github.com/zeebo/errs"
)

// Error is the error class for date parsing errors.
var Error = errs.Class("dates")

// ISOFormat is the wire format for bookmarks and emitted date-times.
const ISOFormat = "2006-01-02T15:04:05Z"

// ZOQLFormat is what ZOQL literals require: the 'T' separator without a
// zone suffix.
const ZOQLFormat = "2006-01-02T15:04:05"

// ParameterFormat is the wall-clock format the AQuA incrementalTime
// parameter requires.
const ParameterFormat = "2006-01-02 15:04:05"

// Upstream exports are not consistent about their date-time spelling, so
// parsing walks the known layouts. Go's parser additionally accepts a
// fractional second after any seconds field.
var parseLayouts = []string{
	time.RFC3339,
	ZOQLFormat,
	ParameterFormat,
	"2006-01-02",
}

// Parse interprets a Zuora date-time string as a UTC instant. Layouts
// without a zone are taken to be UTC already.
func Parse(value string) (time.Time, error) {
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, Error.New("unparseable date-time %q", value)
}

// FormatISO renders a UTC instant in the bookmark wire format. Fractional
// seconds are kept only when present, always padded to six digits so that
// values with the same precision order lexically.
func FormatISO(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() != 0 {
		return t.Format("2006-01-02T15:04:05.000000Z")
	}
	return t.Format(ISOFormat)
}

// Compare orders two date-time values as instants: negative when a is
// earlier than b, zero when equal, positive when later. Upstream exports
// mix whole-second and fractional spellings, which do not order lexically
// as strings. Values that do not parse fall back to lexical order.
func Compare(a, b string) int {
	ta, errA := Parse(a)
	tb, errB := Parse(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return ta.Compare(tb)
}

// pacific is the zone the AQuA incrementalTime parameter is interpreted
// in. The zone load only fails on a broken zoneinfo install, in which case
// there is no correct answer available; fall back to a fixed PST offset.
var pacific = func() *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		return time.FixedZone("PST", -8*60*60)
	}
	return loc
}()

// FormatParameter renders an instant in the Pacific wall-clock convention
// required by the AQuA incrementalTime parameter.
func FormatParameter(t time.Time) string {
	return t.In(pacific).Format(ParameterFormat)
}
