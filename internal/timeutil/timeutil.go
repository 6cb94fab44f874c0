// Package timeutil holds the timestamp conversions shared by the
// parser and report packages.
package timeutil

import (
	"math"
	"strings"
	"time"
)

// isoLayouts are tried in order when parsing string timestamps.
// Exports mix RFC 3339 with Python isoformat() output that has
// no zone designator.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// Format returns t as an RFC3339Nano string in UTC, or "" for
// the zero time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Parse parses an ISO-8601 timestamp. Strings without a zone are
// read as UTC.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FromEpoch converts fractional epoch seconds to a time.Time.
func FromEpoch(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9))
}

// EpochSeconds is the inverse of FromEpoch.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
