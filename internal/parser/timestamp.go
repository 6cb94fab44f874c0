package parser

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wesm/projectsview/internal/timeutil"
)

// NotAvailable is rendered in place of unknown values.
const NotAvailable = "N/A"

// Timestamp is a create/update time as found in the export. The
// export writes some timestamps as epoch seconds and others as
// ISO-8601 strings; both are accepted and the original JSON token
// is written back unchanged.
type Timestamp struct {
	raw   string
	str   string
	isStr bool
	sec   float64
	valid bool
}

// EpochTimestamp returns a numeric Timestamp for sec.
func EpochTimestamp(sec float64) Timestamp {
	return timestampFromResult(gjson.Parse(
		formatNumber(sec),
	))
}

// StringTimestamp returns a string Timestamp for s.
func StringTimestamp(s string) Timestamp {
	t := Timestamp{str: s, isStr: true}
	t.raw = quoteJSON(s)
	if at, ok := timeutil.Parse(s); ok {
		t.sec = timeutil.EpochSeconds(at)
		t.valid = true
	}
	return t
}

func timestampFromResult(r gjson.Result) Timestamp {
	switch r.Type {
	case gjson.Number:
		return Timestamp{
			raw:   r.Raw,
			sec:   r.Num,
			valid: true,
		}
	case gjson.String:
		t := StringTimestamp(r.Str)
		t.raw = r.Raw
		return t
	default:
		return Timestamp{}
	}
}

// UnmarshalJSON accepts a number, a string or null. Other JSON
// types decode to the zero Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = timestampFromResult(gjson.ParseBytes(data))
	return nil
}

// MarshalJSON writes the original token, or null when absent.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.raw == "" {
		return []byte("null"), nil
	}
	return []byte(t.raw), nil
}

// IsZero reports whether the timestamp was absent or null.
func (t Timestamp) IsZero() bool {
	return t.raw == ""
}

// Valid reports whether the timestamp has a usable instant.
func (t Timestamp) Valid() bool {
	return t.valid
}

// Time returns the instant, or the zero time when not valid.
func (t Timestamp) Time() time.Time {
	if !t.valid {
		return time.Time{}
	}
	return timeutil.FromEpoch(t.sec)
}

// Seconds returns epoch seconds for ordering. Missing and
// unparsable timestamps sort as 0.
func (t Timestamp) Seconds() float64 {
	if !t.valid {
		return 0
	}
	return t.sec
}

// Before reports whether t is earlier than u by Seconds.
func (t Timestamp) Before(u Timestamp) bool {
	return t.Seconds() < u.Seconds()
}

// FormatMinute renders the timestamp as "2006-01-02 15:04" in
// loc. String timestamps are shown as their first 19 characters.
func (t Timestamp) FormatMinute(loc *time.Location) string {
	return t.format(loc, "2006-01-02 15:04", 19)
}

// FormatDate renders the timestamp as "2006-01-02" in loc.
func (t Timestamp) FormatDate(loc *time.Location) string {
	return t.format(loc, time.DateOnly, 10)
}

func (t Timestamp) format(
	loc *time.Location, layout string, maxLen int,
) string {
	switch {
	case t.IsZero():
		return NotAvailable
	case t.isStr:
		if t.str == "" {
			return NotAvailable
		}
		return clip(t.str, maxLen)
	}
	if loc == nil {
		loc = time.Local
	}
	return t.Time().In(loc).Format(layout)
}

func clip(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func quoteJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
