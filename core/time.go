package core

import (
	"fmt"
	"math"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp. Timestamps without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// FormatTimestamp is the inverse of ParseTimestamp for normalized values.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Millis converts t to fractional epoch milliseconds.
func Millis(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e6
}

// FromMillis converts fractional epoch milliseconds to a UTC time.
func FromMillis(ms float64) time.Time {
	return time.Unix(0, int64(math.Round(ms*1e6))).UTC()
}

// PeerID strips the "@host:port" suffix of legacy peer strings ("id@host:port").
func PeerID(s string) string {
	if i := strings.IndexByte(s, '@'); i >= 0 {
		return s[:i]
	}
	return s
}
