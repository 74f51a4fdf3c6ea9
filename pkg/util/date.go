package util

import (
	"strconv"
	"strings"
	"time"
)

// Event source timestamps arrive in several shapes depending on the feed:
// RFC3339 with or without Z, a bare "2006-01-02 15:04:05", sometimes with a
// fractional part. All are treated as UTC.
var eventTimeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime tries the known event time layouts plus unix seconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	clean := strings.TrimSpace(strings.TrimSuffix(s, "Z"))
	if dot := strings.Index(clean, "."); dot > 0 {
		clean = clean[:dot]
	}
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
		if t, err := time.ParseInLocation(layout, clean, time.UTC); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// FloorToBucket aligns a time down to a fixed-width grid, returning the
// bucket's left-edge unix second.
func FloorToBucket(t time.Time, width time.Duration) int64 {
	w := int64(width.Seconds())
	if w <= 0 {
		return t.Unix()
	}
	return t.Unix() / w * w
}
