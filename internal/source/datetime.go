package source

import (
	"strconv"
	"strings"
	"time"
)

// Layouts tried in order: RFC-822 family first (feeds), then ISO-8601.
var whenLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseWhen turns a raw timestamp string into a UTC instant. Accepts
// RFC-822, ISO-8601 (trailing Z means UTC) and bare epoch seconds, in
// that order; anything unparseable falls back to now.
func parseWhen(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.UTC()
	}

	for _, layout := range whenLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}

	if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC()
	}

	return now.UTC()
}
