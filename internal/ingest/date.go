package ingest

import (
	netmail "net/mail"
	"strings"
	"time"
)

// zonelessLayouts are the date forms accepted when the zone is missing
var zonelessLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05",
	"Mon, 2 Jan 2006 15:04",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04",
	"Mon, 2 Jan 06 15:04:05",
}

// ParseDate parses a Date header value. Values without a zone, or with the
// "unknown zone" marker -0000, are read in the default offset. Unparseable
// values yield nil.
func ParseDate(value string, defaultOffset time.Duration) *time.Time {
	value = strings.TrimSpace(value)
	if i := strings.Index(value, "("); i > 0 {
		value = strings.TrimSpace(value[:i])
	}
	if value == "" {
		return nil
	}

	fields := strings.Fields(value)
	if fields[len(fields)-1] == "-0000" {
		value = strings.Join(fields[:len(fields)-1], " ")
	} else if t, err := netmail.ParseDate(value); err == nil {
		t = t.UTC()
		return &t
	}

	loc := time.FixedZone("", int(defaultOffset/time.Second))
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
