// Package timeparse normalizes the ISO-8601 timestamp variants accepted on
// the schedule wire format into UTC instants.
package timeparse

import (
	"fmt"
	"time"
)

// layouts covers the accepted variants: with or without Z, with or without
// fractional seconds, with or without an explicit offset.
var layouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// Parse converts an ISO-8601 timestamp string into a UTC instant. Strings
// without a zone designator are interpreted as UTC.
func Parse(s string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", s)
}
