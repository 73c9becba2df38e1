package feed

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are tried in order. Opera's own exports use 02-JAN-06; the
// slash form is day-first as produced by the Mexican property locale.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02-Jan-06",
	"02-Jan-2006",
	"02/01/2006",
	"2006/01/02",
	"20060102",
}

// parseDate returns the calendar date of s at midnight UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
