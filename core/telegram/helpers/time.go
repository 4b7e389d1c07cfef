package helpers

import (
	"strings"
	"time"
)

var reportDateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
}

// ParseReportDate parses an admin-supplied calendar date and returns the end of
// that day in UTC, so statistics include everything recorded on it.
func ParseReportDate(input string) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range reportDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Add(24*time.Hour - time.Nanosecond), true
		}
	}
	return time.Time{}, false
}
