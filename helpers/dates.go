package helpers

import (
	"regexp"
	"strings"
	"time"
)

const (
	// DateLayout is the storage and API date format
	DateLayout = "2006-01-02"
	// NSEDateLayout is the exchange's DD-MMM-YYYY format, e.g. 05-Aug-2024
	NSEDateLayout = "02-Jan-2006"
)

var nseDatePattern = regexp.MustCompile(`^\d{2}-[A-Za-z]{3}-\d{4}$`)

// Today returns the current calendar date in loc as YYYY-MM-DD
func Today(loc *time.Location) string {
	return time.Now().In(loc).Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// IsValidDate reports whether s is a real YYYY-MM-DD date
func IsValidDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

// ParseNSEDate parses DD-MMM-YYYY. The month may be in any case.
func ParseNSEDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if !nseDatePattern.MatchString(s) {
		return time.Time{}, false
	}
	// time.Parse wants "Jan", not "JAN" or "jan"
	normalized := s[:3] + strings.ToUpper(s[3:4]) + strings.ToLower(s[4:6]) + s[6:]
	t, err := time.Parse(NSEDateLayout, normalized)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatNSEDate formats t as DD-MMM-YYYY
func FormatNSEDate(t time.Time) string {
	return t.Format(NSEDateLayout)
}

// StartOfDay returns midnight of t's date in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
