package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Date is a calendar day serialized as YYYY-MM-DD. The empty Date means "not set".
// Values read from disk are kept verbatim, so a Date is not guaranteed to parse.
type Date string

// ParseDate normalizes raw into a Date. Empty input yields the empty Date.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return Date(t.Format(DateLayout)), nil
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

func (d Date) IsZero() bool { return d == "" }

// Time returns midnight UTC of the day, or false if d is empty or malformed.
func (d Date) Time() (time.Time, bool) {
	if d == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Before compares two well-formed dates. Malformed dates never compare.
func (d Date) Before(other Date) bool {
	a, ok := d.Time()
	if !ok {
		return false
	}
	b, ok := other.Time()
	if !ok {
		return false
	}
	return a.Before(b)
}

// Month returns the YYYY-MM prefix of a well-formed date.
func (d Date) Month() string {
	if t, ok := d.Time(); ok {
		return t.Format("2006-01")
	}
	return ""
}

func (d Date) String() string { return string(d) }

// TimeOfDay is a wall-clock time serialized as HH:MM. Empty means "not set".
type TimeOfDay string

// ParseTimeOfDay accepts HH:MM (and H:MM) and normalizes to HH:MM.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	t, err := time.Parse(TimeLayout, raw)
	if err != nil {
		t, err = time.Parse("15:04:05", raw)
		if err != nil {
			return "", fmt.Errorf("invalid time %q, expected HH:MM", raw)
		}
	}
	return TimeOfDay(t.Format(TimeLayout)), nil
}

// Clock returns hour and minute of a well-formed value.
func (t TimeOfDay) Clock() (hour, minute int, ok bool) {
	parsed, err := time.Parse(TimeLayout, string(t))
	if err != nil {
		return 0, 0, false
	}
	return parsed.Hour(), parsed.Minute(), true
}

func (t TimeOfDay) IsZero() bool { return t == "" }

func (t TimeOfDay) String() string { return string(t) }
