package utils

import (
	"fmt"
	"time"

	"github.com/seenimoa/pairtrade/pkg/models"
)

// DateLayout is the only accepted textual date format ("YYYY-MM-DD").
const DateLayout = "2006-01-02"

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TruncateDay strips the clock component, keeping the calendar day of t in
// its own location, and returns it as midnight UTC.
func TruncateDay(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a "YYYY-MM-DD" string into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be formatted as YYYY-MM-DD", models.ErrTypeMismatch, s)
	}
	return t, nil
}

// ParseOptionalDate parses s, returning fallback when s is empty.
func ParseOptionalDate(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return ParseDate(s)
}

// FormatDate formats t as "YYYY-MM-DD".
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// CalendarDays returns the number of calendar days from start to end.
// The result is negative when end is before start.
func CalendarDays(start, end time.Time) int {
	s := TruncateDay(start)
	e := TruncateDay(end)
	return int(e.Sub(s).Hours() / 24)
}

// IsWeekday reports whether t falls on Monday through Friday.
func IsWeekday(t time.Time) bool {
	return t.Weekday() != time.Saturday && t.Weekday() != time.Sunday
}

// WeekdaysBetween returns every weekday in [start, end], both inclusive.
func WeekdaysBetween(start, end time.Time) []time.Time {
	var days []time.Time
	for d := TruncateDay(start); !d.After(TruncateDay(end)); d = d.AddDate(0, 0, 1) {
		if IsWeekday(d) {
			days = append(days, d)
		}
	}
	return days
}
