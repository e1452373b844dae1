package domain

import (
	"fmt"
	"time"
)

// Dates are "YYYY-MM-DD" and times of day are zero-padded 24-hour "HH:MM",
// so lexicographic order equals chronological order for both.
const (
	DateLayout      = "2006-01-02"
	TimeOfDayLayout = "15:04"
)

func ParseDate(s string) (time.Time, error) {
	if len(s) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD, got %q", s)
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

func ValidDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

func ValidTimeOfDay(s string) bool {
	if len(s) != len(TimeOfDayLayout) {
		return false
	}
	_, err := time.Parse(TimeOfDayLayout, s)
	return err == nil
}

func ValidWeekday(d int) bool {
	return d >= 0 && d <= 6
}

// WeekdayOf derives the weekday index (0=Sunday .. 6=Saturday) of a stored
// date. Template weekdays use the same indexing, so the two are comparable.
func WeekdayOf(date string) (int, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return int(t.Weekday()), nil
}

func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

func TimeOfDayOf(t time.Time) string {
	return t.Format(TimeOfDayLayout)
}
