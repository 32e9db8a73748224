package utils

import (
	"fmt"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// ParseDate parses an observation date. The result is in UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date value")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}

// DaysBetween returns the number of calendar days from start to end,
// negative when end precedes start. Time of day is ignored.
func DaysBetween(start, end time.Time) int {
	return civilDay(end) - civilDay(start)
}

func civilDay(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// MondayWeek numbers weeks with Monday as the first weekday. Days before
// the first Monday of the year fall in week 0 (strftime %W).
func MondayWeek(t time.Time) int {
	yday := t.YearDay() - 1
	wday := (int(t.Weekday()) + 6) % 7
	return (yday + 7 - wday) / 7
}

// YearWeek formats t as YYYY-WW using MondayWeek.
func YearWeek(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), MondayWeek(t))
}

// MonthStart returns the first day of the given month.
func MonthStart(year, month int) (time.Time, error) {
	if year < 1 || year > 9999 {
		return time.Time{}, fmt.Errorf("year %d out of range", year)
	}
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month %d out of range", month)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// WeekStart returns the Monday of the given MondayWeek week. Week 0 resolves
// to the Monday on or before January 1st.
func WeekStart(year, week int) (time.Time, error) {
	if year < 1 || year > 9999 {
		return time.Time{}, fmt.Errorf("year %d out of range", year)
	}
	if week < 0 || week > 53 {
		return time.Time{}, fmt.Errorf("week %d out of range", week)
	}
	jan1 := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	first := (int(jan1.Weekday()) + 6) % 7
	offset := -first
	if week > 0 {
		offset = (7-first)%7 + 7*(week-1)
	}
	return jan1.AddDate(0, 0, offset), nil
}
