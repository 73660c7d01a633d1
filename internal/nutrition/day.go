package nutrition

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used on every external surface.
const DateLayout = "2006-01-02"

// DateAtLocation returns midnight of value's calendar day in location.
func DateAtLocation(value time.Time, location *time.Location) time.Time {
	if location == nil {
		location = time.UTC
	}
	localized := value.In(location)
	year, month, day := localized.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, location)
}

// DayRange returns the half-open range [start, end) covering value's calendar
// day in location. Consecutive days share a boundary but never an instant.
func DayRange(value time.Time, location *time.Location) (time.Time, time.Time) {
	start := DateAtLocation(value, location)
	return start, start.AddDate(0, 0, 1)
}

// PeriodRange returns the half-open range covering the inclusive calendar
// dates startDate..endDate in location.
func PeriodRange(startDate, endDate time.Time, location *time.Location) (time.Time, time.Time, error) {
	start := DateAtLocation(startDate, location)
	last := DateAtLocation(endDate, location)
	if last.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s",
			last.Format(DateLayout), start.Format(DateLayout))
	}
	return start, last.AddDate(0, 0, 1), nil
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight in location.
func ParseDate(s string, location *time.Location) (time.Time, error) {
	if location == nil {
		location = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}
