package core

import (
	"fmt"
	"time"
)

// TimeWindow is the time filter offered by list and chart views.
type TimeWindow string

const (
	WindowAll   TimeWindow = "all"
	WindowToday TimeWindow = "today"
	WindowWeek  TimeWindow = "week"
	WindowMonth TimeWindow = "month"
)

// ParseTimeWindow maps a query value to a window; empty means all.
func ParseTimeWindow(s string) (TimeWindow, error) {
	switch TimeWindow(s) {
	case "", WindowAll:
		return WindowAll, nil
	case WindowToday, WindowWeek, WindowMonth:
		return TimeWindow(s), nil
	default:
		return WindowAll, fmt.Errorf("unknown time window %q", s)
	}
}

// Since returns the inclusive lower bound for the window, or false for all time.
// Today starts at local midnight; week and month are rolling back from now.
func (w TimeWindow) Since(now time.Time) (time.Time, bool) {
	switch w {
	case WindowToday:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), true
	case WindowWeek:
		return now.AddDate(0, 0, -7), true
	case WindowMonth:
		return now.AddDate(0, -1, 0), true
	default:
		return time.Time{}, false
	}
}
