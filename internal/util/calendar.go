package util

import "time"

// Day truncates t to midnight UTC. All simulation dates are day-granular and
// compared through this normal form.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TradingDays returns the inclusive sequence of weekday dates between start
// and end. Exchange holidays are not modelled; the simulation treats every
// weekday as a trading day.
func TradingDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := Day(start); !d.After(Day(end)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, d)
		}
	}
	return days
}
