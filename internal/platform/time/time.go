// Package time holds calendar helpers and the clock seam
package time

import "time"

// Clock returns the current time
type Clock func() time.Time

// System is the wall clock
var System Clock = time.Now

// SameDay reports whether a and b fall on the same calendar day in loc
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// Floor truncates t to the start of its hour (step=time.Hour) or its day in t's location
// (any other step), which time.Truncate does not do for non-UTC days
func Floor(t time.Time, step time.Duration) time.Time {
	if step == time.Hour {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
