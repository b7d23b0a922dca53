package model

import "time"

// NextReset returns the end of the period that started at start: the same
// day-of-month one calendar month later, clamped to the last day of that month
// (Jan 31 rolls over on Feb 28, or Feb 29 in leap years). Times are UTC.
func NextReset(start time.Time) time.Time {
	start = start.UTC()
	y, m, d := start.Date()
	firstOfNext := time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
	lastDay := daysIn(firstOfNext.Year(), firstOfNext.Month())
	if d > lastDay {
		d = lastDay
	}
	hh, mm, ss := start.Clock()
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), d, hh, mm, ss, start.Nanosecond(), time.UTC)
}

// ResetDue reports whether a period that started at start is over at now.
func ResetDue(start, now time.Time) bool {
	return !now.UTC().Before(NextReset(start))
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
