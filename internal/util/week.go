package util

import "time"

// Week is the length of a usage window.
const Week = 7 * 24 * time.Hour

// WeekStart returns Monday 00:00:00 UTC at or before t. The result does not
// depend on the server's local timezone.
func WeekStart(t time.Time) time.Time {
	u := t.UTC()
	daysSinceMonday := (int(u.Weekday()) + 6) % 7
	y, m, d := u.Date()
	return time.Date(y, m, d-daysSinceMonday, 0, 0, 0, 0, time.UTC)
}

// WeekStartMillis is WeekStart as epoch milliseconds, the unit stored on
// usage counters.
func WeekStartMillis(t time.Time) int64 {
	return WeekStart(t).UnixMilli()
}

// NextWeekStart returns the moment the current usage window resets.
func NextWeekStart(t time.Time) time.Time {
	return WeekStart(t).AddDate(0, 0, 7)
}

// NextMidnightUTC returns the first 00:00:00 UTC strictly after t.
func NextMidnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
