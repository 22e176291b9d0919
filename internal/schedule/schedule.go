// Package schedule computes the daily history-record tick times.
package schedule

import "time"

// NextRecord returns the next moment the daily history tick should fire: the
// configured hour (UTC) today if still ahead, otherwise the same hour
// tomorrow.
func NextRecord(t time.Time, hourUTC int) time.Time {
	utc := t.UTC()
	today := time.Date(utc.Year(), utc.Month(), utc.Day(), hourUTC, 0, 0, 0, time.UTC)
	if utc.Before(today) {
		return today
	}
	return today.AddDate(0, 0, 1)
}

// DateKey renders t as the calendar-date history key. The tick and the
// manual trigger both key on this, so a re-fire on the same date overwrites
// rather than appends.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
