package controllers

import "time"

// computeStreak derives the consecutive-day streak from check dates ordered
// newest first. Walking from asOf backwards, a gap of zero or one day extends
// the streak and moves the cursor; the first gap larger than one day ends it.
// The caller bounds the history (see StreakLookbackDays), so totals beyond
// that window are intentionally ignored. Pure function, no side effects.
func computeStreak(dates []time.Time, asOf time.Time) int {
	streak := 0
	cursor := dayStart(asOf)

	for _, d := range dates {
		day := dayStart(d)
		gap := daysBetween(cursor, day)
		if gap == 0 || gap == 1 {
			streak++
			cursor = day
			continue
		}
		if gap > 1 {
			break
		}
		// gap < 0 means a record dated after asOf; skip it.
	}

	return streak
}

// daysBetween returns a-b in whole calendar days. Both sides are re-anchored
// to UTC midnight so DST transitions cannot skew the division.
func daysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(au.Sub(bu) / (24 * time.Hour))
}
