package controllers

import (
	"testing"
	"time"
)

func day(offset int) time.Time {
	return dayStart(time.Now().AddDate(0, 0, offset))
}

func TestComputeStreak(t *testing.T) {
	asOf := day(0)

	tests := []struct {
		name  string
		dates []time.Time
		want  int
	}{
		{name: "empty history", dates: nil, want: 0},
		{name: "single today", dates: []time.Time{day(0)}, want: 1},
		{name: "single yesterday", dates: []time.Time{day(-1)}, want: 1},
		{name: "single two days ago", dates: []time.Time{day(-2)}, want: 0},
		{name: "three consecutive", dates: []time.Time{day(0), day(-1), day(-2)}, want: 3},
		{name: "gap resets", dates: []time.Time{day(0), day(-2), day(-3)}, want: 1},
		{name: "gap after run", dates: []time.Time{day(0), day(-1), day(-4), day(-5)}, want: 2},
		{name: "run ends yesterday", dates: []time.Time{day(-1), day(-2), day(-3)}, want: 3},
		{name: "stale run", dates: []time.Time{day(-3), day(-4)}, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := computeStreak(tc.dates, asOf); got != tc.want {
				t.Fatalf("computeStreak = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestComputeStreakIdempotent(t *testing.T) {
	dates := []time.Time{day(0), day(-1), day(-2), day(-5)}
	asOf := day(0)

	first := computeStreak(dates, asOf)
	second := computeStreak(dates, asOf)
	if first != second {
		t.Fatalf("computeStreak not idempotent: %d then %d", first, second)
	}
	if first != 3 {
		t.Fatalf("computeStreak = %d, want 3", first)
	}
}

func TestDaysBetween(t *testing.T) {
	if got := daysBetween(day(0), day(0)); got != 0 {
		t.Fatalf("same day = %d, want 0", got)
	}
	if got := daysBetween(day(0), day(-1)); got != 1 {
		t.Fatalf("yesterday = %d, want 1", got)
	}
	if got := daysBetween(day(0), day(-30)); got != 30 {
		t.Fatalf("month = %d, want 30", got)
	}
	if got := daysBetween(day(-1), day(0)); got != -1 {
		t.Fatalf("tomorrow = %d, want -1", got)
	}
}
