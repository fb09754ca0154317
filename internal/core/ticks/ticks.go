// Package ticks selects axis tick intervals and their label formats.
package ticks

import "time"

// Interval ladder in milliseconds, from 10ms up through multi-century
// spans. Choose picks the smallest rung with enough pixel spacing.
var ladder = []int64{
	10, 20, 50, 100, 200, 500,
	1000, 2000, 5000, 10_000, 15_000, 30_000,
	60_000, 2 * 60_000, 5 * 60_000, 10 * 60_000, 15 * 60_000, 30 * 60_000,
	3_600_000, 2 * 3_600_000, 3 * 3_600_000, 6 * 3_600_000, 12 * 3_600_000,
	day, 2 * day, 7 * day, 14 * day, 30 * day, 60 * day, 90 * day, 180 * day,
	year, 2 * year, 5 * year, 10 * year, 20 * year, 50 * year, 100 * year,
	200 * year, 500 * year,
}

const (
	day  = int64(24) * 3_600_000
	year = 365 * day

	// minTickSpacingPx is the smallest visual gap between adjacent ticks.
	minTickSpacingPx = 120
)

// Choose returns the smallest ladder interval whose on-screen spacing at
// the given zoom is at least minTickSpacingPx.
func Choose(zoom float64) int64 {
	for _, iv := range ladder {
		if float64(iv)*zoom >= minTickSpacingPx {
			return iv
		}
	}
	return ladder[len(ladder)-1]
}

// Format renders a tick label for the given timestamp at the resolution the
// chosen interval implies.
func Format(tsMs int64, interval int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t := time.UnixMilli(tsMs).In(loc)

	switch {
	case interval < 1000:
		return t.Format("15:04:05.000")
	case interval < 60_000:
		return t.Format("15:04:05")
	case interval < 3_600_000:
		return t.Format("15:04")
	case interval < day:
		return t.Format("15:00")
	case interval < 30*day:
		return t.Format("Jan 02")
	case interval < year:
		return t.Format("Jan 2006")
	default:
		return t.Format("2006")
	}
}

// Align returns the first tick at or after tsMs for the given interval.
func Align(tsMs int64, interval int64) int64 {
	if interval <= 0 {
		return tsMs
	}
	r := tsMs % interval
	if r == 0 {
		return tsMs
	}
	if tsMs < 0 {
		return tsMs - r
	}
	return tsMs + interval - r
}
