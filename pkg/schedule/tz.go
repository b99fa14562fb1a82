package schedule

import (
	"fmt"
	"time"
)

// Disambiguation picks one of the two instants a wall clock time can map to
// when it falls inside a DST transition.
type Disambiguation int

const (
	// Earlier picks the earlier of the two candidate instants.
	Earlier Disambiguation = iota
	// Later picks the later of the two candidate instants.
	Later
)

func (d Disambiguation) String() string {
	switch d {
	case Earlier:
		return "earlier"
	case Later:
		return "later"
	default:
		return fmt.Sprintf("Disambiguation(%d)", int(d))
	}
}

// ParseDisambiguation parses "earlier" or "later". An empty string is
// Earlier.
func ParseDisambiguation(s string) (Disambiguation, error) {
	switch s {
	case "", "earlier":
		return Earlier, nil
	case "later":
		return Later, nil
	default:
		return Earlier, fmt.Errorf("unknown disambiguation: %s", s)
	}
}

// Resolve returns the instant at which the wall clock in loc reads the
// given date and time. A time repeated by a "fall back" transition or
// skipped by a "spring forward" transition has two candidate instants, one
// for the offset on either side of the transition, and d picks between
// them. time.Date makes no promise about which one it returns.
func Resolve(loc *time.Location, year int, month time.Month, day, hour, min, sec int, d Disambiguation) time.Time {
	wall := time.Date(year, month, day, hour, min, sec, 0, time.UTC)
	approx := time.Date(year, month, day, hour, min, sec, 0, loc)

	_, offBefore := approx.Add(-24 * time.Hour).Zone()
	_, offAfter := approx.Add(24 * time.Hour).Zone()

	candidates := make([]time.Time, 0, 2)
	for _, off := range []int{offBefore, offAfter} {
		c := wall.Add(-time.Duration(off) * time.Second).In(loc)
		if len(candidates) > 0 && candidates[0].Equal(c) {
			continue
		}
		candidates = append(candidates, c)
	}

	var valid []time.Time
	for _, c := range candidates {
		if sameWall(c, wall) {
			valid = append(valid, c)
		}
	}
	switch len(valid) {
	case 1:
		return valid[0]
	case 0:
		// skipped: neither offset produces this wall clock
		valid = candidates
	}
	if len(valid) == 1 {
		return valid[0]
	}
	earlier, later := valid[0], valid[1]
	if later.Before(earlier) {
		earlier, later = later, earlier
	}
	if d == Later {
		return later
	}
	return earlier
}

func sameWall(t, wall time.Time) bool {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := wall.Date()
	return y1 == y2 && m1 == m2 && d1 == d2 &&
		t.Hour() == wall.Hour() && t.Minute() == wall.Minute() && t.Second() == wall.Second()
}

// ParseLocal parses a "2006-01-02T15:04:05" wall clock time in loc,
// resolving DST transitions with d.
func ParseLocal(s string, loc *time.Location, d Disambiguation) (time.Time, error) {
	wall, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse local time (%s): %w", s, err)
	}
	return Resolve(loc, wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), d), nil
}
