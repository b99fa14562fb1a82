package schedule

import (
	"fmt"
	"sort"
	"time"
)

const minutesPerDay = 24 * 60

// TimeOfDay is a wall clock time in minutes after local midnight.
type TimeOfDay int

// NewTimeOfDay returns the TimeOfDay for hour:minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ClockOf returns the wall clock time of t in t's location.
func ClockOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute())
}

// Hour returns the hour of the day, 0 through 23.
func (t TimeOfDay) Hour() int {
	return int(t) / 60
}

// Minute returns the minute within the hour.
func (t TimeOfDay) Minute() int {
	return int(t) % 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalText renders the time as HH:MM.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses HH:MM.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	var hour, minute int
	if _, err := fmt.Sscanf(string(b), "%02d:%02d", &hour, &minute); err != nil {
		return fmt.Errorf("invalid time of day %q: %w", b, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid time of day %q", b)
	}
	*t = NewTimeOfDay(hour, minute)
	return nil
}

// TimeSlot is a priced span of a repeating wall clock day. A slot whose End
// is not after its Start wraps past midnight.
type TimeSlot struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
	Price float64   `json:"price"`
}

// Duration returns the wall clock length of the slot.
func (s TimeSlot) Duration() time.Duration {
	d := int(s.End) - int(s.Start)
	if d <= 0 {
		d += minutesPerDay
	}
	return time.Duration(d) * time.Minute
}

type wallPoint struct {
	clock TimeOfDay
	price float64
}

// Project converts absolute entries into a repeating wall clock day in loc.
// If loc is nil the location of the first entry is used. The returned slots
// start at 00:00, are in local order and always cover exactly 24 hours.
//
// On a DST transition day a wall clock time that occurs twice keeps the
// value that comes last in the cycle and a wall clock span that never
// occurs continues the preceding value.
func Project(entries []Entry, loc *time.Location) []TimeSlot {
	if len(entries) == 0 {
		return nil
	}
	if loc == nil {
		loc = entries[0].Start.Location()
	}

	// anything at or after the first local midnight wraps to the start of
	// the cycle since the window rarely lines up with a calendar day
	first := entries[0].Start.In(loc)
	y, m, d := first.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

	var before, after []wallPoint
	for _, e := range entries {
		for at := e.Start; at.Before(e.End); at = at.Add(SlotDuration) {
			p := wallPoint{
				clock: ClockOf(at.In(loc)),
				price: e.Price,
			}
			if at.Before(midnight) {
				after = append(after, p)
			} else {
				before = append(before, p)
			}
		}
	}
	cycle := append(before, after...)
	sort.SliceStable(cycle, func(i, j int) bool {
		return cycle[i].clock < cycle[j].clock
	})

	points := cycle[:0]
	for _, p := range cycle {
		if n := len(points); n > 0 && points[n-1].clock == p.clock {
			points[n-1] = p
			continue
		}
		points = append(points, p)
	}
	if points[0].clock != 0 {
		wrap := wallPoint{clock: 0, price: points[len(points)-1].price}
		points = append([]wallPoint{wrap}, points...)
	}

	var slots []TimeSlot
	for _, p := range points {
		if n := len(slots); n > 0 && slots[n-1].Price == p.price {
			continue
		}
		slots = append(slots, TimeSlot{Start: p.clock, Price: p.price})
	}
	// the last slot ends at midnight which is its zero value
	for i := 0; i+1 < len(slots); i++ {
		slots[i].End = slots[i+1].Start
	}
	return slots
}
