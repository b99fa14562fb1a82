package schedule

import (
	"time"
)

const (
	// SlotDuration is the billing resolution of the grid.
	SlotDuration = 30 * time.Minute

	// SlotsPerDay is the number of slots in the grid's fixed 24 hour
	// absolute window. This is not the number of local half-hours in a
	// calendar day, which is 46 or 50 on DST transition days.
	SlotsPerDay = int(24 * time.Hour / SlotDuration)
)

// Floor returns t truncated to the start of the slot containing it.
// Truncation happens on the absolute instant so it never depends on
// the wall clock of t's location.
func Floor(t time.Time) time.Time {
	return t.Truncate(SlotDuration)
}

// Ceil returns the first slot boundary at or after t.
func Ceil(t time.Time) time.Time {
	f := Floor(t)
	if f.Equal(t) {
		return f
	}
	return f.Add(SlotDuration)
}

// Slot is a single entry in a Grid.
type Slot struct {
	Start time.Time
	Price float64
	Set   bool
}

// Grid is a fixed window of half-hour slots covering one rolling day
// starting at the slot containing the reference instant. Each slot holds
// an optional price.
type Grid struct {
	start  time.Time
	prices [SlotsPerDay]float64
	set    [SlotsPerDay]bool
}

// NewGrid creates an empty grid whose first slot contains now. Slot keys
// carry now's location.
func NewGrid(now time.Time) *Grid {
	return &Grid{
		start: Floor(now),
	}
}

// Start returns the first slot's key.
func (g *Grid) Start() time.Time {
	return g.start
}

// End returns the exclusive end of the grid's window.
func (g *Grid) End() time.Time {
	return g.slotStart(SlotsPerDay)
}

func (g *Grid) slotStart(i int) time.Time {
	return g.start.Add(time.Duration(i) * SlotDuration)
}

// index returns the slot index of a slot boundary inside the window.
func (g *Grid) index(boundary time.Time) int {
	return int(boundary.Sub(g.start) / SlotDuration)
}

// Slots returns a copy of every slot in chronological order.
func (g *Grid) Slots() []Slot {
	slots := make([]Slot, SlotsPerDay)
	for i := range slots {
		slots[i] = Slot{
			Start: g.slotStart(i),
			Price: g.prices[i],
			Set:   g.set[i],
		}
	}
	return slots
}

// Write sets price on every slot intersecting [start, end). The interval
// is clipped to the grid and an interval entirely outside of it is
// ignored. Later writes overwrite earlier ones.
func (g *Grid) Write(start, end time.Time, price float64) error {
	if !end.After(start) {
		return &InvalidIntervalError{Start: start, End: end}
	}
	gridEnd := g.End()
	if end.Before(g.start) || start.After(gridEnd) {
		return nil
	}
	if start.Before(g.start) {
		start = g.start
	}
	if end.After(gridEnd) {
		end = gridEnd
	}
	from := g.index(Floor(start))
	to := g.index(Ceil(end))
	for i := from; i < to; i++ {
		g.prices[i] = price
		g.set[i] = true
	}
	return nil
}

// FillUnset sets price on every unset slot starting at or after from and
// returns how many slots were filled.
func (g *Grid) FillUnset(from time.Time, price float64) int {
	var filled int
	for i := range g.prices {
		if g.set[i] || g.slotStart(i).Before(from) {
			continue
		}
		g.prices[i] = price
		g.set[i] = true
		filled++
	}
	return filled
}

// Gaps returns the keys of every unset slot.
func (g *Grid) Gaps() []time.Time {
	var gaps []time.Time
	for i, ok := range g.set {
		if !ok {
			gaps = append(gaps, g.slotStart(i))
		}
	}
	return gaps
}
