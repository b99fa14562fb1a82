package schedule

import (
	"time"
)

// Entry is a maximal run of identically priced time, [Start, End).
type Entry struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Price float64   `json:"price"`
}

// Duration returns the absolute length of the entry.
func (e Entry) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Final compresses the grid into the minimal list of entries covering its
// window. It fails with a *GapError if any slot is unset.
func (g *Grid) Final() ([]Entry, error) {
	if gaps := g.Gaps(); len(gaps) > 0 {
		return nil, &GapError{Slots: gaps}
	}
	// each slot ends at the next slot's key, never at a wall clock addition
	entries := make([]Entry, SlotsPerDay)
	for i := range entries {
		entries[i] = Entry{
			Start: g.slotStart(i),
			End:   g.slotStart(i + 1),
			Price: g.prices[i],
		}
	}
	return Compress(entries), nil
}

// Compress merges consecutive, touching entries with equal prices.
// Compressing an already compressed list returns an equal list.
func Compress(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if n := len(out); n > 0 && out[n-1].Price == e.Price && out[n-1].End.Equal(e.Start) {
			out[n-1].End = e.End
			continue
		}
		out = append(out, e)
	}
	return out
}
