package tariff

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raterudder/tousync/pkg/log"
	"github.com/raterudder/tousync/pkg/schedule"
	"github.com/raterudder/tousync/pkg/types"
)

// Input is everything needed to build one schedule.
type Input struct {
	Now        time.Time
	Rates      []types.RateRecord
	Dispatches types.Dispatches
	Location   *time.Location
	// MaxGap is the longest tolerable span without published rates. Zero
	// means any gap is filled.
	MaxGap time.Duration
}

// Result is a synthesized schedule ready to be sent to a battery.
type Result struct {
	Classification Classification              `json:"classification"`
	Entries        []schedule.Entry            `json:"entries"`
	Slots          []schedule.TimeSlot         `json:"slots"`
	Periods        map[Label][]types.TOUPeriod `json:"periods"`
	// Prices are in major currency units.
	Prices    map[Label]float64 `json:"prices"`
	FilledGap time.Duration     `json:"filledGap"`
	Location  string            `json:"location"`
}

// Synthesize builds the daily time-of-use schedule for in. Any error aborts
// the whole synthesis, no partial schedule is ever returned.
func Synthesize(ctx context.Context, in Input) (Result, error) {
	loc := in.Location
	if loc == nil {
		loc = in.Now.Location()
	}

	grid, c, err := Classify(ctx, in.Now, in.Rates, in.Dispatches)
	if err != nil {
		return Result{}, err
	}
	gap, err := FillGap(ctx, grid, c, in.MaxGap)
	if err != nil {
		return Result{}, err
	}
	entries, err := grid.Final()
	if err != nil {
		return Result{}, err
	}
	slots := schedule.Project(entries, loc)

	res := Result{
		Classification: c,
		Entries:        entries,
		Slots:          slots,
		Periods:        make(map[Label][]types.TOUPeriod),
		Prices:         make(map[Label]float64, len(c.Tiers)),
		FilledGap:      gap,
		Location:       loc.String(),
	}
	for _, t := range c.Tiers {
		res.Prices[t.Label] = PriceInMajorUnits(t.Value)
	}
	for _, s := range slots {
		l, ok := c.Label(s.Price)
		if !ok {
			return Result{}, fmt.Errorf("no label for price %v", s.Price)
		}
		res.Periods[l] = append(res.Periods[l], types.TOUPeriod{
			FromDayOfWeek: 0,
			ToDayOfWeek:   6,
			FromHour:      s.Start.Hour(),
			FromMinute:    s.Start.Minute(),
			ToHour:        s.End.Hour(),
			ToMinute:      s.End.Minute(),
		})
	}

	log.Ctx(ctx).DebugContext(
		ctx,
		"synthesized schedule",
		slog.Time("start", grid.Start()),
		slog.String("location", loc.String()),
		slog.Int("entries", len(entries)),
		slog.Int("slots", len(slots)),
	)
	return res, nil
}
