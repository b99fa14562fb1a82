package tariff

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/raterudder/tousync/pkg/log"
	"github.com/raterudder/tousync/pkg/schedule"
	"github.com/raterudder/tousync/pkg/types"
)

// endOfTime stands in for the validity of a rate with no announced end.
var endOfTime = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Tier is a distinct rate value and the label it was given.
type Tier struct {
	Label      Label     `json:"label"`
	Value      float64   `json:"value"`
	MaxValidTo time.Time `json:"maxValidTo"`
}

// Classification labels every distinct rate value found for a window.
type Classification struct {
	Strategy Strategy `json:"strategy"`
	Tiers    []Tier   `json:"tiers"`

	// MaxValidTo is the end of the latest published rate.
	MaxValidTo time.Time `json:"maxValidTo"`

	// ChangeAt is when the older pair stops applying. It is only set for
	// StrategyRateChange.
	ChangeAt time.Time `json:"changeAt,omitzero"`
}

// Label returns the label for a rate value.
func (c Classification) Label(value float64) (Label, bool) {
	for _, t := range c.Tiers {
		if t.Value == value {
			return t.Label, true
		}
	}
	return "", false
}

// Value returns the rate value for a label.
func (c Classification) Value(l Label) (float64, bool) {
	for _, t := range c.Tiers {
		if t.Label == l {
			return t.Value, true
		}
	}
	return 0, false
}

func (c Classification) mustValue(l Label) float64 {
	v, ok := c.Value(l)
	if !ok {
		panic(fmt.Sprintf("classification is missing %s", l))
	}
	return v
}

// CheapAt returns the cheap value in force at t.
func (c Classification) CheapAt(t time.Time) float64 {
	if c.Strategy == StrategyRateChange && !t.Before(c.ChangeAt) {
		return c.mustValue(NewCheap)
	}
	return c.mustValue(Cheap)
}

// Fallback returns the value used to fill slots after the last published
// rate, which is the newest expensive tier.
func (c Classification) Fallback() float64 {
	if c.Strategy == StrategyRateChange {
		return c.mustValue(NewExpensive)
	}
	return c.mustValue(Expensive)
}

// Classify writes rates and smart-charge dispatches onto a new grid starting
// at now and labels the distinct rate values. Dispatches are written last so
// they always win over published rates.
func Classify(ctx context.Context, now time.Time, rates []types.RateRecord, dispatches types.Dispatches) (*schedule.Grid, Classification, error) {
	grid := schedule.NewGrid(now)

	sorted := make([]types.RateRecord, len(rates))
	copy(sorted, rates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ValidFrom.Before(sorted[j].ValidFrom)
	})

	maxValidTo := make(map[float64]time.Time)
	var values []float64
	var latest time.Time
	for _, r := range sorted {
		validTo := r.ValidTo
		if r.OpenEnded() {
			validTo = endOfTime
		}
		if err := grid.Write(r.ValidFrom, validTo, r.Value); err != nil {
			return nil, Classification{}, fmt.Errorf("failed to write rate %v: %w", r.Value, err)
		}
		prev, ok := maxValidTo[r.Value]
		if !ok {
			values = append(values, r.Value)
		}
		if !ok || validTo.After(prev) {
			maxValidTo[r.Value] = validTo
		}
		if validTo.After(latest) {
			latest = validTo
		}
	}

	strategy, ok := strategyFor(len(values))
	if !ok {
		sort.Float64s(values)
		return nil, Classification{}, &UnexpectedRateCountError{Values: values}
	}

	// oldest validity first, ties broken by value so the result is stable
	sort.Slice(values, func(i, j int) bool {
		vi, vj := maxValidTo[values[i]], maxValidTo[values[j]]
		if !vi.Equal(vj) {
			return vi.Before(vj)
		}
		return values[i] < values[j]
	})

	c := Classification{
		Strategy:   strategy,
		MaxValidTo: latest,
	}
	pair := func(a, b float64, cheap, expensive Label) {
		if b < a {
			a, b = b, a
		}
		c.Tiers = append(c.Tiers,
			Tier{Label: cheap, Value: a, MaxValidTo: maxValidTo[a]},
			Tier{Label: expensive, Value: b, MaxValidTo: maxValidTo[b]},
		)
	}
	switch strategy {
	case StrategyTwoTier:
		pair(values[0], values[1], Cheap, Expensive)
	case StrategyRateChange:
		pair(values[0], values[1], Cheap, Expensive)
		pair(values[2], values[3], NewCheap, NewExpensive)
		c.ChangeAt = maxValidTo[values[1]]
	}

	for _, d := range dispatches.Planned {
		if !d.SmartCharge() {
			continue
		}
		if err := grid.Write(d.StartDtUtc, d.EndDtUtc, c.CheapAt(d.StartDtUtc)); err != nil {
			return nil, Classification{}, fmt.Errorf("failed to write dispatch: %w", err)
		}
	}

	log.Ctx(ctx).DebugContext(
		ctx,
		"classified rates",
		slog.String("strategy", strategy.String()),
		slog.Any("tiers", c.Tiers),
		slog.Time("maxValidTo", latest),
	)
	return grid, c, nil
}
