package tariff

import (
	"context"
	"log/slog"
	"time"

	"github.com/raterudder/tousync/pkg/log"
	"github.com/raterudder/tousync/pkg/schedule"
)

// FillGap fills every unset slot at or after the end of the published rates
// with the classification's fallback value and returns the length of the
// uncovered span. A positive maxGap makes a longer span an error, in which
// case the grid is left untouched.
func FillGap(ctx context.Context, grid *schedule.Grid, c Classification, maxGap time.Duration) (time.Duration, error) {
	if !c.MaxValidTo.Before(grid.End()) {
		return 0, nil
	}
	gap := grid.End().Sub(c.MaxValidTo)
	if maxGap > 0 && gap > maxGap {
		return gap, &GapTooLargeError{Gap: gap, Max: maxGap}
	}
	filled := grid.FillUnset(c.MaxValidTo, c.Fallback())
	log.Ctx(ctx).WarnContext(
		ctx,
		"rates end before the schedule, filling with the expensive rate",
		slog.Float64("gapHours", gap.Hours()),
		slog.Time("maxValidTo", c.MaxValidTo),
		slog.Float64("value", c.Fallback()),
		slog.Int("slots", filled),
	)
	return gap, nil
}
