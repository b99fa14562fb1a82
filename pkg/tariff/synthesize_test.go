package tariff

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/raterudder/tousync/pkg/schedule"
	"github.com/raterudder/tousync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := types.ParseInstant(s)
	require.NoError(t, err)
	return parsed
}

func rate(t *testing.T, value float64, from, to string) types.RateRecord {
	return types.RateRecord{Value: value, ValidFrom: ts(t, from), ValidTo: ts(t, to)}
}

func dispatch(t *testing.T, source, start, end string) types.Dispatch {
	return types.Dispatch{
		StartDtUtc: ts(t, start),
		EndDtUtc:   ts(t, end),
		Meta:       types.DispatchMeta{Source: source},
	}
}

func period(fromHour, fromMinute, toHour, toMinute int) types.TOUPeriod {
	return types.TOUPeriod{
		FromDayOfWeek: 0,
		ToDayOfWeek:   6,
		FromHour:      fromHour,
		FromMinute:    fromMinute,
		ToHour:        toHour,
		ToMinute:      toMinute,
	}
}

func sampleRates29Feb(t *testing.T) []types.RateRecord {
	return []types.RateRecord{
		rate(t, 7.49994, "2024-02-28T23:30:00+00:00", "2024-02-29T05:30:00+00:00"),
		rate(t, 30.59805, "2024-02-29T05:30:00+00:00", "2024-02-29T23:30:00+00:00"),
		rate(t, 7.49994, "2024-02-29T23:30:00+00:00", "2024-03-01T05:30:00+00:00"),
		rate(t, 30.59805, "2024-03-01T05:30:00+00:00", "2024-03-01T23:30:00+00:00"),
		rate(t, 7.49994, "2024-03-01T23:30:00+00:00", "2024-03-02T05:30:00+00:00"),
	}
}

func basicPeriods() map[Label][]types.TOUPeriod {
	return map[Label][]types.TOUPeriod{
		Expensive: {period(5, 30, 23, 30)},
		Cheap:     {period(0, 0, 5, 30), period(23, 30, 0, 0)},
	}
}

func TestSynthesize(t *testing.T) {
	ctx := context.Background()
	london := mustLoad(t, "Europe/London")

	t.Run("no dispatches", func(t *testing.T) {
		res, err := Synthesize(ctx, Input{
			Now:      time.Date(2024, 2, 29, 16, 42, 12, 0, london),
			Rates:    sampleRates29Feb(t),
			Location: london,
		})
		require.NoError(t, err)
		assert.Equal(t, basicPeriods(), res.Periods)
		assert.Equal(t, map[Label]float64{Cheap: 0.07, Expensive: 0.31}, res.Prices)
		assert.Equal(t, StrategyTwoTier, res.Classification.Strategy)
		assert.Zero(t, res.FilledGap)
		assert.Equal(t, "Europe/London", res.Location)
	})

	t.Run("dispatches inside cheap window", func(t *testing.T) {
		res, err := Synthesize(ctx, Input{
			Now:   time.Date(2024, 2, 29, 16, 42, 12, 0, london),
			Rates: sampleRates29Feb(t),
			Dispatches: types.Dispatches{
				Planned: []types.Dispatch{
					dispatch(t, types.DispatchSourceSmartCharge, "2024-02-29 23:30:00+00:00", "2024-03-01 00:00:00+00:00"),
					dispatch(t, types.DispatchSourceSmartCharge, "2024-03-01 02:00:00+00:00", "2024-03-01 02:30:00+00:00"),
					dispatch(t, types.DispatchSourceSmartCharge, "2024-03-01 02:30:00+00:00", "2024-03-01 05:00:00+00:00"),
				},
			},
			Location: london,
		})
		require.NoError(t, err)
		assert.Equal(t, basicPeriods(), res.Periods)
	})

	t.Run("dispatch extends cheap window", func(t *testing.T) {
		res, err := Synthesize(ctx, Input{
			Now:   time.Date(2024, 2, 29, 21, 48, 0, 0, london),
			Rates: sampleRates29Feb(t),
			Dispatches: types.Dispatches{
				Planned: []types.Dispatch{
					dispatch(t, types.DispatchSourceSmartCharge, "2024-02-29 21:47:30+00:00", "2024-03-01 05:30:00+00:00"),
				},
			},
			Location: london,
		})
		require.NoError(t, err)
		assert.Equal(t, map[Label][]types.TOUPeriod{
			Expensive: {period(5, 30, 21, 30)},
			Cheap:     {period(0, 0, 5, 30), period(21, 30, 0, 0)},
		}, res.Periods)
		assert.Equal(t, map[Label]float64{Cheap: 0.07, Expensive: 0.31}, res.Prices)
	})

	t.Run("dispatch is not smart charge", func(t *testing.T) {
		res, err := Synthesize(ctx, Input{
			Now:   time.Date(2024, 2, 29, 21, 48, 0, 0, london),
			Rates: sampleRates29Feb(t),
			Dispatches: types.Dispatches{
				Planned: []types.Dispatch{
					dispatch(t, "bump", "2024-02-29 21:47:30+00:00", "2024-03-01 05:30:00+00:00"),
				},
				// completed dispatches never change the schedule
				Completed: []types.Dispatch{
					dispatch(t, types.DispatchSourceSmartCharge, "2024-02-29 21:47:30+00:00", "2024-03-01 05:30:00+00:00"),
				},
			},
			Location: london,
		})
		require.NoError(t, err)
		assert.Equal(t, basicPeriods(), res.Periods)
	})

	t.Run("rate change", func(t *testing.T) {
		rates := []types.RateRecord{
			rate(t, 8, "2024-03-01T00:00:00Z", "2024-03-01T05:30:00Z"),
			rate(t, 28, "2024-03-01T05:30:00Z", "2024-03-01T23:30:00Z"),
			rate(t, 8, "2024-03-01T23:30:00Z", "2024-03-02T05:30:00Z"),
			rate(t, 7.49994, "2024-02-28T23:30:00Z", "2024-02-29T05:30:00Z"),
			rate(t, 30.59805, "2024-02-29T05:30:00Z", "2024-02-29T23:30:00Z"),
			rate(t, 7.49994, "2024-02-29T23:30:00Z", "2024-03-01T00:00:00Z"),
		}
		res, err := Synthesize(ctx, Input{
			Now:      time.Date(2024, 2, 29, 16, 42, 12, 0, london),
			Rates:    rates,
			Location: london,
		})
		require.NoError(t, err)
		assert.Equal(t, StrategyRateChange, res.Classification.Strategy)
		assert.True(t, ts(t, "2024-03-01T00:00:00Z").Equal(res.Classification.ChangeAt))
		assert.Equal(t, map[Label][]types.TOUPeriod{
			NewCheap:     {period(0, 0, 5, 30)},
			NewExpensive: {period(5, 30, 16, 30)},
			Expensive:    {period(16, 30, 23, 30)},
			Cheap:        {period(23, 30, 0, 0)},
		}, res.Periods)
		assert.Equal(t, map[Label]float64{
			Cheap:        0.07,
			Expensive:    0.31,
			NewCheap:     0.08,
			NewExpensive: 0.28,
		}, res.Prices)

		// each dispatch uses the cheap rate in force when it starts
		res, err = Synthesize(ctx, Input{
			Now:   time.Date(2024, 2, 29, 16, 42, 12, 0, london),
			Rates: rates,
			Dispatches: types.Dispatches{
				Planned: []types.Dispatch{
					dispatch(t, types.DispatchSourceSmartCharge, "2024-02-29T22:00:00Z", "2024-02-29T23:30:00Z"),
					dispatch(t, types.DispatchSourceSmartCharge, "2024-03-01T02:00:00Z", "2024-03-01T06:30:00Z"),
				},
			},
			Location: london,
		})
		require.NoError(t, err)
		assert.Equal(t, map[Label][]types.TOUPeriod{
			NewCheap:     {period(0, 0, 6, 30)},
			NewExpensive: {period(6, 30, 16, 30)},
			Expensive:    {period(16, 30, 22, 0)},
			Cheap:        {period(22, 0, 0, 0)},
		}, res.Periods)
	})

	t.Run("fills trailing gap", func(t *testing.T) {
		rates := []types.RateRecord{
			rate(t, 7.49994, "2024-02-28T23:30:00Z", "2024-02-29T05:30:00Z"),
			rate(t, 30.59805, "2024-02-29T05:30:00Z", "2024-02-29T23:30:00Z"),
		}
		in := Input{
			Now:   time.Date(2024, 2, 29, 16, 42, 12, 0, london),
			Rates: rates,
			Dispatches: types.Dispatches{
				Planned: []types.Dispatch{
					dispatch(t, types.DispatchSourceSmartCharge, "2024-03-01T01:00:00Z", "2024-03-01T03:00:00Z"),
				},
			},
			Location: london,
		}
		res, err := Synthesize(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, 17*time.Hour, res.FilledGap)
		assert.Equal(t, map[Label][]types.TOUPeriod{
			Expensive: {period(0, 0, 1, 0), period(3, 0, 0, 0)},
			Cheap:     {period(1, 0, 3, 0)},
		}, res.Periods)

		in.MaxGap = 12 * time.Hour
		_, err = Synthesize(ctx, in)
		assert.ErrorIs(t, err, ErrGapTooLarge)
		var gapErr *GapTooLargeError
		require.ErrorAs(t, err, &gapErr)
		assert.Equal(t, 17*time.Hour, gapErr.Gap)

		in.MaxGap = 18 * time.Hour
		_, err = Synthesize(ctx, in)
		assert.NoError(t, err)
	})

	t.Run("gap inside published rates", func(t *testing.T) {
		rates := sampleRates29Feb(t)
		rates[3] = rate(t, 30.59805, "2024-03-01T06:30:00+00:00", "2024-03-01T23:30:00+00:00")
		_, err := Synthesize(ctx, Input{
			Now:      time.Date(2024, 2, 29, 16, 42, 12, 0, london),
			Rates:    rates,
			Location: london,
		})
		assert.ErrorIs(t, err, schedule.ErrScheduleGap)
		assert.ErrorContains(t, err, "2024-03-01T05:30:00Z")
		assert.ErrorContains(t, err, "2024-03-01T06:00:00Z")
	})

	t.Run("unexpected rate count", func(t *testing.T) {
		rates := append(sampleRates29Feb(t), rate(t, 15, "2024-03-01T12:00:00Z", "2024-03-01T13:00:00Z"))
		_, err := Synthesize(ctx, Input{
			Now:   time.Date(2024, 2, 29, 16, 42, 12, 0, london),
			Rates: rates,
		})
		assert.ErrorIs(t, err, ErrUnexpectedRateCount)
		var countErr *UnexpectedRateCountError
		require.ErrorAs(t, err, &countErr)
		assert.Equal(t, []float64{7.49994, 15, 30.59805}, countErr.Values)

		_, err = Synthesize(ctx, Input{Now: time.Date(2024, 2, 29, 16, 42, 12, 0, london)})
		assert.ErrorIs(t, err, ErrUnexpectedRateCount)
	})

	t.Run("invalid rate", func(t *testing.T) {
		rates := append(sampleRates29Feb(t), rate(t, 7.49994, "2024-03-01T12:00:00Z", "2024-03-01T12:00:00Z"))
		_, err := Synthesize(ctx, Input{
			Now:   time.Date(2024, 2, 29, 16, 42, 12, 0, london),
			Rates: rates,
		})
		assert.ErrorIs(t, err, schedule.ErrInvalidInterval)
	})

	t.Run("other timezone", func(t *testing.T) {
		chicago := mustLoad(t, "America/Chicago")
		res, err := Synthesize(ctx, Input{
			Now:      time.Date(2024, 2, 29, 16, 42, 12, 0, london),
			Rates:    sampleRates29Feb(t),
			Location: chicago,
		})
		require.NoError(t, err)
		assert.Equal(t, map[Label][]types.TOUPeriod{
			Expensive: {period(0, 0, 17, 30), period(23, 30, 0, 0)},
			Cheap:     {period(17, 30, 23, 30)},
		}, res.Periods)
		assert.Equal(t, "America/Chicago", res.Location)
	})

	t.Run("result json", func(t *testing.T) {
		res, err := Synthesize(ctx, Input{
			Now:   time.Date(2024, 2, 29, 16, 42, 12, 0, london),
			Rates: sampleRates29Feb(t),
		})
		require.NoError(t, err)
		b, err := json.Marshal(res)
		require.NoError(t, err)
		var raw map[string]any
		require.NoError(t, json.Unmarshal(b, &raw))
		assert.Contains(t, raw["periods"], "CHEAP")
		assert.Equal(t, "05:30", raw["slots"].([]any)[1].(map[string]any)["start"])
	})
}
