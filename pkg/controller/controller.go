package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/tousync/pkg/ess"
	"github.com/raterudder/tousync/pkg/log"
	"github.com/raterudder/tousync/pkg/storage"
	"github.com/raterudder/tousync/pkg/tariff"
	"github.com/raterudder/tousync/pkg/types"
	"github.com/raterudder/tousync/pkg/utility"
)

// SnapshotPrefix is the prefix source data snapshots are stored under.
const SnapshotPrefix = "octopus-dispatches"

// Options control what a sync cycle does.
type Options struct {
	// Timezone overrides the battery's installation timezone when set.
	Timezone *time.Location
	// Sync pushes the synthesized tariff to the battery.
	Sync bool
	// Force writes a snapshot and pushes the tariff even when nothing
	// changed.
	Force bool
	// MaxFillGap is the longest tolerable span without published rates.
	// Zero means unlimited.
	MaxFillGap time.Duration
}

// Outcome describes a single sync cycle.
type Outcome struct {
	RunID   string         `json:"runID"`
	Time    time.Time      `json:"time"`
	Result  *tariff.Result `json:"result,omitempty"`
	Tariff  types.Tariff   `json:"tariff,omitempty"`
	Updated bool           `json:"updated"`
	Error   string         `json:"error,omitempty"`
}

// Syncer keeps a battery's tariff in step with the utility's rates and
// dispatches. Cycles never overlap.
type Syncer struct {
	utility  utility.Provider
	ess      ess.System
	dumper   *storage.Dumper
	opts     Options
	runEvery time.Duration
	metrics  *Metrics
	now      func() time.Time

	mu     sync.Mutex
	tariff types.Tariff

	lastMu sync.RWMutex
	last   *Outcome
}

// New returns a Syncer. A nil dumper disables snapshots.
func New(u utility.Provider, e ess.System, dumper *storage.Dumper, opts Options) *Syncer {
	return &Syncer{
		utility: u,
		ess:     e,
		dumper:  dumper,
		opts:    opts,
		metrics: NewMetrics(),
		now:     time.Now,
	}
}

type validator interface {
	Validate() error
}

// Configured sets up a Syncer from flags using the selected utility and
// battery.
func Configured(u *utility.Map, e *ess.Map, db storage.Database) *Syncer {
	s := New(nil, nil, nil, Options{})

	timezone := lflag.String("timezone", "", "Timezone to build the schedule in (defaults to the battery's installation timezone)")
	runEvery := lflag.Duration("run-every", 0, "How often to sync (0 runs once and exits)")
	syncTariff := lflag.Bool("sync", true, "Push the synthesized tariff to the battery")
	dump := lflag.Bool("dump", true, "Store snapshots of the utility data when it changes")
	force := lflag.Bool("force", false, "Store a snapshot and push the tariff even when unchanged")
	maxFillGap := lflag.Duration("max-fill-gap", 0, "Longest span without published rates to fill (0 means unlimited)")

	lflag.Do(func() {
		p, err := u.Selected()
		if err != nil {
			panic(fmt.Sprintf("utility provider: %v", err))
		}
		if v, ok := p.(validator); ok {
			if err := v.Validate(); err != nil {
				panic(fmt.Sprintf("utility validation failed: %v", err))
			}
		}
		sys, err := e.Selected()
		if err != nil {
			panic(fmt.Sprintf("ess provider: %v", err))
		}
		if v, ok := sys.(validator); ok {
			if err := v.Validate(); err != nil {
				panic(fmt.Sprintf("ess validation failed: %v", err))
			}
		}
		s.utility = p
		s.ess = sys

		if *timezone != "" {
			loc, err := time.LoadLocation(*timezone)
			if err != nil {
				panic(fmt.Sprintf("invalid timezone: %v", err))
			}
			s.opts.Timezone = loc
		}
		if *runEvery < 0 {
			panic("run-every must not be negative")
		}
		if *maxFillGap < 0 {
			panic("max-fill-gap must not be negative")
		}
		s.runEvery = *runEvery
		s.opts.Sync = *syncTariff
		s.opts.Force = *force
		s.opts.MaxFillGap = *maxFillGap
		if *dump {
			s.dumper = storage.NewDumper(db, SnapshotPrefix)
		}
	})
	return s
}

// RunEvery returns the configured sync period. Zero means run once.
func (s *Syncer) RunEvery() time.Duration {
	return s.runEvery
}

// Metrics returns the syncer's metrics.
func (s *Syncer) Metrics() *Metrics {
	return s.metrics
}

// Last returns the outcome of the most recent cycle.
func (s *Syncer) Last() (Outcome, bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	if s.last == nil {
		return Outcome{}, false
	}
	return *s.last, true
}

// Run performs one sync cycle. The returned Outcome is also recorded for
// Last, including when the cycle failed.
func (s *Syncer) Run(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, runID := log.WithRun(ctx)
	out := Outcome{
		RunID: runID,
		Time:  s.now(),
	}
	err := s.run(ctx, &out)
	if err != nil {
		out.Error = err.Error()
		s.metrics.cycles.WithLabelValues("error").Inc()
		log.Ctx(ctx).ErrorContext(ctx, "sync cycle failed", slog.Any("error", err))
	} else {
		s.metrics.cycles.WithLabelValues("success").Inc()
		s.metrics.lastSuccess.Set(float64(out.Time.Unix()))
		log.Ctx(ctx).DebugContext(ctx, "sync cycle finished", slog.Bool("updated", out.Updated))
	}

	s.lastMu.Lock()
	s.last = &out
	s.lastMu.Unlock()
	return out, err
}

func (s *Syncer) run(ctx context.Context, out *Outcome) error {
	dispatches, err := s.utility.Dispatches(ctx)
	if err != nil {
		return fmt.Errorf("failed to get dispatches: %w", err)
	}
	agreement, err := s.utility.Agreement(ctx)
	if err != nil {
		return fmt.Errorf("failed to get agreement: %w", err)
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched agreement",
		slog.String("tariffCode", agreement.TariffCode),
		slog.Int("unitRates", len(agreement.UnitRates)),
		slog.Int("plannedDispatches", len(dispatches.Planned)),
	)

	if s.dumper != nil {
		if _, err := s.dumper.Update(ctx, types.NewSnapshot(dispatches, agreement), s.opts.Force); err != nil {
			return fmt.Errorf("failed to store snapshot: %w", err)
		}
	}

	loc := s.opts.Timezone
	if loc == nil {
		loc, err = s.ess.InstallationTimeZone(ctx)
		if err != nil {
			return fmt.Errorf("failed to get installation timezone: %w", err)
		}
	}

	res, err := tariff.Synthesize(ctx, tariff.Input{
		Now:        out.Time,
		Rates:      agreement.UnitRates,
		Dispatches: dispatches,
		Location:   loc,
		MaxGap:     s.opts.MaxFillGap,
	})
	if err != nil {
		return err
	}
	out.Result = &res
	s.metrics.filledGap.Set(res.FilledGap.Hours())

	if !s.opts.Sync {
		log.Ctx(ctx).WarnContext(ctx, "not updating battery tariff")
		return nil
	}

	if s.tariff == nil {
		current, err := s.ess.GetTariff(ctx)
		if err != nil {
			return fmt.Errorf("failed to get battery tariff: %w", err)
		}
		s.tariff = current
	}

	required, err := ess.BuildTariff(s.tariff, agreement, res)
	if err != nil {
		return err
	}
	out.Tariff = required
	if !s.opts.Force && s.tariff.Equal(required) {
		log.Ctx(ctx).DebugContext(ctx, "battery tariff unchanged")
		return nil
	}

	log.Ctx(ctx).InfoContext(ctx, "planned dispatches", slog.String("dispatches", formatDispatches(dispatches.Planned)))
	if err := s.ess.SetTariff(ctx, required); err != nil {
		return fmt.Errorf("failed to set battery tariff: %w", err)
	}
	out.Updated = true
	s.metrics.updates.Inc()

	diff, err := Diff(s.tariff.Indented(), required.Indented(), "current", "required")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to diff tariffs", slog.Any("error", err))
	}
	log.Ctx(ctx).InfoContext(ctx, "battery tariff updated", slog.String("diff", diff))

	current, err := s.ess.GetTariff(ctx)
	if err != nil {
		// the next cycle reads it again
		s.tariff = nil
		return fmt.Errorf("failed to get battery tariff after update: %w", err)
	}
	s.tariff = current
	return nil
}

// Every runs a cycle immediately and then every interval until ctx is
// done. Failed cycles are logged and retried on the next tick.
func (s *Syncer) Every(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		_, _ = s.Run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func formatDispatches(dispatches []types.Dispatch) string {
	var b strings.Builder
	for _, d := range dispatches {
		fmt.Fprintf(
			&b,
			"%s -> %s %s kWh source=%s\n",
			d.StartDtUtc.Format(time.RFC3339),
			d.EndDtUtc.Format(time.RFC3339),
			d.ChargeKWh,
			d.Meta.Source,
		)
	}
	return b.String()
}
