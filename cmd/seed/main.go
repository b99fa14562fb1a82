package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/tousync/pkg/controller"
	"github.com/raterudder/tousync/pkg/log"
	"github.com/raterudder/tousync/pkg/storage"
	"github.com/raterudder/tousync/pkg/types"
)

// seed writes a day of plausible snapshot history so the snapshot changes
// endpoint has something to show during local development.
func main() {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	}
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()
	defer s.Close()

	log.Ctx(ctx).InfoContext(ctx, "seeding snapshots")

	// Use a new random source
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	now := time.Now().UTC()
	start := now.Truncate(24 * time.Hour)

	agreement := types.Agreement{
		TariffCode:  "E-1R-INTELLI-VAR-22-10-14-C",
		FullName:    "Intelligent Octopus Go",
		DisplayName: "Intelligent Octopus Go",
		ProductCode: "INTELLI-VAR-22-10-14",
		ValidFrom:   start.AddDate(-1, 0, 0),
	}
	for day := -1; day < 2; day++ {
		d := start.AddDate(0, 0, day)
		agreement.UnitRates = append(agreement.UnitRates,
			types.RateRecord{Value: 7.49994, ValidFrom: d.Add(-30 * time.Minute), ValidTo: d.Add(5*time.Hour + 30*time.Minute)},
			types.RateRecord{Value: 30.59805, ValidFrom: d.Add(5*time.Hour + 30*time.Minute), ValidTo: d.Add(23*time.Hour + 30*time.Minute)},
		)
	}

	var planned []types.Dispatch
	var last []byte
	var written int
	// check for new dispatches every half hour
	for t := start; t.Before(now); t = t.Add(30 * time.Minute) {
		// the car is plugged in during the evening and gets a new plan
		if t.Hour() >= 17 && rng.Intn(4) == 0 {
			dispatchStart := t.Add(time.Duration(1+rng.Intn(4)) * 30 * time.Minute)
			planned = append(planned, types.Dispatch{
				StartDtUtc: dispatchStart,
				EndDtUtc:   dispatchStart.Add(time.Duration(1+rng.Intn(6)) * 30 * time.Minute),
				ChargeKWh:  fmt.Sprintf("%.2f", -rng.Float64()*10),
				Meta:       types.DispatchMeta{Source: types.DispatchSourceSmartCharge},
			})
		}

		snap := types.NewSnapshot(types.Dispatches{Planned: planned}, agreement)
		b, err := snap.Marshal()
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to marshal snapshot", "error", err)
			os.Exit(1)
		}
		if bytes.Equal(b, last) {
			continue
		}
		if err := s.PutSnapshot(ctx, controller.SnapshotPrefix, types.StoredSnapshot{
			Timestamp: t,
			Snapshot:  snap,
			JSON:      b,
		}); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed snapshot", "error", err)
			os.Exit(1)
		}
		last = b
		written++
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded snapshots", "count", written)
}
