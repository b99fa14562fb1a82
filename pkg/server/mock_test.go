package server

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/raterudder/tousync/pkg/controller"
	"github.com/raterudder/tousync/pkg/ess"
	"github.com/raterudder/tousync/pkg/log"
	"github.com/raterudder/tousync/pkg/storage"
	"github.com/raterudder/tousync/pkg/types"
	"github.com/stretchr/testify/mock"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}

type mockUtility struct {
	mock.Mock
}

func (m *mockUtility) Agreement(ctx context.Context) (types.Agreement, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.Agreement), args.Error(1)
}

func (m *mockUtility) Dispatches(ctx context.Context) (types.Dispatches, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.Dispatches), args.Error(1)
}

// testAgreement has rates covering the next day from now.
func testAgreement(now time.Time) types.Agreement {
	start := now.Truncate(24 * time.Hour)
	var rates []types.RateRecord
	for day := range 3 {
		d := start.Add(time.Duration(day) * 24 * time.Hour)
		rates = append(rates,
			types.RateRecord{Value: 7.5, ValidFrom: d.Add(-30 * time.Minute), ValidTo: d.Add(5*time.Hour + 30*time.Minute)},
			types.RateRecord{Value: 30.6, ValidFrom: d.Add(5*time.Hour + 30*time.Minute), ValidTo: d.Add(23*time.Hour + 30*time.Minute)},
		)
	}
	return types.Agreement{
		TariffCode: "E-1R-INTELLI-VAR-22-10-14-C",
		FullName:   "Intelligent Octopus Go",
		UnitRates:  rates,
	}
}

func newTestServer(t *testing.T, u *mockUtility, db storage.Database) (*Server, *ess.Mock) {
	t.Helper()
	battery := ess.NewMock(nil, time.UTC)
	syncer := controller.New(u, battery, nil, controller.Options{Sync: true})
	return &Server{
		syncer:     syncer,
		storage:    db,
		listenAddr: ":8080",
		serverName: "tousync",
	}, battery
}
