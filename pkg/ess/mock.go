package ess

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/raterudder/tousync/pkg/log"
	"github.com/raterudder/tousync/pkg/types"
)

// Mock is an in-memory System used for dry runs and tests.
type Mock struct {
	mu       sync.Mutex
	tariff   types.Tariff
	location *time.Location
	updates  int
}

// NewMock returns a Mock holding tariff in loc. A nil loc is UTC.
func NewMock(tariff types.Tariff, loc *time.Location) *Mock {
	if tariff == nil {
		tariff = types.Tariff{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Mock{
		tariff:   tariff,
		location: loc,
	}
}

// GetTariff returns a copy of the stored tariff.
func (m *Mock) GetTariff(ctx context.Context) (types.Tariff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tariff.Clone()
}

// SetTariff stores a copy of tariff.
func (m *Mock) SetTariff(ctx context.Context, tariff types.Tariff) error {
	clone, err := tariff.Clone()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tariff = clone
	m.updates++
	log.Ctx(ctx).InfoContext(ctx, "mock tariff updated", slog.Int("updates", m.updates))
	return nil
}

// InstallationTimeZone implements System.
func (m *Mock) InstallationTimeZone(ctx context.Context) (*time.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.location, nil
}

// Updates returns how many times SetTariff was called.
func (m *Mock) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}
