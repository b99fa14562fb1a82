package ess

import (
	"context"
	"time"

	"github.com/raterudder/tousync/pkg/types"
)

// System defines the interface for interacting with a home battery's tariff
// configuration (like a Tesla Powerwall).
type System interface {
	// GetTariff returns the tariff currently configured on the battery.
	GetTariff(ctx context.Context) (types.Tariff, error)

	// SetTariff replaces the battery's tariff.
	SetTariff(ctx context.Context, tariff types.Tariff) error

	// InstallationTimeZone returns the timezone the battery interprets
	// time-of-use periods in.
	InstallationTimeZone(ctx context.Context) (*time.Location, error)
}
