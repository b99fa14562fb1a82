package utility

import (
	"context"

	"github.com/raterudder/tousync/pkg/types"
)

// Provider fetches an account's tariff and vehicle dispatches from a
// utility.
type Provider interface {
	// Agreement returns the account's active electricity agreement
	// including its published unit rates.
	Agreement(ctx context.Context) (types.Agreement, error)

	// Dispatches returns the planned and completed vehicle dispatches.
	Dispatches(ctx context.Context) (types.Dispatches, error)
}
