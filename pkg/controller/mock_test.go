package controller

import (
	"context"
	"log/slog"

	"github.com/raterudder/tousync/pkg/log"
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
