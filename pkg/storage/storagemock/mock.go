package storagemock

import (
	"context"
	"time"

	"github.com/raterudder/tousync/pkg/storage"
	"github.com/raterudder/tousync/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) LatestSnapshot(ctx context.Context, prefix string) (types.StoredSnapshot, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).(types.StoredSnapshot), args.Error(1)
}

func (m *MockDatabase) PutSnapshot(ctx context.Context, prefix string, snap types.StoredSnapshot) error {
	args := m.Called(ctx, prefix, snap)
	return args.Error(0)
}

func (m *MockDatabase) ListSnapshots(ctx context.Context, prefix string, start, end time.Time) ([]types.StoredSnapshot, error) {
	args := m.Called(ctx, prefix, start, end)
	if s := args.Get(0); s != nil {
		return s.([]types.StoredSnapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
