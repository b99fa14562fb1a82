package storage

import (
	"context"
	"errors"
	"time"

	"github.com/raterudder/tousync/pkg/types"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Database persists snapshots of the source data fetched from the utility.
// Snapshots are grouped by prefix and ordered by their timestamp.
type Database interface {
	// LatestSnapshot returns the most recent snapshot for prefix or
	// ErrSnapshotNotFound.
	LatestSnapshot(ctx context.Context, prefix string) (types.StoredSnapshot, error)

	// PutSnapshot stores snap.JSON under prefix at snap.Timestamp.
	PutSnapshot(ctx context.Context, prefix string, snap types.StoredSnapshot) error

	// ListSnapshots returns the snapshots for prefix with timestamps in
	// [start, end), oldest first.
	ListSnapshots(ctx context.Context, prefix string, start, end time.Time) ([]types.StoredSnapshot, error)

	// Lifecycle
	Close() error
}

// Discard is a Database that stores nothing.
type Discard struct{}

// LatestSnapshot always returns ErrSnapshotNotFound.
func (Discard) LatestSnapshot(ctx context.Context, prefix string) (types.StoredSnapshot, error) {
	return types.StoredSnapshot{}, ErrSnapshotNotFound
}

// PutSnapshot drops the snapshot.
func (Discard) PutSnapshot(ctx context.Context, prefix string, snap types.StoredSnapshot) error {
	return nil
}

// ListSnapshots always returns nothing.
func (Discard) ListSnapshots(ctx context.Context, prefix string, start, end time.Time) ([]types.StoredSnapshot, error) {
	return nil, nil
}

// Close implements Database.
func (Discard) Close() error {
	return nil
}
