package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raterudder/tousync/pkg/log"
	"github.com/raterudder/tousync/pkg/types"
)

// Dumper writes a snapshot only when it differs from the last one written
// under its prefix.
type Dumper struct {
	db     Database
	prefix string
	now    func() time.Time

	mu     sync.Mutex
	loaded bool
	last   []byte
	lastAt time.Time
}

// NewDumper returns a Dumper writing to db under prefix.
func NewDumper(db Database, prefix string) *Dumper {
	return &Dumper{
		db:     db,
		prefix: prefix,
		now:    time.Now,
	}
}

// Prefix returns the prefix snapshots are written under.
func (d *Dumper) Prefix() string {
	return d.prefix
}

// Update stores snap if it changed since the last stored snapshot, or if
// force is set, and returns whether it was stored. The latest stored
// snapshot is loaded on first use.
func (d *Dumper) Update(ctx context.Context, snap types.Snapshot, force bool) (bool, error) {
	b, err := snap.Marshal()
	if err != nil {
		return false, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		latest, err := d.db.LatestSnapshot(ctx, d.prefix)
		switch {
		case errors.Is(err, ErrSnapshotNotFound):
		case err != nil:
			return false, fmt.Errorf("failed to load latest snapshot: %w", err)
		default:
			log.Ctx(ctx).InfoContext(
				ctx,
				"loaded latest snapshot",
				slog.String("prefix", d.prefix),
				slog.Time("timestamp", latest.Timestamp),
			)
			d.last = latest.JSON
			d.lastAt = latest.Timestamp
		}
		d.loaded = true
	}

	if !force && bytes.Equal(d.last, b) {
		return false, nil
	}
	log.Ctx(ctx).DebugContext(ctx, "snapshot changed", slog.String("prefix", d.prefix))

	// timestamps have second resolution and name the stored snapshot, so a
	// second write within the same second moves to the next one
	ts := d.now().Truncate(time.Second)
	if !ts.After(d.lastAt) {
		ts = d.lastAt.Truncate(time.Second).Add(time.Second)
	}
	stored := types.StoredSnapshot{
		Timestamp: ts,
		Snapshot:  snap,
		JSON:      b,
	}
	if err := d.db.PutSnapshot(ctx, d.prefix, stored); err != nil {
		return false, err
	}
	log.Ctx(ctx).InfoContext(
		ctx,
		"wrote snapshot",
		slog.String("prefix", d.prefix),
		slog.Time("timestamp", stored.Timestamp),
	)
	d.last = b
	d.lastAt = stored.Timestamp
	return true, nil
}
