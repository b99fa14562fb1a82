package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/tousync/pkg/types"
)

const fileTimestampLayout = "2006-01-02-15-04-05"

var validPrefix = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FileProvider stores each snapshot as <prefix>-<timestamp>.json in a
// directory. Timestamps are UTC so names sort chronologically.
type FileProvider struct {
	dir string
}

// NewFileProvider returns a FileProvider writing to dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// configuredFile sets up the file provider.
func configuredFile() *FileProvider {
	dir := lflag.String("storage-dir", "snapshots", "Directory to write snapshots to when storage-provider is file")

	f := &FileProvider{}
	lflag.Do(func() {
		f.dir = *dir
	})
	return f
}

// Validate checks if the provider is properly configured.
func (f *FileProvider) Validate() error {
	if f.dir == "" {
		return fmt.Errorf("storage-dir is required")
	}
	return nil
}

// Close implements Database.
func (f *FileProvider) Close() error {
	return nil
}

func checkPrefix(prefix string) error {
	if !validPrefix.MatchString(prefix) {
		return fmt.Errorf("invalid snapshot prefix: %q", prefix)
	}
	return nil
}

// names returns every snapshot file for prefix sorted oldest first.
func (f *FileProvider) names(prefix string) ([]string, error) {
	if err := checkPrefix(prefix); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	var names []string
	for _, e := range entries {
		if _, ok := parseSnapshotName(prefix, e.Name()); ok && !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *FileProvider) read(prefix, name string) (types.StoredSnapshot, error) {
	ts, _ := parseSnapshotName(prefix, name)
	b, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		return types.StoredSnapshot{}, fmt.Errorf("failed to read snapshot %s: %w", name, err)
	}
	var s types.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return types.StoredSnapshot{}, fmt.Errorf("failed to unmarshal snapshot %s: %w", name, err)
	}
	return types.StoredSnapshot{Timestamp: ts, Snapshot: s, JSON: b}, nil
}

// LatestSnapshot implements Database.
func (f *FileProvider) LatestSnapshot(ctx context.Context, prefix string) (types.StoredSnapshot, error) {
	names, err := f.names(prefix)
	if err != nil {
		return types.StoredSnapshot{}, err
	}
	if len(names) == 0 {
		return types.StoredSnapshot{}, ErrSnapshotNotFound
	}
	return f.read(prefix, names[len(names)-1])
}

// ListSnapshots implements Database.
func (f *FileProvider) ListSnapshots(ctx context.Context, prefix string, start, end time.Time) ([]types.StoredSnapshot, error) {
	names, err := f.names(prefix)
	if err != nil {
		return nil, err
	}
	var snaps []types.StoredSnapshot
	for _, name := range names {
		ts, _ := parseSnapshotName(prefix, name)
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		s, err := f.read(prefix, name)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}

// PutSnapshot implements Database.
func (f *FileProvider) PutSnapshot(ctx context.Context, prefix string, snap types.StoredSnapshot) error {
	if err := checkPrefix(prefix); err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	name := prefix + "-" + snap.Timestamp.UTC().Format(fileTimestampLayout) + ".json"
	path := filepath.Join(f.dir, name)

	// written beside the target and renamed into place
	tmp, err := os.CreateTemp(f.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(snap.JSON); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", name, err)
	}
	return nil
}

func parseSnapshotName(prefix, name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, prefix+"-")
	if !ok {
		return time.Time{}, false
	}
	rest, ok = strings.CutSuffix(rest, ".json")
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(fileTimestampLayout, rest)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
