package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/raterudder/tousync/pkg/storage"
	"github.com/raterudder/tousync/pkg/types"
)

// Diff returns a unified diff from a to b with three lines of context.
// Identical inputs produce an empty diff.
func Diff(a, b, aLabel, bLabel string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(a),
		B:        splitLines(b),
		FromFile: aLabel,
		ToFile:   bLabel,
		Context:  3,
	})
}

// splitLines splits s after each newline. difflib.SplitLines always appends
// a final newline, which would turn a trailing newline into an extra empty
// line.
func splitLines(s string) []string {
	return difflib.SplitLines(strings.TrimSuffix(s, "\n"))
}

// Change is the difference between two consecutive snapshots.
type Change struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	Diff string    `json:"diff"`
}

func snapshotLabel(prefix string, s types.StoredSnapshot) string {
	ts := s.Timestamp.UTC()
	return fmt.Sprintf("%s-%s.json (%s)", prefix, ts.Format("2006-01-02-15-04-05"), ts.Format("Mon 02 Jan 06 15:04:05"))
}

// SnapshotChanges diffs each consecutive pair of snapshots stored under
// prefix with timestamps in [start, end).
func SnapshotChanges(ctx context.Context, db storage.Database, prefix string, start, end time.Time) ([]Change, error) {
	snaps, err := db.ListSnapshots(ctx, prefix, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	changes := []Change{}
	for i := 1; i < len(snaps); i++ {
		a, b := snaps[i-1], snaps[i]
		d, err := Diff(string(a.JSON), string(b.JSON), snapshotLabel(prefix, a), snapshotLabel(prefix, b))
		if err != nil {
			return nil, fmt.Errorf("failed to diff snapshots: %w", err)
		}
		changes = append(changes, Change{
			From: a.Timestamp,
			To:   b.Timestamp,
			Diff: d,
		})
	}
	return changes, nil
}
