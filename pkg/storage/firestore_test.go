package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreProvider(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST is not set")
	}

	// Use a random database for isolation
	randDB := fmt.Sprintf("test-db-%d", time.Now().UnixNano())
	f := &FirestoreProvider{
		projectID: "test-project-id",
		database:  randDB,
	}

	ctx := context.Background()
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, f.Validate())
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := f.LatestSnapshot(ctx, "octopus-dispatches")
		assert.ErrorIs(t, err, ErrSnapshotNotFound)
	})

	first := snapshotJSON(t, "A")
	first.Timestamp = time.Date(2024, 2, 29, 16, 42, 12, 0, time.UTC)
	second := snapshotJSON(t, "B")
	second.Timestamp = time.Date(2024, 2, 29, 17, 12, 12, 0, time.UTC)
	require.NoError(t, f.PutSnapshot(ctx, "octopus-dispatches", second))
	require.NoError(t, f.PutSnapshot(ctx, "octopus-dispatches", first))

	t.Run("Latest", func(t *testing.T) {
		latest, err := f.LatestSnapshot(ctx, "octopus-dispatches")
		require.NoError(t, err)
		assert.True(t, second.Timestamp.Equal(latest.Timestamp))
		assert.Equal(t, "B", latest.Snapshot.Agreement.TariffCode)
		assert.Equal(t, string(second.JSON), string(latest.JSON))
	})

	t.Run("List", func(t *testing.T) {
		snaps, err := f.ListSnapshots(ctx, "octopus-dispatches", first.Timestamp, second.Timestamp.Add(time.Second))
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.Equal(t, "A", snaps[0].Snapshot.Agreement.TariffCode)
		assert.Equal(t, "B", snaps[1].Snapshot.Agreement.TariffCode)
	})

	t.Run("InvalidPrefix", func(t *testing.T) {
		_, err := f.LatestSnapshot(ctx, "a/b")
		assert.ErrorContains(t, err, "invalid snapshot prefix")
	})
}
