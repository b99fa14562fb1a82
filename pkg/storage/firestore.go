package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/tousync/pkg/log"
	"github.com/raterudder/tousync/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Snapshots live at snapshots/<prefix>/history/<RFC3339>.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// an empty project ID is detected from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(prefix string) (*firestore.CollectionRef, error) {
	if err := checkPrefix(prefix); err != nil {
		return nil, err
	}
	return f.client.Collection("snapshots").Doc(prefix).Collection("history"), nil
}

func snapshotFromDoc(ctx context.Context, doc *firestore.DocumentSnapshot) (types.StoredSnapshot, error) {
	ts, err := time.Parse(time.RFC3339, doc.Ref.ID)
	if err != nil {
		return types.StoredSnapshot{}, fmt.Errorf("invalid snapshot doc id %s: %w", doc.Ref.ID, err)
	}
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "snapshot doc missing json", slog.String("docID", doc.Ref.ID))
		return types.StoredSnapshot{}, fmt.Errorf("snapshot document missing 'json' field: %w", err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return types.StoredSnapshot{}, fmt.Errorf("snapshot 'json' field is not a string")
	}
	var s types.Snapshot
	if err := json.Unmarshal([]byte(jsonStr), &s); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal snapshot json", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
		return types.StoredSnapshot{}, fmt.Errorf("failed to unmarshal snapshot (id=%s): %w", doc.Ref.ID, err)
	}
	return types.StoredSnapshot{Timestamp: ts, Snapshot: s, JSON: []byte(jsonStr)}, nil
}

// PutSnapshot stores the snapshot's JSON as a string. The document ID is the
// RFC3339 timestamp for lexicographic ordering.
func (f *FirestoreProvider) PutSnapshot(ctx context.Context, prefix string, snap types.StoredSnapshot) error {
	coll, err := f.getCollection(prefix)
	if err != nil {
		return err
	}
	docID := snap.Timestamp.UTC().Format(time.RFC3339)
	_, err = coll.Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(snap.JSON),
		"timestamp": snap.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to put snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot retrieves the snapshot with the newest timestamp.
func (f *FirestoreProvider) LatestSnapshot(ctx context.Context, prefix string) (types.StoredSnapshot, error) {
	coll, err := f.getCollection(prefix)
	if err != nil {
		return types.StoredSnapshot{}, err
	}
	iter := coll.
		OrderBy("timestamp", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return types.StoredSnapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.StoredSnapshot{}, ErrSnapshotNotFound
		}
		return types.StoredSnapshot{}, fmt.Errorf("failed to get latest snapshot doc: %w", err)
	}
	return snapshotFromDoc(ctx, doc)
}

// ListSnapshots uses document ID range queries so only the requested range
// is read.
func (f *FirestoreProvider) ListSnapshots(ctx context.Context, prefix string, start, end time.Time) ([]types.StoredSnapshot, error) {
	coll, err := f.getCollection(prefix)
	if err != nil {
		return nil, err
	}
	startDocID := start.UTC().Format(time.RFC3339)
	endDocID := end.UTC().Format(time.RFC3339)
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var snaps []types.StoredSnapshot
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
		}
		s, err := snapshotFromDoc(ctx, doc)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}
