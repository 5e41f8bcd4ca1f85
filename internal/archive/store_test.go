package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kcevents/internal/model"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db)
}

func doc(at time.Time, ids ...string) model.EventsDocument {
	d := model.EventsDocument{Events: []model.Event{}, LastUpdated: at}
	for _, id := range ids {
		d.Events = append(d.Events, model.Event{
			ID: id, Title: "Coffee " + id, DateTime: at.Add(24 * time.Hour), Duration: 120,
		})
	}
	return d
}

func TestRecordAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	runID := uuid.NewString()
	require.NoError(t, s.Record(ctx, NewSnapshot(runID, doc(at, "a", "b"))))

	got, err := s.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, runID, got.RunID)
	assert.True(t, got.GeneratedAt.Equal(at))
	assert.Equal(t, 2, got.EventCount)
	assert.False(t, got.Fallback)
	require.Len(t, got.Document.Events, 2)
	assert.Equal(t, "Coffee b", got.Document.Events[1].Title)
}

func TestGetUnknownRun(t *testing.T) {
	_, err := openTestStore(t).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordRequiresRunID(t *testing.T) {
	err := openTestStore(t).Record(context.Background(), Snapshot{})
	assert.Error(t, err)
}

func TestRecentNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, NewSnapshot("r1", doc(base, "a"))))
	fb := model.EventsDocument{Events: []model.Event{}, LastUpdated: base.Add(time.Hour), Note: "No events available - event fetch failed"}
	require.NoError(t, s.Record(ctx, NewSnapshot("r2", fb)))
	require.NoError(t, s.Record(ctx, NewSnapshot("r3", doc(base.Add(2*time.Hour), "a", "b", "c"))))

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"r3", "r2", "r1"}, []string{all[0].RunID, all[1].RunID, all[2].RunID})
	assert.True(t, all[1].Fallback)
	assert.Equal(t, fb.Note, all[1].Note)

	two, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestRecordSameRunReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, NewSnapshot("r1", doc(at, "a"))))
	require.NoError(t, s.Record(ctx, NewSnapshot("r1", doc(at, "a", "b"))))

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].EventCount)
}

func TestOpenFileDatabasePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "archive.db")
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, NewSQLiteStore(db).Record(ctx, NewSnapshot("r1", doc(at, "a"))))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := NewSQLiteStore(db).Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.EventCount)
}
