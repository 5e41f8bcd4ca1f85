package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"kcevents/internal/model"
)

// ErrNotFound is returned when no snapshot matches.
var ErrNotFound = errors.New("snapshot not found")

// timeLayout is fixed width so generated_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Snapshot is one archived events document, keyed by the run that wrote it.
type Snapshot struct {
	RunID       string
	GeneratedAt time.Time
	EventCount  int
	Fallback    bool
	Note        string
	Document    model.EventsDocument
}

// NewSnapshot describes doc as written by runID.
func NewSnapshot(runID string, doc model.EventsDocument) Snapshot {
	return Snapshot{
		RunID:       runID,
		GeneratedAt: doc.LastUpdated,
		EventCount:  len(doc.Events),
		Fallback:    doc.IsFallback(),
		Note:        doc.Note,
		Document:    doc,
	}
}

// Store persists snapshots of every written document.
type Store interface {
	Record(ctx context.Context, s Snapshot) error
	Recent(ctx context.Context, limit int) ([]Snapshot, error)
	Get(ctx context.Context, runID string) (Snapshot, error)
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db SQLDB
}

func NewSQLiteStore(db SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const snapshotColumns = `run_id, generated_at, event_count, fallback, note, document`

// Record inserts s. Recording the same run twice replaces the earlier row.
func (s *SQLiteStore) Record(ctx context.Context, snap Snapshot) error {
	if snap.RunID == "" {
		return errors.New("snapshot run id is empty")
	}
	doc, err := json.Marshal(snap.Document)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshot (`+snapshotColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   generated_at=excluded.generated_at, event_count=excluded.event_count,
		   fallback=excluded.fallback, note=excluded.note, document=excluded.document`,
		snap.RunID, snap.GeneratedAt.UTC().Format(timeLayout), snap.EventCount,
		boolToInt(snap.Fallback), snap.Note, string(doc))
	return err
}

// Recent returns up to limit snapshots, newest first. limit <= 0 means all.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshot ORDER BY generated_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Get returns the snapshot written by runID.
func (s *SQLiteStore) Get(ctx context.Context, runID string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshot WHERE run_id = ?`, runID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	return snap, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(sc scanner) (Snapshot, error) {
	var (
		snap      Snapshot
		generated string
		fallback  int
		doc       string
	)
	if err := sc.Scan(&snap.RunID, &generated, &snap.EventCount, &fallback, &snap.Note, &doc); err != nil {
		return Snapshot{}, err
	}
	t, err := time.Parse(timeLayout, generated)
	if err != nil {
		return Snapshot{}, err
	}
	snap.GeneratedAt = t
	snap.Fallback = fallback != 0
	if err := json.Unmarshal([]byte(doc), &snap.Document); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
