package store

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// Snapshot is an annotated frame written to disk during a session.
type Snapshot struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Path       string    `json:"path"`
	Detections int       `json:"detections"`
	CreatedAt  time.Time `json:"created_at"`
}

// SnapshotRepository provides access to saved snapshots.
type SnapshotRepository struct {
	db *sql.DB
}

// Snapshots returns the snapshot repository for this store.
func (s *Store) Snapshots() *SnapshotRepository {
	return &SnapshotRepository{db: s.db}
}

// Create inserts a snapshot record.
func (r *SnapshotRepository) Create(snap *Snapshot) error {
	snap.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO snapshots (id, session_id, path, detections, created_at) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.SessionID, snap.Path, snap.Detections, snap.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert snapshot %s", snap.Path)
	}
	return nil
}

// ListBySession returns the snapshots of a session, oldest first.
func (r *SnapshotRepository) ListBySession(sessionID string) ([]Snapshot, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, path, detections, created_at
		 FROM snapshots
		 WHERE session_id = ?
		 ORDER BY created_at, rowid`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.SessionID, &s.Path, &s.Detections, &s.CreatedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snaps, nil
}
