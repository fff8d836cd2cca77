package store

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// Session is one period during which a camera or image fed the pipeline.
type Session struct {
	ID             string     `json:"id"`
	Mode           string     `json:"mode"`
	Source         string     `json:"source"`
	Classifier     string     `json:"classifier"`
	Frames         int        `json:"frames"`
	PeakDetections int        `json:"peak_detections"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// Active reports whether the session has not been finished yet.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// SessionRepository provides access to detection sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, mode, source, classifier, frames, peak_detections, started_at, ended_at`

// Create inserts a new, unfinished session.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, mode, source, classifier, frames, peak_detections, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Mode, sess.Source, sess.Classifier, sess.Frames, sess.PeakDetections, sess.StartedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert session %s", sess.ID)
	}
	return nil
}

// Finish records the final counters and end time of a session.
func (r *SessionRepository) Finish(id string, frames, peakDetections int) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET frames = ?, peak_detections = ?, ended_at = ? WHERE id = ?`,
		frames, peakDetections, time.Now(), id,
	)
	if err != nil {
		return errors.Wrapf(err, "finish session %s", id)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime

	if err := row.Scan(&sess.ID, &sess.Mode, &sess.Source, &sess.Classifier,
		&sess.Frames, &sess.PeakDetections, &sess.StartedAt, &ended); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess, err := scanSession(r.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List returns the most recent sessions first. A limit of 0 or less returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Delete removes a session and its snapshots.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
