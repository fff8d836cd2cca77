package store

import (
	"github.com/google/uuid"
)

// Recorder writes pipeline sessions and snapshots to the store.
type Recorder struct {
	store *Store
}

// Recorder returns a history recorder backed by this store.
func (s *Store) Recorder() *Recorder {
	return &Recorder{store: s}
}

// StartSession creates a session and returns its ID.
func (r *Recorder) StartSession(mode, source, classifier string) (string, error) {
	sess := &Session{
		ID:         uuid.New().String(),
		Mode:       mode,
		Source:     source,
		Classifier: classifier,
	}
	if err := r.store.Sessions().Create(sess); err != nil {
		return "", err
	}
	return sess.ID, nil
}

// EndSession stores the final counters of a session.
func (r *Recorder) EndSession(id string, frames, peakDetections int) error {
	return r.store.Sessions().Finish(id, frames, peakDetections)
}

// RecordSnapshot links a saved snapshot to its session.
func (r *Recorder) RecordSnapshot(sessionID, path string, detections int) error {
	return r.store.Snapshots().Create(&Snapshot{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Path:       path,
		Detections: detections,
	})
}
