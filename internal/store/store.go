// Package store persists timeline snapshots to Supabase. Each save upserts
// the full timeline document keyed by session id; loading returns the latest
// snapshot.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	supa "github.com/supabase-community/supabase-go"

	"videosync/models"
)

const snapshotTable = "timeline_snapshots"

// snapshotRow mirrors the timeline_snapshots table. The timeline document is
// stored as JSONB.
type snapshotRow struct {
	SessionID string          `json:"session_id"`
	Name      string          `json:"name"`
	Document  json.RawMessage `json:"document"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

// SnapshotStore reads and writes timeline snapshots through the shared
// Supabase client.
type SnapshotStore struct {
	client *supa.Client
	log    *logrus.Logger
}

// New wraps an initialized Supabase client.
func New(client *supa.Client, log *logrus.Logger) *SnapshotStore {
	return &SnapshotStore{client: client, log: log}
}

// Save upserts the session's timeline document.
func (s *SnapshotStore) Save(tl *models.Timeline) error {
	if s.client == nil {
		return fmt.Errorf("snapshot store not initialized")
	}

	doc, err := json.Marshal(tl)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}

	row := snapshotRow{
		SessionID: tl.SessionID.String(),
		Name:      tl.Name,
		Document:  doc,
		UpdatedAt: time.Now().UTC(),
	}

	_, _, err = s.client.From(snapshotTable).
		Insert(row, true, "session_id", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to save snapshot for session %s: %w", tl.SessionID, err)
	}

	s.log.WithFields(logrus.Fields{
		"session_id": tl.SessionID,
		"clips":      len(tl.Clips),
	}).Info("Timeline snapshot saved")
	return nil
}

// Load fetches the latest snapshot for a session. Returns nil, nil when no
// snapshot exists.
func (s *SnapshotStore) Load(sessionID uuid.UUID) (*models.Timeline, error) {
	if s.client == nil {
		return nil, fmt.Errorf("snapshot store not initialized")
	}

	bodyBytes, _, err := s.client.From(snapshotTable).
		Select("*", "", false).
		Eq("session_id", sessionID.String()).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for session %s: %w", sessionID, err)
	}

	var rows []snapshotRow
	if err := json.Unmarshal(bodyBytes, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot rows for session %s: %w", sessionID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	tl, err := DecodeSnapshot(rows[0].Document)
	if err != nil {
		return nil, fmt.Errorf("snapshot for session %s is corrupt: %w", sessionID, err)
	}
	return tl, nil
}

// Delete removes a session's snapshot.
func (s *SnapshotStore) Delete(sessionID uuid.UUID) error {
	if s.client == nil {
		return fmt.Errorf("snapshot store not initialized")
	}
	_, _, err := s.client.From(snapshotTable).
		Delete("", "").
		Eq("session_id", sessionID.String()).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete snapshot for session %s: %w", sessionID, err)
	}
	return nil
}

// DecodeSnapshot turns a stored document back into a timeline, restoring the
// invariants serialization cannot carry: malformed clips are normalized so a
// corrupt snapshot never reaches the resolver.
func DecodeSnapshot(doc json.RawMessage) (*models.Timeline, error) {
	var tl models.Timeline
	if err := json.Unmarshal(doc, &tl); err != nil {
		return nil, err
	}
	for _, cl := range tl.Clips {
		if cl.Malformed() {
			cl.Normalize()
		}
	}
	return &tl, nil
}
