package playback

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Media load statuses.
const (
	MediaLoading = "loading"
	MediaReady   = "ready"
	MediaError   = "error"
)

const (
	// loadFallbackCheck is the short window after which a silent load is
	// re-inspected; real decoders sometimes reach readiness without firing an
	// event.
	loadFallbackCheck = 200 * time.Millisecond
	// loadHardTimeout resolves a load that produced no signal at all into an
	// explicit error instead of hanging the controller.
	loadHardTimeout = 5 * time.Second
)

// LoadTimeoutError marks a media source that never signaled readiness.
// Distinct from codec incompatibility: the stream stalled, not failed to
// decode.
type LoadTimeoutError struct {
	ClipID uuid.UUID
}

func (e *LoadTimeoutError) Error() string {
	return fmt.Sprintf("media for clip %s timed out before readiness", e.ClipID)
}

type mediaState struct {
	status          string
	loadStarted     time.Time
	fallbackChecked bool
	err             error
	position        float64 // current position inside the source, seconds
}

// Manager tracks per-clip media readiness and positions. It is the engine's
// stand-in for the streamable media handles the renderer owns.
type Manager struct {
	states map[uuid.UUID]*mediaState
	log    *logrus.Logger
}

// NewManager creates an empty readiness manager.
func NewManager(log *logrus.Logger) *Manager {
	return &Manager{states: make(map[uuid.UUID]*mediaState), log: log}
}

// BeginLoad registers a clip whose media started loading.
func (m *Manager) BeginLoad(clipID uuid.UUID) {
	m.states[clipID] = &mediaState{status: MediaLoading, loadStarted: time.Now()}
}

// MarkReady flips a clip's media to ready.
func (m *Manager) MarkReady(clipID uuid.UUID) {
	st := m.ensure(clipID)
	st.status = MediaReady
	st.err = nil
}

// MarkError records a load/decode failure for the clip.
func (m *Manager) MarkError(clipID uuid.UUID, err error) {
	st := m.ensure(clipID)
	st.status = MediaError
	st.err = err
}

// IsReady reports whether the clip's media can start playing.
func (m *Manager) IsReady(clipID uuid.UUID) bool {
	st, ok := m.states[clipID]
	return ok && st.status == MediaReady
}

// Err returns the recorded load error for a clip, if any.
func (m *Manager) Err(clipID uuid.UUID) error {
	if st, ok := m.states[clipID]; ok {
		return st.err
	}
	return nil
}

// Status returns the load status for a clip, defaulting to loading.
func (m *Manager) Status(clipID uuid.UUID) string {
	if st, ok := m.states[clipID]; ok {
		return st.status
	}
	return MediaLoading
}

// SetPosition records the clip media's current source position.
func (m *Manager) SetPosition(clipID uuid.UUID, pos float64) {
	m.ensure(clipID).position = pos
}

// Position returns the clip media's current source position.
func (m *Manager) Position(clipID uuid.UUID) float64 {
	if st, ok := m.states[clipID]; ok {
		return st.position
	}
	return 0
}

// CheckTimeouts escalates loads that produced no signal: a fallback re-check
// after 200ms, then a hard error at 5s so the controller never hangs waiting.
func (m *Manager) CheckTimeouts(now time.Time) {
	for id, st := range m.states {
		if st.status != MediaLoading {
			continue
		}
		elapsed := now.Sub(st.loadStarted)
		if !st.fallbackChecked && elapsed >= loadFallbackCheck {
			st.fallbackChecked = true
			m.log.WithField("clip_id", id).Debug("Media load fallback check, no readiness signal yet")
		}
		if elapsed >= loadHardTimeout {
			st.status = MediaError
			st.err = &LoadTimeoutError{ClipID: id}
			m.log.WithField("clip_id", id).Error("Media load timed out")
		}
	}
}

func (m *Manager) ensure(clipID uuid.UUID) *mediaState {
	st, ok := m.states[clipID]
	if !ok {
		st = &mediaState{status: MediaLoading, loadStarted: time.Now()}
		m.states[clipID] = st
	}
	return st
}
