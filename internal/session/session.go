// Package session owns the per-session editing state: one timeline, one
// playback controller, one mixer, guarded by a single mutex so REST handlers,
// the collaboration hub and the tick loop never interleave mutations.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"videosync/internal/collab"
	"videosync/internal/editing"
	"videosync/internal/mixer"
	"videosync/internal/playback"
	"videosync/models"
)

// Session aggregates everything one editing session needs.
type Session struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time

	mu         sync.Mutex
	timeline   *models.Timeline
	state      *models.PlaybackState
	controller *playback.Controller
	mix        *mixer.Mixer
	gesture    *editing.Gesture
	remote     *collab.Client
	log        *logrus.Logger
}

// New builds an empty session.
func New(name string, log *logrus.Logger) *Session {
	id := uuid.New()
	tl := models.NewTimeline(id, name)
	state := models.NewPlaybackState()
	return &Session{
		ID:         id,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
		timeline:   tl,
		state:      state,
		controller: playback.NewController(tl, state, log),
		mix:        mixer.New(log),
		log:        log,
	}
}

// Restore rebuilds a session around a previously persisted timeline.
func Restore(id uuid.UUID, name string, tl *models.Timeline, log *logrus.Logger) *Session {
	state := models.NewPlaybackState()
	return &Session{
		ID:         id,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
		timeline:   tl,
		state:      state,
		controller: playback.NewController(tl, state, log),
		mix:        mixer.New(log),
		log:        log,
	}
}

// WithLock runs fn while holding the session mutex. All reads and mutations
// of the timeline go through here.
func (s *Session) WithLock(fn func(tl *models.Timeline, state *models.PlaybackState, ctrl *playback.Controller)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.timeline, s.state, s.controller)
}

// Apply routes an update through the shared mutation path and tells the
// controller the timeline changed under it.
func (s *Session) Apply(update models.TimelineUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.timeline.ApplyUpdate(update); err != nil {
		return err
	}
	s.controller.NotifyMutation()
	return nil
}

// BeginDrag starts an interactive gesture. Only one gesture is live per
// session at a time; starting a new one cancels the previous.
func (s *Session) BeginDrag(kind editing.TargetKind, targetID uuid.UUID, mode editing.DragMode, vp editing.Viewport, origin editing.PointerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := editing.BeginDrag(s.timeline, kind, targetID, mode, vp, origin, s.log)
	if err != nil {
		return err
	}
	s.gesture = g
	return nil
}

// MoveDrag advances the live gesture and reports the preview geometry plus
// any snap indicator.
func (s *Session) MoveDrag(ev editing.PointerEvent) (editing.Geometry, *editing.SnapIndicator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gesture == nil {
		return editing.Geometry{}, nil, fmt.Errorf("no drag in progress")
	}
	s.gesture.HandleMove(ev)
	return s.gesture.Proposed(), s.gesture.Snap(), nil
}

// CommitDrag finalizes the gesture. A returned non-nil update should be
// broadcast to collaborators.
func (s *Session) CommitDrag() (*models.TimelineUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gesture == nil {
		return nil, fmt.Errorf("no drag in progress")
	}
	update, err := s.gesture.Commit()
	s.gesture = nil
	if err != nil {
		return nil, err
	}
	if update != nil {
		update.SessionID = s.ID
		s.controller.NotifyMutation()
		s.forwardRemote(*update)
	}
	return update, nil
}

// JoinRemoteHub connects the session to a collaboration hub hosted by another
// process. Committed drags are forwarded to the hub, and updates from other
// participants are applied to the local timeline as they arrive.
func (s *Session) JoinRemoteHub(hubURL string) error {
	client, err := collab.Dial(hubURL, s.ID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.remote != nil {
		s.remote.Close()
	}
	s.remote = client
	s.mu.Unlock()

	go func() {
		err := client.Listen(func(update models.TimelineUpdate) {
			if err := s.Apply(update); err != nil {
				s.log.WithError(err).WithField("session_id", s.ID).Warn("Rejected remote update")
			}
		})
		s.log.WithError(err).WithField("session_id", s.ID).Info("Remote hub connection closed")
		s.mu.Lock()
		if s.remote == client {
			s.remote = nil
		}
		s.mu.Unlock()
	}()
	return nil
}

// forwardRemote sends a committed update to the remote hub, if joined. Called
// with the session mutex held; the write happens off the lock so a slow hub
// never stalls editing.
func (s *Session) forwardRemote(update models.TimelineUpdate) {
	remote := s.remote
	if remote == nil {
		return
	}
	go func() {
		if err := remote.Send(update); err != nil {
			s.log.WithError(err).WithField("session_id", s.ID).Warn("Failed to forward update to remote hub")
		}
	}()
}

// Close releases the session's external resources.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remote != nil {
		s.remote.Close()
		s.remote = nil
	}
}

// CancelDrag abandons the gesture, reverting to committed state.
func (s *Session) CancelDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gesture != nil {
		s.gesture.Cancel()
		s.gesture = nil
	}
}

// Tick advances playback housekeeping and re-evaluates the audio mix.
func (s *Session) Tick() mixer.MixDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.Tick()
	return s.mix.Evaluate(s.timeline, s.state)
}

// Advance moves the playhead by dt seconds of rendered media time.
func (s *Session) Advance(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.Advance(dt)
}

// Mixer exposes the audio mixer for readiness signals.
func (s *Session) Mixer() *mixer.Mixer { return s.mix }

// Snapshot returns a deep copy of the timeline for persistence or transport.
func (s *Session) Snapshot() *models.Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Clone()
}

// Registry is the process-wide session table. It implements the hub's
// Applier so remote updates land on the owning session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	log      *logrus.Logger
}

func NewRegistry(log *logrus.Logger) *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*Session), log: log}
}

// Create registers a fresh session.
func (r *Registry) Create(name string) *Session {
	s := New(name, r.log)
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Put registers a restored session.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
}

// Get finds a session by id.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove drops a session from the table and releases its resources.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// List returns all live sessions.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// ApplyRemoteUpdate satisfies the collaboration hub's Applier interface.
func (r *Registry) ApplyRemoteUpdate(sessionID uuid.UUID, update models.TimelineUpdate) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return fmt.Errorf("unknown session %s", sessionID)
	}
	return s.Apply(update)
}
