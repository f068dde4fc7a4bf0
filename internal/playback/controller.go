// Package playback drives the shared playhead: it decides which clip is
// rendered, advances time through gaps on a synthetic clock, gates playback on
// media readiness and detects end of content exactly once.
package playback

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"videosync/internal/timeline"
	"videosync/models"
)

// State is the controller's playback state.
type State string

const (
	StateIdle        State = "idle"
	StatePlayingClip State = "playing_clip"
	StatePlayingGap  State = "playing_gap"
	StateStopped     State = "stopped"
)

const (
	// clipEndThreshold is how close to a clip's effective end the controller
	// starts looking for the next clip.
	clipEndThreshold = 0.05
	// stopSuppressionWindow holds back end-of-content stops right after a
	// timeline mutation; an in-flight edit may be extending the content.
	stopSuppressionWindow = 200 * time.Millisecond
	// scrubDebounce coalesces rapid seeks while paused.
	scrubDebounce = 50 * time.Millisecond
	// driftTolerance is the play-time drift applied immediately without
	// debouncing.
	driftTolerance = 0.2
)

// Controller owns the playback state machine for one session. It is not
// self-synchronizing; the owning session serializes calls.
type Controller struct {
	tl    *models.Timeline
	state *models.PlaybackState
	log   *logrus.Logger

	st           State
	activeClipID uuid.UUID

	// synthetic gap clock
	gapEnteredAt time.Time
	gapStartTime float64

	// end-of-content guard: the stop side effect fires once per genuine end.
	stopFired bool

	// play intent queued behind the media readiness gate
	pendingPlay bool

	// generation invalidates stale async play completions
	generation uint64

	media *Manager

	// scrub debounce
	pendingSeek *float64
	lastSeekAt  time.Time

	nowFn  func() time.Time
	onStop func()
}

// NewController creates an idle controller over the given timeline and state.
func NewController(tl *models.Timeline, state *models.PlaybackState, log *logrus.Logger) *Controller {
	return &Controller{
		tl:    tl,
		state: state,
		log:   log,
		st:    StateIdle,
		media: NewManager(log),
		nowFn: time.Now,
	}
}

// State returns the current playback state.
func (c *Controller) State() State { return c.st }

// ActiveClipID returns the id of the clip currently rendered, or uuid.Nil.
func (c *Controller) ActiveClipID() uuid.UUID {
	if c.st != StatePlayingClip {
		return uuid.Nil
	}
	return c.activeClipID
}

// Media exposes the readiness manager so probe jobs can signal load results.
func (c *Controller) Media() *Manager { return c.media }

// OnStop registers the side effect fired when playback genuinely ends.
func (c *Controller) OnStop(fn func()) { c.onStop = fn }

// Play requests playback at the current playhead. If the active clip's media
// has not signaled readiness yet the intent is queued and released by
// MarkReady; the controller never starts a clip that cannot render.
func (c *Controller) Play() {
	c.state.SetIntent(true)
	c.generation++

	res := timeline.ResolveAt(c.tl.Clips, c.state.CurrentTime())
	switch {
	case res.Active != nil:
		if !c.media.IsReady(res.Active.ID) {
			c.pendingPlay = true
			c.log.WithField("clip_id", res.Active.ID).Info("Play queued behind media readiness gate")
			return
		}
		c.enterClip(res.Active)
	case res.Gap != nil:
		c.enterGap()
	default:
		// Past all content: restart from the beginning if anything exists.
		if first := timeline.NextClipAfter(c.tl.Clips, 0); first != nil {
			c.state.SetCurrentTime(first.TimelineStart)
			c.Play()
			return
		}
		return
	}
	c.state.ConfirmPlaying(true)
	c.stopFired = false
}

// Pause stops advancing the playhead without losing position.
func (c *Controller) Pause() {
	c.state.SetIntent(false)
	c.generation++
	c.pendingPlay = false
	c.state.ConfirmPlaying(false)
	if c.st == StatePlayingClip || c.st == StatePlayingGap {
		c.st = StateIdle
	}
}

// Generation returns the token async play completions must present; a
// completion carrying an older token is stale and ignored.
func (c *Controller) Generation() uint64 { return c.generation }

// CompletePlayAttempt is called by asynchronous media starts. Stale attempts
// (superseded by a newer play/pause) are discarded by token comparison, so a
// delayed resolve cannot override a user's pause.
func (c *Controller) CompletePlayAttempt(token uint64, err error) {
	if token != c.generation {
		c.log.WithFields(logrus.Fields{"token": token, "current": c.generation}).
			Debug("Discarded stale play completion")
		return
	}
	if err != nil {
		c.log.WithField("error", err.Error()).Warn("Async play attempt rejected")
		return
	}
	c.state.ConfirmPlaying(c.state.IntendedPlaying())
}

// Seek repositions the playhead. While paused, rapid repeated seeks are
// debounced and only the latest lands; during play, small drift is applied
// immediately.
func (c *Controller) Seek(t float64) {
	if t < 0 {
		t = 0
	}
	now := c.nowFn()
	drift := t - c.state.CurrentTime()
	if drift < 0 {
		drift = -drift
	}

	if !c.state.IsPlaying() && drift >= driftTolerance && now.Sub(c.lastSeekAt) < scrubDebounce {
		// Scrubbing: keep only the latest target.
		target := t
		c.pendingSeek = &target
		c.lastSeekAt = now
		return
	}
	c.lastSeekAt = now
	c.pendingSeek = nil
	c.applySeek(t)
}

func (c *Controller) applySeek(t float64) {
	c.state.SetCurrentTime(t)
	c.stopFired = false

	res := timeline.ResolveAt(c.tl.Clips, t)
	switch {
	case res.Active != nil:
		// Line the media up with sourceStart + (t - timelineStart).
		c.media.SetPosition(res.Active.ID, res.Active.SourcePositionAt(t))
		if c.state.IsPlaying() {
			if c.media.IsReady(res.Active.ID) {
				c.enterClip(res.Active)
			} else {
				c.pendingPlay = true
				c.st = StateIdle
			}
		}
	case res.Gap != nil:
		if c.state.IsPlaying() {
			c.enterGap()
		}
	default:
		if c.state.IsPlaying() {
			c.stop("seek past all content")
		}
	}
}

// MarkReady releases a queued play intent once the media manager reports the
// clip loadable.
func (c *Controller) MarkReady(clipID uuid.UUID) {
	c.media.MarkReady(clipID)
	if !c.pendingPlay {
		return
	}
	res := timeline.ResolveAt(c.tl.Clips, c.state.CurrentTime())
	if res.Active != nil && res.Active.ID == clipID {
		c.pendingPlay = false
		c.enterClip(res.Active)
		c.state.ConfirmPlaying(true)
		c.stopFired = false
	}
}

// Tick advances the state machine. The owning session calls it on every
// evaluation cycle (render frame or timer).
func (c *Controller) Tick() {
	now := c.nowFn()
	c.media.CheckTimeouts(now)

	if c.pendingSeek != nil && now.Sub(c.lastSeekAt) >= scrubDebounce {
		t := *c.pendingSeek
		c.pendingSeek = nil
		c.applySeek(t)
	}

	if !c.state.IsPlaying() {
		return
	}

	switch c.st {
	case StatePlayingClip:
		c.tickClip(now)
	case StatePlayingGap:
		c.tickGap(now)
	}
}

// Advance moves the playhead forward by dt seconds of media time while a clip
// plays. The renderer reports decoded progress through this.
func (c *Controller) Advance(dt float64) {
	if c.st != StatePlayingClip || dt <= 0 {
		return
	}
	c.state.SetCurrentTime(c.state.CurrentTime() + dt)
	active := c.tl.FindClip(c.activeClipID)
	if active != nil {
		c.media.SetPosition(active.ID, active.SourcePositionAt(c.state.CurrentTime()))
	}
}

func (c *Controller) tickClip(now time.Time) {
	active := c.tl.FindClip(c.activeClipID)
	if active == nil {
		// Clip removed mid-play; fall back to resolution.
		c.applySeek(c.state.CurrentTime())
		return
	}

	remaining := active.EffectiveEnd() - c.state.CurrentTime()
	if remaining > clipEndThreshold {
		return
	}

	next := timeline.ClipAtBoundary(c.tl.Clips, active)
	if next != nil {
		// Jump the shared playhead to the boundary and switch clips.
		c.state.SetCurrentTime(active.EffectiveEnd())
		if c.media.IsReady(next.ID) {
			c.enterClip(next)
		} else {
			c.pendingPlay = true
			c.st = StateIdle
			c.log.WithField("clip_id", next.ID).Info("Next clip queued behind readiness gate")
		}
		return
	}

	// Nothing after this clip. A gap may still hold later content.
	res := timeline.ResolveAt(c.tl.Clips, active.EffectiveEnd()+timeline.Epsilon)
	if res.Gap != nil && res.Gap.NextClip != nil {
		c.state.SetCurrentTime(active.EffectiveEnd())
		c.enterGap()
		return
	}

	if c.tl.ChangedWithin(stopSuppressionWindow) {
		// A drag may be extending the timeline; hold off on stopping.
		return
	}
	c.stop("no clip after current")
}

func (c *Controller) tickGap(now time.Time) {
	// Synthetic clock: wall time elapsed since gap entry, not tied to any
	// media element.
	t := c.gapStartTime + now.Sub(c.gapEnteredAt).Seconds()
	next := timeline.NextClipAfter(c.tl.Clips, c.gapStartTime)
	if next == nil {
		if c.tl.ChangedWithin(stopSuppressionWindow) {
			return
		}
		c.state.SetCurrentTime(t)
		c.stop("gap with no subsequent clip")
		return
	}
	if t < next.TimelineStart {
		c.state.SetCurrentTime(t)
		return
	}
	c.state.SetCurrentTime(next.TimelineStart)
	if c.media.IsReady(next.ID) {
		c.enterClip(next)
	} else {
		c.pendingPlay = true
		c.st = StateIdle
	}
}

func (c *Controller) enterClip(cl *models.Clip) {
	c.st = StatePlayingClip
	c.activeClipID = cl.ID
	c.media.SetPosition(cl.ID, cl.SourcePositionAt(c.state.CurrentTime()))
	c.log.WithFields(logrus.Fields{
		"clip_id":  cl.ID,
		"playhead": c.state.CurrentTime(),
	}).Debug("Entered clip")
}

func (c *Controller) enterGap() {
	c.st = StatePlayingGap
	c.gapEnteredAt = c.nowFn()
	c.gapStartTime = c.state.CurrentTime()
	c.activeClipID = uuid.Nil
	c.log.WithField("playhead", c.gapStartTime).Debug("Entered gap")
}

func (c *Controller) stop(reason string) {
	if c.stopFired {
		// Guard: repeated evaluation cycles must not re-fire the stop side
		// effect for the same end event.
		c.st = StateStopped
		return
	}
	c.stopFired = true
	c.st = StateStopped
	c.pendingPlay = false
	c.state.SetIntent(false)
	c.state.ConfirmPlaying(false)
	c.log.WithField("reason", reason).Info("Playback stopped at end of content")
	if c.onStop != nil {
		c.onStop()
	}
}

// NotifyMutation lets the session clear the stop guard after a timeline edit
// so a future genuine end can fire again.
func (c *Controller) NotifyMutation() {
	c.stopFired = false
	if c.st == StateStopped {
		c.st = StateIdle
	}
}
