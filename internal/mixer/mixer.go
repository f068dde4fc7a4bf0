// Package mixer decides, for narration and every BGM track, whether audio
// should be playing at the current playhead and at what internal offset and
// gain. It never touches audio hardware; the renderer applies its decisions.
package mixer

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"videosync/models"
)

// BGMBaseReduction is the fixed -20dB (linear 0.1) attenuation baked into
// every BGM track so narration stays intelligible over music. The offline
// render pipeline uses the same constant; the formula must match exactly.
const BGMBaseReduction = 0.1

const (
	// narrationDriftThreshold is the maximum tolerated gap between expected
	// and actual narration position before reseeking. Constant reseeking
	// causes audible stutter, so small drift is left alone.
	narrationDriftThreshold = 0.5
	// bgmDriftThreshold is looser: music drift is less perceptually critical.
	bgmDriftThreshold = 1.0
)

// NarrationDecision tells the renderer what to do with the voice-over lane.
type NarrationDecision struct {
	SegmentID     uuid.UUID `json:"segment_id"`
	Play          bool      `json:"play"`
	StartNew      bool      `json:"start_new"` // switching segments or re-entering
	Seek          bool      `json:"seek"`      // drift exceeded threshold
	AudioPosition float64   `json:"audio_position"`
	Gain          float64   `json:"gain"`
}

// TrackDecision is the per-BGM-track equivalent.
type TrackDecision struct {
	TrackID       uuid.UUID `json:"track_id"`
	Play          bool      `json:"play"`
	Seek          bool      `json:"seek"`
	Pending       bool      `json:"pending"` // source not decoded yet, retry next cycle
	AudioPosition float64   `json:"audio_position"`
	Gain          float64   `json:"gain"`
}

// MixDecision is one evaluation cycle's full answer.
type MixDecision struct {
	Narration *NarrationDecision `json:"narration,omitempty"`
	Tracks    []TrackDecision    `json:"tracks"`
}

type laneState struct {
	instanceID uuid.UUID // which segment/track instance is loaded
	playing    bool
	position   float64
	updatedAt  time.Time
}

// actualAt extrapolates where the audio element should be by now.
func (ls *laneState) actualAt(now time.Time) float64 {
	if !ls.playing {
		return ls.position
	}
	return ls.position + now.Sub(ls.updatedAt).Seconds()
}

// Mixer keeps just enough per-lane state to avoid reseeking audio that is
// already in the right place. It carries its own mutex: readiness signals
// arrive from probe workers while Evaluate runs on the session's tick.
type Mixer struct {
	mu        sync.Mutex
	narration laneState
	tracks    map[uuid.UUID]*laneState
	ready     map[uuid.UUID]bool // BGM decode readiness by track id
	log       *logrus.Logger
	nowFn     func() time.Time
}

// New creates a mixer.
func New(log *logrus.Logger) *Mixer {
	return &Mixer{
		tracks: make(map[uuid.UUID]*laneState),
		ready:  make(map[uuid.UUID]bool),
		log:    log,
		nowFn:  time.Now,
	}
}

// MarkTrackReady records that a BGM track's source finished decoding. Called
// from probe worker goroutines.
func (m *Mixer) MarkTrackReady(trackID uuid.UUID) {
	m.mu.Lock()
	m.ready[trackID] = true
	m.mu.Unlock()
}

// Evaluate computes the full mix for the current playhead. Safe to call every
// cycle; while the same audio keeps playing it only corrects real drift.
func (m *Mixer) Evaluate(tl *models.Timeline, state *models.PlaybackState) MixDecision {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFn()
	t := state.CurrentTime()
	playing := state.IsPlaying()
	total := tl.TotalDuration()

	decision := MixDecision{Tracks: make([]TrackDecision, 0, len(tl.BGMTracks))}
	decision.Narration = m.evaluateNarration(tl, t, playing, state.GlobalVolume(), now)

	for _, track := range tl.BGMTracks {
		decision.Tracks = append(decision.Tracks, m.evaluateTrack(track, t, total, playing, state.GlobalVolume(), now))
	}
	return decision
}

func (m *Mixer) evaluateNarration(tl *models.Timeline, t float64, playing bool, globalVolume float64, now time.Time) *NarrationDecision {
	seg, absStart := activeSegment(tl, t)
	if seg == nil || !playing {
		m.narration.playing = false
		if seg == nil {
			return nil
		}
		return &NarrationDecision{SegmentID: seg.ID, Play: false}
	}

	expected := seg.AudioOffset + (t - absStart)
	d := &NarrationDecision{
		SegmentID:     seg.ID,
		Play:          true,
		AudioPosition: expected,
		Gain:          globalVolume,
	}

	switch {
	case m.narration.instanceID != seg.ID || !m.narration.playing:
		// Switching segments or (re-)entering: start fresh audio.
		d.StartNew = true
		d.Seek = true
		m.narration = laneState{instanceID: seg.ID, playing: true, position: expected, updatedAt: now}
	default:
		drift := math.Abs(m.narration.actualAt(now) - expected)
		if drift > narrationDriftThreshold {
			d.Seek = true
			m.log.WithFields(logrus.Fields{
				"segment_id": seg.ID,
				"drift":      drift,
			}).Debug("Correcting narration drift")
			m.narration.position = expected
			m.narration.updatedAt = now
		}
	}
	return d
}

func (m *Mixer) evaluateTrack(track *models.BGMTrack, t, total float64, playing bool, globalVolume float64, now time.Time) TrackDecision {
	st, ok := m.tracks[track.ID]
	if !ok {
		st = &laneState{}
		m.tracks[track.ID] = st
	}

	d := TrackDecision{TrackID: track.ID}
	if !playing || track.Muted || !track.ActiveAt(t, total) {
		st.playing = false
		return d
	}

	if !m.ready[track.ID] {
		// Source still decoding: a play attempt would be rejected, so mark
		// pending and retry next cycle instead of crashing the evaluation.
		d.Pending = true
		m.log.WithField("track_id", track.ID).Debug("BGM track pending, source not decoded yet")
		st.playing = false
		return d
	}

	expected := m.trackPosition(track, t)
	if !track.Loop && expected >= track.Duration {
		st.playing = false
		return d
	}

	d.Play = true
	d.AudioPosition = expected
	d.Gain = TrackGain(track, t, total, globalVolume)

	if !st.playing || st.instanceID != track.ID {
		d.Seek = true
		*st = laneState{instanceID: track.ID, playing: true, position: expected, updatedAt: now}
		return d
	}
	if drift := math.Abs(st.actualAt(now) - expected); drift > bgmDriftThreshold {
		d.Seek = true
		m.log.WithFields(logrus.Fields{"track_id": track.ID, "drift": drift}).Debug("Correcting BGM drift")
		st.position = expected
		st.updatedAt = now
	}
	return d
}

// trackPosition maps the playhead into the track's audio file, wrapping
// looped tracks modulo the playable window after the trim offset.
func (m *Mixer) trackPosition(track *models.BGMTrack, t float64) float64 {
	pos := track.AudioOffset + (t - track.StartTime)
	window := track.Duration - track.AudioOffset
	if track.Loop && window > 0 {
		return track.AudioOffset + math.Mod(t-track.StartTime, window)
	}
	return pos
}

// TrackGain composes the final linear gain for a BGM track at time t:
// globalVolume x (trackVolume/100) x BGMBaseReduction, scaled by the fade
// envelope at the edges of the track's active window.
func TrackGain(track *models.BGMTrack, t, total, globalVolume float64) float64 {
	target := globalVolume * (float64(track.Volume) / 100.0) * BGMBaseReduction
	return target * fadeFactor(track, t, total)
}

// fadeFactor is a linear ramp: 0->1 over the first FadeIn seconds of the
// active window and 1->0 over the last FadeOut seconds.
func fadeFactor(track *models.BGMTrack, t, total float64) float64 {
	factor := 1.0
	end := track.EffectiveEnd(total)
	if track.FadeIn > 0 {
		if into := t - track.StartTime; into < track.FadeIn {
			factor = math.Min(factor, math.Max(0, into/track.FadeIn))
		}
	}
	if track.FadeOut > 0 {
		if left := end - t; left < track.FadeOut {
			factor = math.Min(factor, math.Max(0, left/track.FadeOut))
		}
	}
	return factor
}

// activeSegment finds the narration segment containing t on the shared
// timeline, preferring the earliest-starting match for determinism.
func activeSegment(tl *models.Timeline, t float64) (*models.Segment, float64) {
	var best *models.Segment
	bestStart := 0.0
	for _, seg := range tl.Segments {
		start, end := seg.AbsoluteRange(tl.Clips)
		if t >= start && t < end {
			if best == nil || start < bestStart {
				best = seg
				bestStart = start
			}
		}
	}
	return best, bestStart
}
