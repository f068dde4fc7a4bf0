// Package editing implements the pointer-driven move/resize/trim engine with
// snap assistance. A Gesture is one drag's state machine; nothing touches the
// timeline until Commit, so cancelling or failing validation is a pure revert.
package editing

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"videosync/models"
)

// DragMode is the closed set of drag transforms.
type DragMode int

const (
	Move DragMode = iota
	ResizeStart
	ResizeEnd
)

func (m DragMode) String() string {
	switch m {
	case Move:
		return "move"
	case ResizeStart:
		return "resize-start"
	case ResizeEnd:
		return "resize-end"
	}
	return "unknown"
}

// TargetKind identifies which lane the dragged entity lives on.
type TargetKind int

const (
	TargetClip TargetKind = iota
	TargetSegment
	TargetBGM
)

const (
	// ActivationThresholdPx keeps plain clicks from turning into drags.
	ActivationThresholdPx = 5.0
	// SnapThreshold is how close an edge must be to a candidate to snap.
	SnapThreshold = 0.5
	// MinDuration is the smallest span any resize may leave behind.
	MinDuration = 1.0
)

type phase int

const (
	phasePending phase = iota
	phaseTracking
	phaseDone
)

// PointerEvent is the toolkit-agnostic input the engine consumes.
type PointerEvent struct {
	X float64 // pixels
	Y float64
}

// Viewport converts pixel deltas into timeline seconds.
type Viewport struct {
	TrackWidthPx float64
	Zoom         float64
	Duration     float64 // seconds represented across the track width at zoom 1
}

// DeltaTime converts a horizontal pixel delta into seconds.
func (v Viewport) DeltaTime(deltaPx float64) float64 {
	if v.TrackWidthPx <= 0 || v.Zoom <= 0 || v.Duration <= 0 {
		return 0
	}
	return deltaPx / (v.TrackWidthPx * v.Zoom) * v.Duration
}

// Geometry captures a draggable entity's span and trim at one instant.
type Geometry struct {
	Start       float64
	End         float64
	SourceStart float64 // clip trim in-point
	SourceEnd   float64 // clip trim out-point (resolved)
	AudioOffset float64 // segment/BGM trim
}

// SnapIndicator surfaces which edge snapped and to what time.
type SnapIndicator struct {
	Edge string  `json:"edge"` // "start" or "end"
	Time float64 `json:"time"`
}

// ValidationError rejects a commit that would violate the timeline rules; the
// in-progress preview is discarded and last-known-good geometry stands.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Gesture is one drag from pointer-down to commit/cancel.
type Gesture struct {
	tl       *models.Timeline
	kind     TargetKind
	targetID uuid.UUID
	mode     DragMode
	viewport Viewport
	log      *logrus.Logger

	ph       phase
	downX    float64
	initial  Geometry
	proposed Geometry
	snap     *SnapIndicator

	clip    *models.Clip
	segment *models.Segment
	track   *models.BGMTrack
}

// BeginDrag starts a gesture at pointer-down. Move gestures stay pending
// until the pointer travels past the activation threshold so plain clicks
// pass through; resize handles activate immediately.
func BeginDrag(tl *models.Timeline, kind TargetKind, targetID uuid.UUID, mode DragMode, viewport Viewport, ev PointerEvent, log *logrus.Logger) (*Gesture, error) {
	g := &Gesture{
		tl:       tl,
		kind:     kind,
		targetID: targetID,
		mode:     mode,
		viewport: viewport,
		log:      log,
		downX:    ev.X,
	}

	switch kind {
	case TargetClip:
		g.clip = tl.FindClip(targetID)
		if g.clip == nil {
			return nil, fmt.Errorf("clip %s not found", targetID)
		}
		g.initial = Geometry{
			Start:       g.clip.TimelineStart,
			End:         g.clip.TimelineEnd,
			SourceStart: g.clip.SourceStart,
			SourceEnd:   g.clip.EffectiveSourceEnd(),
		}
	case TargetSegment:
		g.segment = tl.FindSegment(targetID)
		if g.segment == nil {
			return nil, fmt.Errorf("segment %s not found", targetID)
		}
		g.initial = Geometry{
			Start:       g.segment.StartTime,
			End:         g.segment.EndTime,
			AudioOffset: g.segment.AudioOffset,
		}
	case TargetBGM:
		g.track = tl.FindBGMTrack(targetID)
		if g.track == nil {
			return nil, fmt.Errorf("bgm track %s not found", targetID)
		}
		g.initial = Geometry{
			Start:       g.track.StartTime,
			End:         g.track.EffectiveEnd(tl.TotalDuration()),
			AudioOffset: g.track.AudioOffset,
		}
	default:
		return nil, fmt.Errorf("unknown drag target kind %d", kind)
	}

	g.proposed = g.initial
	if mode == Move {
		g.ph = phasePending
	} else {
		g.ph = phaseTracking
	}
	return g, nil
}

// Active reports whether the gesture has passed the activation threshold.
func (g *Gesture) Active() bool { return g.ph == phaseTracking }

// Proposed returns the current preview geometry.
func (g *Gesture) Proposed() Geometry { return g.proposed }

// Snap returns the current snap indicator, nil when nothing snapped.
func (g *Gesture) Snap() *SnapIndicator { return g.snap }

// HandleMove processes a pointer move, advancing pending gestures past the
// activation threshold and recomputing the preview geometry.
func (g *Gesture) HandleMove(ev PointerEvent) {
	if g.ph == phaseDone {
		return
	}
	deltaPx := ev.X - g.downX
	if g.ph == phasePending {
		if math.Abs(deltaPx) < ActivationThresholdPx {
			return
		}
		g.ph = phaseTracking
	}

	deltaTime := g.viewport.DeltaTime(deltaPx)
	switch g.mode {
	case Move:
		g.applyMove(deltaTime)
	case ResizeStart:
		g.applyResizeStart(deltaTime)
	case ResizeEnd:
		g.applyResizeEnd(deltaTime)
	}
	g.applySnap()
}

func (g *Gesture) applyMove(dt float64) {
	duration := g.initial.End - g.initial.Start
	start := g.initial.Start + dt
	if start < 0 {
		start = 0
	}
	// No upper clamp: dragging right may grow the total timeline.
	g.proposed.Start = start
	g.proposed.End = start + duration
	g.proposed.SourceStart = g.initial.SourceStart
	g.proposed.SourceEnd = g.initial.SourceEnd
	g.proposed.AudioOffset = g.initial.AudioOffset
}

func (g *Gesture) applyResizeStart(dt float64) {
	maxStart := g.initial.End - MinDuration
	start := g.initial.Start + dt
	if start < 0 {
		start = 0
	}
	if start > maxStart {
		start = maxStart
	}
	applied := start - g.initial.Start

	switch g.kind {
	case TargetClip:
		// The source in-point trims in sync with the timeline start; moving
		// the in-point right skips that much source material.
		sourceStart := g.initial.SourceStart + applied
		maxSource := g.clip.SourceDuration - MinDuration
		if sourceStart < 0 {
			sourceStart = 0
		}
		if sourceStart > maxSource {
			sourceStart = maxSource
		}
		applied = sourceStart - g.initial.SourceStart
		g.proposed.SourceStart = sourceStart
		g.proposed.Start = g.initial.Start + applied
	default:
		// Segments and BGM trim their audio offset instead.
		offset := g.initial.AudioOffset + applied
		if offset < 0 {
			offset = 0
			applied = -g.initial.AudioOffset
		}
		g.proposed.AudioOffset = offset
		g.proposed.Start = g.initial.Start + applied
	}
	g.proposed.End = g.initial.End
	g.proposed.SourceEnd = g.initial.SourceEnd
}

func (g *Gesture) applyResizeEnd(dt float64) {
	end := g.initial.End + dt
	if end < g.initial.Start+MinDuration {
		end = g.initial.Start + MinDuration
	}
	// The out-point cannot outrun the remaining source material.
	switch g.kind {
	case TargetClip:
		maxEnd := g.initial.Start + (g.clip.SourceDuration - g.initial.SourceStart)
		if end > maxEnd {
			end = maxEnd
		}
	case TargetSegment:
		if g.segment.EstimatedAudioDuration > 0 {
			maxEnd := g.initial.Start + (g.segment.EstimatedAudioDuration - g.initial.AudioOffset)
			if end > maxEnd {
				end = maxEnd
			}
		}
	case TargetBGM:
		if !g.track.Loop && g.track.Duration > 0 {
			maxEnd := g.initial.Start + (g.track.Duration - g.initial.AudioOffset)
			if end > maxEnd {
				end = maxEnd
			}
		}
	}
	g.proposed.End = end
	g.proposed.Start = g.initial.Start
	g.proposed.SourceStart = g.initial.SourceStart
	g.proposed.SourceEnd = g.initial.SourceEnd
	if g.kind == TargetClip {
		g.proposed.SourceEnd = g.initial.SourceStart + (end - g.initial.Start)
		if g.proposed.SourceEnd > g.clip.SourceDuration {
			g.proposed.SourceEnd = g.clip.SourceDuration
		}
	}
}

// Cancel abandons the gesture, discarding the preview.
func (g *Gesture) Cancel() {
	g.ph = phaseDone
	g.snap = nil
	g.proposed = g.initial
}

// Commit validates the proposed geometry on pointer-up, applies it to the
// timeline optimistically and returns the update message for the
// collaboration transport. On validation failure nothing is mutated and the
// caller reverts to last-known-good geometry.
func (g *Gesture) Commit() (*models.TimelineUpdate, error) {
	if g.ph != phaseTracking {
		g.ph = phaseDone
		return nil, nil // plain click, nothing to commit
	}
	g.ph = phaseDone

	prop := Geometry{
		Start:       Round3(g.proposed.Start),
		End:         Round3(g.proposed.End),
		SourceStart: Round3(g.proposed.SourceStart),
		SourceEnd:   Round3(g.proposed.SourceEnd),
		AudioOffset: Round3(g.proposed.AudioOffset),
	}

	// Move preserves duration, so a pre-existing short element stays movable;
	// only resizes can shrink below the minimum.
	if g.mode != Move && prop.End-prop.Start < MinDuration-models.OverlapEpsilon {
		return nil, &ValidationError{Reason: "resulting duration below minimum"}
	}
	if g.kind == TargetSegment {
		if err := g.validateSegmentOverlap(prop); err != nil {
			return nil, err
		}
	}

	update := g.buildUpdate(prop)
	if err := g.tl.ApplyUpdate(*update); err != nil {
		return nil, err
	}
	g.log.WithFields(logrus.Fields{
		"target_id": g.targetID,
		"mode":      g.mode.String(),
		"start":     prop.Start,
		"end":       prop.End,
	}).Info("Drag committed")
	return update, nil
}

func (g *Gesture) validateSegmentOverlap(prop Geometry) error {
	for _, other := range g.tl.Segments {
		if other.ID == g.segment.ID || !g.segment.SameLane(other) {
			continue
		}
		if other.OverlapsRange(prop.Start, prop.End) {
			return &ValidationError{
				Reason: fmt.Sprintf("segment would overlap segment %s", other.ID),
			}
		}
	}
	return nil
}

func (g *Gesture) buildUpdate(prop Geometry) *models.TimelineUpdate {
	switch g.kind {
	case TargetClip:
		if g.mode == Move {
			return &models.TimelineUpdate{
				Type:          models.UpdateVideoPosition,
				SessionID:     g.tl.SessionID,
				VideoID:       &g.clip.ID,
				TimelineStart: &prop.Start,
				TimelineEnd:   &prop.End,
			}
		}
		return &models.TimelineUpdate{
			Type:          models.UpdateVideoResize,
			SessionID:     g.tl.SessionID,
			VideoID:       &g.clip.ID,
			TimelineStart: &prop.Start,
			TimelineEnd:   &prop.End,
			SourceStart:   &prop.SourceStart,
			SourceEnd:     &prop.SourceEnd,
		}
	case TargetSegment:
		return &models.TimelineUpdate{
			Type:        models.UpdateSegment,
			SessionID:   g.tl.SessionID,
			SegmentID:   &g.segment.ID,
			StartTime:   &prop.Start,
			EndTime:     &prop.End,
			AudioOffset: &prop.AudioOffset,
		}
	default:
		end := prop.End
		if g.track.EndTime == 0 && g.mode == Move {
			// Preserve the until-timeline-end sentinel when only moving.
			end = 0
		}
		return &models.TimelineUpdate{
			Type:        models.UpdateBGMTrack,
			SessionID:   g.tl.SessionID,
			TrackID:     &g.track.ID,
			StartTime:   &prop.Start,
			EndTime:     &end,
			AudioOffset: &prop.AudioOffset,
		}
	}
}

// Round3 rounds t to millisecond precision so repeated edits do not
// accumulate floating-point drift.
func Round3(t float64) float64 {
	return math.Round(t*1000) / 1000
}
