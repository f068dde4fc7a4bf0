package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Clip represents a video asset placed on the timeline. The trim window
// (SourceStart/SourceEnd) selects which part of the source file the clip
// actually plays; a nil SourceEnd means "the full remaining source".
type Clip struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"session_id"`
	SourcePath     string    `json:"source_path"`
	SourceDuration float64   `json:"source_duration"` // full decoded length, seconds
	Order          int       `json:"order"`           // layer rank, lower = foreground
	TimelineStart  float64   `json:"timeline_start"`
	TimelineEnd    float64   `json:"timeline_end"`
	SourceStart    float64   `json:"source_start"`
	SourceEnd      *float64  `json:"source_end,omitempty"` // nil = full remaining duration
	Status         string    `json:"status"`
	ErrorMessage   *string   `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Clip statuses.
const (
	ClipStatusProbing = "probing"
	ClipStatusReady   = "ready"
	ClipStatusError   = "error"
)

// EffectiveSourceEnd resolves the nullable SourceEnd to a concrete trim
// out-point.
func (cl *Clip) EffectiveSourceEnd() float64 {
	if cl.SourceEnd != nil {
		return *cl.SourceEnd
	}
	return cl.SourceDuration
}

// TrimmedDuration is the length of the playable source window.
func (cl *Clip) TrimmedDuration() float64 {
	return cl.EffectiveSourceEnd() - cl.SourceStart
}

// EffectiveEnd is the true end of the clip's playable region on the timeline.
// Trimming can make a clip end earlier than its nominal timeline slot, so the
// effective end, not TimelineEnd, governs what is actually rendered.
func (cl *Clip) EffectiveEnd() float64 {
	return math.Min(cl.TimelineEnd, cl.TimelineStart+cl.TrimmedDuration())
}

// Contains reports whether t falls inside the clip's playable region
// [TimelineStart, EffectiveEnd).
func (cl *Clip) Contains(t float64) bool {
	return t >= cl.TimelineStart && t < cl.EffectiveEnd()
}

// SourcePositionAt maps a timeline position inside the clip to a position in
// the source media.
func (cl *Clip) SourcePositionAt(t float64) float64 {
	return cl.SourceStart + (t - cl.TimelineStart)
}

// Malformed reports whether the clip's span can no longer produce a sane
// playable region: a negative effective duration, an implied duration more
// than double the raw source, or NaN anywhere in the span.
func (cl *Clip) Malformed() bool {
	if math.IsNaN(cl.TimelineStart) || math.IsNaN(cl.TimelineEnd) ||
		math.IsNaN(cl.SourceStart) || math.IsNaN(cl.EffectiveSourceEnd()) {
		return true
	}
	if cl.EffectiveEnd() < cl.TimelineStart {
		return true
	}
	if cl.SourceDuration > 0 && cl.TimelineEnd-cl.TimelineStart > cl.SourceDuration*2 {
		return true
	}
	if cl.SourceStart >= cl.EffectiveSourceEnd() {
		return true
	}
	return false
}

// Normalize resets a malformed clip to its full untrimmed span, preserving
// its timeline start where possible. Returns true if a correction was applied.
func (cl *Clip) Normalize() bool {
	if !cl.Malformed() {
		return false
	}
	if math.IsNaN(cl.TimelineStart) || cl.TimelineStart < 0 {
		cl.TimelineStart = 0
	}
	cl.SourceStart = 0
	cl.SourceEnd = nil
	cl.TimelineEnd = cl.TimelineStart + cl.SourceDuration
	return true
}
