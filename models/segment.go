package models

import (
	"time"

	"github.com/google/uuid"
)

// OverlapEpsilon is the tolerance, in seconds, within which two segments may
// touch edge to edge (magnetic contact) without being considered overlapping.
const OverlapEpsilon = 0.01

// Segment is a narration block bound to a piece of voice-over audio. A bound
// segment (ParentClipID set) is positioned relative to its parent clip's
// source; a generic segment (ParentClipID nil) uses absolute timeline
// coordinates.
type Segment struct {
	ID                     uuid.UUID  `json:"id"`
	SessionID              uuid.UUID  `json:"session_id"`
	ParentClipID           *uuid.UUID `json:"parent_clip_id,omitempty"`
	StartTime              float64    `json:"start_time"` // relative to parent clip if bound, else absolute
	EndTime                float64    `json:"end_time"`
	AudioPath              string     `json:"audio_path"`
	AudioOffset            float64    `json:"audio_offset"` // trim into the narration audio
	EstimatedAudioDuration float64    `json:"estimated_audio_duration"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Duration is the segment's length in seconds.
func (s *Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// IsGeneric reports whether the segment is positioned in absolute timeline
// coordinates rather than relative to a parent clip.
func (s *Segment) IsGeneric() bool {
	return s.ParentClipID == nil
}

// AbsoluteRange maps the segment onto the shared timeline. Bound segments are
// offset by their parent clip's timeline start; if the parent is gone the
// segment falls back to absolute coordinates.
func (s *Segment) AbsoluteRange(clips []*Clip) (start, end float64) {
	if s.ParentClipID != nil {
		for _, cl := range clips {
			if cl.ID == *s.ParentClipID {
				return cl.TimelineStart + s.StartTime, cl.TimelineStart + s.EndTime
			}
		}
	}
	return s.StartTime, s.EndTime
}

// OverlapsRange reports whether the segment's own coordinate range overlaps
// [start, end) beyond the magnetic-contact epsilon. Both ranges must be in the
// same coordinate space (both relative to one parent, or both absolute).
func (s *Segment) OverlapsRange(start, end float64) bool {
	return s.StartTime < end-OverlapEpsilon && start < s.EndTime-OverlapEpsilon
}

// SameLane reports whether two segments occupy the same overlap domain:
// bound to the same parent clip, or both generic.
func (s *Segment) SameLane(other *Segment) bool {
	if s.ParentClipID == nil && other.ParentClipID == nil {
		return true
	}
	if s.ParentClipID != nil && other.ParentClipID != nil {
		return *s.ParentClipID == *other.ParentClipID
	}
	return false
}
