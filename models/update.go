package models

import (
	"github.com/google/uuid"
)

// UpdateType tags a TimelineUpdate message.
type UpdateType string

// Update message types carried over the collaboration transport. The same
// shapes are used for local optimistic edits and for remote broadcasts.
const (
	UpdateVideoPosition UpdateType = "video_position_update"
	UpdateVideoResize   UpdateType = "video_resize_update"
	UpdateBGMTrack      UpdateType = "bgm_track_update"
	UpdateSegment       UpdateType = "segment_update"
)

// TimelineUpdate is a typed update message. Optional fields are pointers so a
// partial bgm_track_update only touches the fields it names; applying the same
// message twice is a no-op (plain field assignment).
type TimelineUpdate struct {
	Type      UpdateType `json:"type" validate:"required,oneof=video_position_update video_resize_update bgm_track_update segment_update"`
	SessionID uuid.UUID  `json:"session_id"`
	Origin    string     `json:"origin,omitempty"` // collab client id, empty for local edits

	// video_position_update / video_resize_update
	VideoID       *uuid.UUID `json:"video_id,omitempty"`
	TimelineStart *float64   `json:"timeline_start,omitempty"`
	TimelineEnd   *float64   `json:"timeline_end,omitempty"`
	SourceStart   *float64   `json:"source_start,omitempty"`
	SourceEnd     *float64   `json:"source_end,omitempty"`

	// bgm_track_update
	TrackID   *uuid.UUID `json:"track_id,omitempty"`
	StartTime *float64   `json:"start_time,omitempty"`
	EndTime   *float64   `json:"end_time,omitempty"`
	Volume    *int       `json:"volume,omitempty"`
	Muted     *bool      `json:"muted,omitempty"`

	// segment_update (StartTime/EndTime shared with bgm_track_update)
	SegmentID *uuid.UUID `json:"segment_id,omitempty"`

	// shared trim offset (segment audio offset or bgm audio offset)
	AudioOffset *float64 `json:"audio_offset,omitempty"`
}
