package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Timeline is the aggregate the whole engine works against: the placed clips,
// narration segments and BGM tracks of one editing session. It is the single
// source of truth; callers are expected to serialize access per session.
type Timeline struct {
	SessionID uuid.UUID   `json:"session_id"`
	Name      string      `json:"name"`
	Clips     []*Clip     `json:"clips"`
	Segments  []*Segment  `json:"segments"`
	BGMTracks []*BGMTrack `json:"bgm_tracks"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	// lastChanged backs the controller's stop-suppression window after edits.
	lastChanged time.Time
}

// NewTimeline creates an empty timeline for a session.
func NewTimeline(sessionID uuid.UUID, name string) *Timeline {
	now := time.Now()
	return &Timeline{
		SessionID: sessionID,
		Name:      name,
		Clips:     []*Clip{},
		Segments:  []*Segment{},
		BGMTracks: []*BGMTrack{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TotalDuration is the maximum of all clip effective ends and explicit BGM end
// times. BGM tracks with the "until timeline end" sentinel do not extend it,
// and narration segments never do; video content defines the timeline's span.
func (tl *Timeline) TotalDuration() float64 {
	total := 0.0
	for _, cl := range tl.Clips {
		total = math.Max(total, cl.EffectiveEnd())
	}
	for _, b := range tl.BGMTracks {
		if b.EndTime > 0 {
			total = math.Max(total, b.EndTime)
		}
	}
	return total
}

// MarkChanged stamps the timeline as recently edited. The playback controller
// suppresses end-of-content stops shortly after a mutation, since an in-flight
// edit may be extending the content that would otherwise look exhausted.
func (tl *Timeline) MarkChanged() {
	tl.lastChanged = time.Now()
	tl.UpdatedAt = tl.lastChanged
}

// ChangedWithin reports whether the timeline was mutated inside the window.
func (tl *Timeline) ChangedWithin(window time.Duration) bool {
	return !tl.lastChanged.IsZero() && time.Since(tl.lastChanged) < window
}

// FindClip returns the clip with the given id, or nil.
func (tl *Timeline) FindClip(id uuid.UUID) *Clip {
	for _, cl := range tl.Clips {
		if cl.ID == id {
			return cl
		}
	}
	return nil
}

// FindSegment returns the segment with the given id, or nil.
func (tl *Timeline) FindSegment(id uuid.UUID) *Segment {
	for _, s := range tl.Segments {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// FindBGMTrack returns the BGM track with the given id, or nil.
func (tl *Timeline) FindBGMTrack(id uuid.UUID) *BGMTrack {
	for _, b := range tl.BGMTracks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// AddClip appends a clip and stamps the timeline.
func (tl *Timeline) AddClip(cl *Clip) {
	tl.Clips = append(tl.Clips, cl)
	tl.MarkChanged()
}

// RemoveClip deletes a clip by id. Returns false if it was not present.
func (tl *Timeline) RemoveClip(id uuid.UUID) bool {
	for i, cl := range tl.Clips {
		if cl.ID == id {
			tl.Clips = append(tl.Clips[:i], tl.Clips[i+1:]...)
			tl.MarkChanged()
			return true
		}
	}
	return false
}

// AddSegment appends a narration segment and stamps the timeline.
func (tl *Timeline) AddSegment(s *Segment) {
	tl.Segments = append(tl.Segments, s)
	tl.MarkChanged()
}

// RemoveSegment deletes a segment by id. Returns false if it was not present.
func (tl *Timeline) RemoveSegment(id uuid.UUID) bool {
	for i, s := range tl.Segments {
		if s.ID == id {
			tl.Segments = append(tl.Segments[:i], tl.Segments[i+1:]...)
			tl.MarkChanged()
			return true
		}
	}
	return false
}

// AddBGMTrack appends a BGM track and stamps the timeline.
func (tl *Timeline) AddBGMTrack(b *BGMTrack) {
	tl.BGMTracks = append(tl.BGMTracks, b)
	tl.MarkChanged()
}

// RemoveBGMTrack deletes a BGM track by id. Returns false if it was not present.
func (tl *Timeline) RemoveBGMTrack(id uuid.UUID) bool {
	for i, b := range tl.BGMTracks {
		if b.ID == id {
			tl.BGMTracks = append(tl.BGMTracks[:i], tl.BGMTracks[i+1:]...)
			tl.MarkChanged()
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to serialize or hand across goroutines.
func (tl *Timeline) Clone() *Timeline {
	out := &Timeline{
		SessionID: tl.SessionID,
		Name:      tl.Name,
		Clips:     make([]*Clip, len(tl.Clips)),
		Segments:  make([]*Segment, len(tl.Segments)),
		BGMTracks: make([]*BGMTrack, len(tl.BGMTracks)),
		CreatedAt: tl.CreatedAt,
		UpdatedAt: tl.UpdatedAt,
	}
	for i, cl := range tl.Clips {
		c := *cl
		if cl.SourceEnd != nil {
			end := *cl.SourceEnd
			c.SourceEnd = &end
		}
		out.Clips[i] = &c
	}
	for i, s := range tl.Segments {
		sc := *s
		if s.ParentClipID != nil {
			pid := *s.ParentClipID
			sc.ParentClipID = &pid
		}
		out.Segments[i] = &sc
	}
	for i, b := range tl.BGMTracks {
		bc := *b
		out.BGMTracks[i] = &bc
	}
	return out
}

// ApplyUpdate applies a typed update message to the timeline. Both local
// optimistic edits and remote broadcasts run through this single path, so
// convergence is plain last-write-wins field assignment: replaying the same
// message is a no-op, and concurrent edits to the same field clobber each
// other (known limitation, no merge).
func (tl *Timeline) ApplyUpdate(u TimelineUpdate) error {
	switch u.Type {
	case UpdateVideoPosition:
		if u.VideoID == nil {
			return fmt.Errorf("video_position_update missing video_id")
		}
		cl := tl.FindClip(*u.VideoID)
		if cl == nil {
			return fmt.Errorf("clip %s not found", *u.VideoID)
		}
		if u.TimelineStart != nil {
			cl.TimelineStart = *u.TimelineStart
		}
		if u.TimelineEnd != nil {
			cl.TimelineEnd = *u.TimelineEnd
		}
		cl.UpdatedAt = time.Now()

	case UpdateVideoResize:
		if u.VideoID == nil {
			return fmt.Errorf("video_resize_update missing video_id")
		}
		cl := tl.FindClip(*u.VideoID)
		if cl == nil {
			return fmt.Errorf("clip %s not found", *u.VideoID)
		}
		if u.TimelineStart != nil {
			cl.TimelineStart = *u.TimelineStart
		}
		if u.TimelineEnd != nil {
			cl.TimelineEnd = *u.TimelineEnd
		}
		if u.SourceStart != nil {
			cl.SourceStart = *u.SourceStart
		}
		if u.SourceEnd != nil {
			end := *u.SourceEnd
			cl.SourceEnd = &end
		}
		cl.UpdatedAt = time.Now()

	case UpdateBGMTrack:
		if u.TrackID == nil {
			return fmt.Errorf("bgm_track_update missing track_id")
		}
		b := tl.FindBGMTrack(*u.TrackID)
		if b == nil {
			return fmt.Errorf("bgm track %s not found", *u.TrackID)
		}
		if u.StartTime != nil {
			b.StartTime = *u.StartTime
		}
		if u.EndTime != nil {
			b.EndTime = *u.EndTime
		}
		if u.AudioOffset != nil {
			b.SetAudioOffset(*u.AudioOffset)
		}
		if u.Volume != nil {
			b.SetVolume(*u.Volume)
		}
		if u.Muted != nil {
			b.Muted = *u.Muted
		}
		b.UpdatedAt = time.Now()

	case UpdateSegment:
		if u.SegmentID == nil {
			return fmt.Errorf("segment_update missing segment_id")
		}
		s := tl.FindSegment(*u.SegmentID)
		if s == nil {
			return fmt.Errorf("segment %s not found", *u.SegmentID)
		}
		if u.StartTime != nil {
			s.StartTime = *u.StartTime
		}
		if u.EndTime != nil {
			s.EndTime = *u.EndTime
		}
		if u.AudioOffset != nil {
			s.AudioOffset = *u.AudioOffset
		}
		s.UpdatedAt = time.Now()

	default:
		return fmt.Errorf("unknown update type %q", u.Type)
	}

	tl.MarkChanged()
	return nil
}
