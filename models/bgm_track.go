package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// BGMTrack is a background-music layer with independent volume, fade and loop
// settings. EndTime 0 is a sentinel meaning "until the end of the timeline".
type BGMTrack struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	Path        string    `json:"path"`
	StartTime   float64   `json:"start_time"` // absolute
	EndTime     float64   `json:"end_time"`   // 0 = until timeline end
	AudioOffset float64   `json:"audio_offset"`
	Duration    float64   `json:"duration"` // full audio length
	Volume      int       `json:"volume"`   // 0-200, 100 = unity
	Muted       bool      `json:"muted"`
	Loop        bool      `json:"loop"`
	FadeIn      float64   `json:"fade_in"`  // seconds
	FadeOut     float64   `json:"fade_out"` // seconds
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MaxBGMVolume bounds the track volume slider; 100 is unity gain.
const MaxBGMVolume = 200

// EffectiveEnd resolves the 0 sentinel against the timeline's total duration.
func (b *BGMTrack) EffectiveEnd(totalDuration float64) float64 {
	if b.EndTime == 0 {
		return totalDuration
	}
	return b.EndTime
}

// ActiveAt reports whether the track should be audible at t, ignoring mute.
func (b *BGMTrack) ActiveAt(t, totalDuration float64) bool {
	return t >= b.StartTime && t < b.EffectiveEnd(totalDuration)
}

// SetVolume clamps v to [0, 200] and applies the auto-mute rule: driving the
// volume to 0 mutes the track, raising it from 0 unmutes it.
func (b *BGMTrack) SetVolume(v int) {
	prev := b.Volume
	if v < 0 {
		v = 0
	}
	if v > MaxBGMVolume {
		v = MaxBGMVolume
	}
	b.Volume = v
	if v == 0 {
		b.Muted = true
	} else if prev == 0 {
		b.Muted = false
	}
}

// SetAudioOffset clamps the trim offset into [0, duration).
func (b *BGMTrack) SetAudioOffset(offset float64) {
	if math.IsNaN(offset) || offset < 0 {
		offset = 0
	}
	if b.Duration > 0 && offset >= b.Duration {
		offset = math.Nextafter(b.Duration, 0)
	}
	b.AudioOffset = offset
}
