package models

// PlaybackState owns the shared playhead and play flag for one session. All
// mutation goes through the setters, which also maintain the intent shadows:
// the intent is written before any asynchronous play/pause completes, so a
// completion handler can re-check the latest intent instead of trusting the
// value it captured.
type PlaybackState struct {
	currentTime  float64
	isPlaying    bool
	intendedTime float64
	intendedPlay bool
	globalVolume float64 // 0.0-1.0 master gain
}

// NewPlaybackState returns a paused state at t=0 with unity master volume.
func NewPlaybackState() *PlaybackState {
	return &PlaybackState{globalVolume: 1.0}
}

// CurrentTime returns the playhead position in seconds.
func (p *PlaybackState) CurrentTime() float64 { return p.currentTime }

// IsPlaying reports the confirmed play flag.
func (p *PlaybackState) IsPlaying() bool { return p.isPlaying }

// IntendedPlaying reports the latest requested play flag, which may be ahead
// of the confirmed one while an async play/pause is in flight.
func (p *PlaybackState) IntendedPlaying() bool { return p.intendedPlay }

// GlobalVolume returns the master linear gain.
func (p *PlaybackState) GlobalVolume() float64 { return p.globalVolume }

// SetCurrentTime moves the playhead, updating the intent shadow first.
func (p *PlaybackState) SetCurrentTime(t float64) {
	if t < 0 {
		t = 0
	}
	p.intendedTime = t
	p.currentTime = t
}

// SetIntent records the latest requested play flag without confirming it.
func (p *PlaybackState) SetIntent(playing bool) {
	p.intendedPlay = playing
}

// ConfirmPlaying marks a play/pause transition as actually taken effect. The
// confirmation is ignored if a later intent superseded it.
func (p *PlaybackState) ConfirmPlaying(playing bool) {
	if p.intendedPlay != playing {
		return
	}
	p.isPlaying = playing
}

// SetGlobalVolume clamps and stores the master linear gain.
func (p *PlaybackState) SetGlobalVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.globalVolume = v
}
