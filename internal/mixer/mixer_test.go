package mixer

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"videosync/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func playingState(t float64) *models.PlaybackState {
	st := models.NewPlaybackState()
	st.SetCurrentTime(t)
	st.SetIntent(true)
	st.ConfirmPlaying(true)
	return st
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNarrationPositionAndSwitch(t *testing.T) {
	tl := &models.Timeline{SessionID: uuid.New()}
	seg := &models.Segment{ID: uuid.New(), StartTime: 4, EndTime: 9, AudioOffset: 1.5}
	tl.Segments = []*models.Segment{seg}

	m := New(testLogger())
	d := m.Evaluate(tl, playingState(6)).Narration
	if d == nil || !d.Play {
		t.Fatalf("expected narration playing at t=6, got %+v", d)
	}
	if !d.StartNew {
		t.Error("first evaluation inside a segment should start new audio")
	}
	if !almostEqual(d.AudioPosition, 3.5) { // 1.5 + (6 - 4)
		t.Errorf("AudioPosition = %v, want 3.5", d.AudioPosition)
	}
}

func TestNarrationDoesNotReseekSmallDrift(t *testing.T) {
	tl := &models.Timeline{SessionID: uuid.New()}
	seg := &models.Segment{ID: uuid.New(), StartTime: 0, EndTime: 30}
	tl.Segments = []*models.Segment{seg}

	m := New(testLogger())
	now := time.Now()
	m.nowFn = func() time.Time { return now }

	m.Evaluate(tl, playingState(5))

	// Audio advanced 1s on the wall clock, playhead advanced 1.3s: 0.3s of
	// drift, under the 0.5s threshold.
	now = now.Add(1 * time.Second)
	d := m.Evaluate(tl, playingState(6.3)).Narration
	if d.StartNew || d.Seek {
		t.Errorf("0.3s drift should not reseek, got %+v", d)
	}

	// A large playhead jump within the same segment must correct.
	d = m.Evaluate(tl, playingState(20)).Narration
	if !d.Seek {
		t.Error("expected drift correction after a large jump")
	}
	if d.StartNew {
		t.Error("same segment continuing must not restart audio")
	}
}

func TestNarrationBoundSegmentFollowsParentClip(t *testing.T) {
	clipID := uuid.New()
	tl := &models.Timeline{SessionID: uuid.New()}
	tl.Clips = []*models.Clip{{
		ID: clipID, SourceDuration: 20, TimelineStart: 10, TimelineEnd: 30,
	}}
	tl.Segments = []*models.Segment{{
		ID: uuid.New(), ParentClipID: &clipID, StartTime: 2, EndTime: 6,
	}}

	m := New(testLogger())
	d := m.Evaluate(tl, playingState(13)).Narration
	if d == nil || !d.Play {
		t.Fatal("bound segment should be audible at absolute t=13 (relative 3)")
	}
	if !almostEqual(d.AudioPosition, 1) { // 0 + (13 - 12)
		t.Errorf("AudioPosition = %v, want 1", d.AudioPosition)
	}
}

func bgm(vol int, start, end float64) *models.BGMTrack {
	return &models.BGMTrack{
		ID: uuid.New(), Volume: vol, StartTime: start, EndTime: end, Duration: 300,
	}
}

func TestBGMGainComposition(t *testing.T) {
	track := bgm(150, 0, 0)
	state := playingState(10)
	state.SetGlobalVolume(0.8)

	got := TrackGain(track, 10, 60, state.GlobalVolume())
	want := 0.8 * 1.5 * BGMBaseReduction
	if !almostEqual(got, want) {
		t.Errorf("TrackGain = %v, want %v", got, want)
	}
}

func TestBGMFadeEnvelope(t *testing.T) {
	track := bgm(100, 10, 40)
	track.FadeIn = 2
	track.FadeOut = 4
	tests := []struct {
		name string
		t    float64
		want float64
	}{
		{"halfway through fade-in", 11, 0.5 * BGMBaseReduction},
		{"fade-in done", 12, BGMBaseReduction},
		{"mid window", 25, BGMBaseReduction},
		{"halfway through fade-out", 38, 0.5 * BGMBaseReduction},
		{"window end", 40, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrackGain(track, tt.t, 60, 1.0); !almostEqual(got, tt.want) {
				t.Errorf("TrackGain(t=%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestBGMLoopWraps(t *testing.T) {
	track := bgm(100, 0, 0)
	track.Duration = 10
	track.AudioOffset = 2
	track.Loop = true
	tl := &models.Timeline{SessionID: uuid.New(), BGMTracks: []*models.BGMTrack{track}}
	tl.Clips = []*models.Clip{{ID: uuid.New(), SourceDuration: 60, TimelineStart: 0, TimelineEnd: 60}}

	m := New(testLogger())
	m.MarkTrackReady(track.ID)

	// Playable window is 8s (duration 10 - offset 2); t=19 wraps to 2 + (19 mod 8) = 5.
	d := m.Evaluate(tl, playingState(19)).Tracks[0]
	if !d.Play {
		t.Fatal("looped track should keep playing past its duration")
	}
	if !almostEqual(d.AudioPosition, 5) {
		t.Errorf("AudioPosition = %v, want 5", d.AudioPosition)
	}
}

func TestBGMNonLoopStopsAtDuration(t *testing.T) {
	track := bgm(100, 0, 0)
	track.Duration = 10
	tl := &models.Timeline{SessionID: uuid.New(), BGMTracks: []*models.BGMTrack{track}}
	tl.Clips = []*models.Clip{{ID: uuid.New(), SourceDuration: 60, TimelineStart: 0, TimelineEnd: 60}}

	m := New(testLogger())
	m.MarkTrackReady(track.ID)

	if d := m.Evaluate(tl, playingState(15)).Tracks[0]; d.Play {
		t.Error("non-looping track should fall silent after its audio runs out")
	}
}

func TestBGMPendingUntilDecoded(t *testing.T) {
	track := bgm(100, 0, 0)
	tl := &models.Timeline{SessionID: uuid.New(), BGMTracks: []*models.BGMTrack{track}}
	tl.Clips = []*models.Clip{{ID: uuid.New(), SourceDuration: 60, TimelineStart: 0, TimelineEnd: 60}}

	m := New(testLogger())
	d := m.Evaluate(tl, playingState(5)).Tracks[0]
	if d.Play || !d.Pending {
		t.Fatalf("undecoded track should be pending, got %+v", d)
	}

	m.MarkTrackReady(track.ID)
	d = m.Evaluate(tl, playingState(5)).Tracks[0]
	if !d.Play || d.Pending {
		t.Fatalf("decoded track should play on the next cycle, got %+v", d)
	}
}

func TestBGMMutedAndOutOfWindowSilent(t *testing.T) {
	muted := bgm(100, 0, 0)
	muted.Muted = true
	late := bgm(100, 50, 0)
	tl := &models.Timeline{SessionID: uuid.New(), BGMTracks: []*models.BGMTrack{muted, late}}
	tl.Clips = []*models.Clip{{ID: uuid.New(), SourceDuration: 60, TimelineStart: 0, TimelineEnd: 60}}

	m := New(testLogger())
	m.MarkTrackReady(muted.ID)
	m.MarkTrackReady(late.ID)

	decisions := m.Evaluate(tl, playingState(10)).Tracks
	for _, d := range decisions {
		if d.Play {
			t.Errorf("track %v should be silent at t=10", d.TrackID)
		}
	}
}

func TestPausedMixerSilent(t *testing.T) {
	track := bgm(100, 0, 0)
	tl := &models.Timeline{SessionID: uuid.New(), BGMTracks: []*models.BGMTrack{track}}
	tl.Segments = []*models.Segment{{ID: uuid.New(), StartTime: 0, EndTime: 30}}
	tl.Clips = []*models.Clip{{ID: uuid.New(), SourceDuration: 60, TimelineStart: 0, TimelineEnd: 60}}

	m := New(testLogger())
	m.MarkTrackReady(track.ID)

	paused := models.NewPlaybackState()
	paused.SetCurrentTime(5)
	out := m.Evaluate(tl, paused)
	if out.Narration != nil && out.Narration.Play {
		t.Error("narration must not play while paused")
	}
	if out.Tracks[0].Play {
		t.Error("BGM must not play while paused")
	}
}

func TestReadinessSignalSafeDuringEvaluate(t *testing.T) {
	tl := &models.Timeline{SessionID: uuid.New()}
	for i := 0; i < 8; i++ {
		tl.BGMTracks = append(tl.BGMTracks, &models.BGMTrack{
			ID: uuid.New(), StartTime: 0, EndTime: 0, Duration: 60, Volume: 100,
		})
	}
	m := New(testLogger())
	st := playingState(1)

	// Probe workers flip readiness while the tick loop evaluates; run both
	// sides concurrently so the race detector can catch unguarded map access.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			for _, track := range tl.BGMTracks {
				m.MarkTrackReady(track.ID)
			}
		}
	}()
	for i := 0; i < 200; i++ {
		m.Evaluate(tl, st)
	}
	<-done

	for _, d := range m.Evaluate(tl, st).Tracks {
		if d.Pending {
			t.Errorf("track %s still pending after readiness signal", d.TrackID)
		}
	}
}
