package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"videosync/internal/collab"
	"videosync/internal/editing"
	"videosync/internal/playback"
	"videosync/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func sessionWithClip(t *testing.T) (*Session, uuid.UUID) {
	t.Helper()
	s := New("cut", testLogger())
	clipID := uuid.New()
	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, _ *playback.Controller) {
		tl.AddClip(&models.Clip{
			ID:             clipID,
			SourceDuration: 20,
			TimelineStart:  0,
			TimelineEnd:    20,
			Status:         models.ClipStatusReady,
		})
	})
	return s, clipID
}

func TestApplyRoutesThroughTimeline(t *testing.T) {
	s, clipID := sessionWithClip(t)

	start := 3.0
	end := 23.0
	err := s.Apply(models.TimelineUpdate{
		Type:          models.UpdateVideoPosition,
		VideoID:       &clipID,
		TimelineStart: &start,
		TimelineEnd:   &end,
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, _ *playback.Controller) {
		cl := tl.FindClip(clipID)
		if cl.TimelineStart != 3.0 || cl.TimelineEnd != 23.0 {
			t.Errorf("clip span = [%v, %v], want [3, 23]", cl.TimelineStart, cl.TimelineEnd)
		}
	})
}

func TestApplyUnknownClipFails(t *testing.T) {
	s, _ := sessionWithClip(t)
	missing := uuid.New()
	start := 1.0
	err := s.Apply(models.TimelineUpdate{
		Type:          models.UpdateVideoPosition,
		VideoID:       &missing,
		TimelineStart: &start,
	})
	if err == nil {
		t.Fatal("Apply() should fail for an unknown clip")
	}
}

func TestDragLifecycleThroughSession(t *testing.T) {
	s, clipID := sessionWithClip(t)

	vp := editing.Viewport{TrackWidthPx: 1000, Zoom: 1, Duration: 100}
	if err := s.BeginDrag(editing.TargetClip, clipID, editing.Move, vp, editing.PointerEvent{X: 100}); err != nil {
		t.Fatalf("BeginDrag() error = %v", err)
	}

	// 50px at this viewport is 5 seconds.
	geo, _, err := s.MoveDrag(editing.PointerEvent{X: 150})
	if err != nil {
		t.Fatalf("MoveDrag() error = %v", err)
	}
	if geo.Start != 5.0 {
		t.Errorf("preview start = %v, want 5", geo.Start)
	}

	update, err := s.CommitDrag()
	if err != nil {
		t.Fatalf("CommitDrag() error = %v", err)
	}
	if update == nil {
		t.Fatal("CommitDrag() should produce an update for a real drag")
	}
	if update.SessionID != s.ID {
		t.Error("committed update should carry the session id")
	}

	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, _ *playback.Controller) {
		if cl := tl.FindClip(clipID); cl.TimelineStart != 5.0 {
			t.Errorf("clip start = %v, want 5", cl.TimelineStart)
		}
	})
}

func TestCancelDragLeavesTimelineUntouched(t *testing.T) {
	s, clipID := sessionWithClip(t)

	vp := editing.Viewport{TrackWidthPx: 1000, Zoom: 1, Duration: 100}
	if err := s.BeginDrag(editing.TargetClip, clipID, editing.Move, vp, editing.PointerEvent{X: 100}); err != nil {
		t.Fatalf("BeginDrag() error = %v", err)
	}
	if _, _, err := s.MoveDrag(editing.PointerEvent{X: 400}); err != nil {
		t.Fatalf("MoveDrag() error = %v", err)
	}
	s.CancelDrag()

	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, _ *playback.Controller) {
		if cl := tl.FindClip(clipID); cl.TimelineStart != 0 {
			t.Errorf("clip start = %v after cancel, want 0", cl.TimelineStart)
		}
	})
	if _, err := s.CommitDrag(); err == nil {
		t.Error("CommitDrag() after cancel should report no drag in progress")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s, clipID := sessionWithClip(t)

	snap := s.Snapshot()
	snap.Clips[0].TimelineStart = 99

	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, _ *playback.Controller) {
		if cl := tl.FindClip(clipID); cl.TimelineStart != 0 {
			t.Error("mutating a snapshot must not touch the live timeline")
		}
	})
}

func TestRegistryRoutesRemoteUpdates(t *testing.T) {
	reg := NewRegistry(testLogger())
	s := reg.Create("shared cut")

	clipID := uuid.New()
	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, _ *playback.Controller) {
		tl.AddClip(&models.Clip{ID: clipID, SourceDuration: 10, TimelineEnd: 10, Status: models.ClipStatusReady})
	})

	start := 2.5
	err := reg.ApplyRemoteUpdate(s.ID, models.TimelineUpdate{
		Type:          models.UpdateVideoPosition,
		VideoID:       &clipID,
		TimelineStart: &start,
	})
	if err != nil {
		t.Fatalf("ApplyRemoteUpdate() error = %v", err)
	}

	if err := reg.ApplyRemoteUpdate(uuid.New(), models.TimelineUpdate{}); err == nil {
		t.Error("ApplyRemoteUpdate() should fail for an unknown session")
	}
}

func clipStart(s *Session, clipID uuid.UUID) float64 {
	var start float64
	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, _ *playback.Controller) {
		start = tl.FindClip(clipID).TimelineStart
	})
	return start
}

func waitForClipStart(t *testing.T, s *Session, clipID uuid.UUID, want float64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if clipStart(s, clipID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("clip start = %v, want %v", clipStart(s, clipID), want)
}

func TestJoinRemoteHubMirrorsEdits(t *testing.T) {
	hostReg := NewRegistry(testLogger())
	host := hostReg.Create("shared cut")
	clipID := uuid.New()
	host.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, _ *playback.Controller) {
		tl.AddClip(&models.Clip{ID: clipID, SourceDuration: 20, TimelineEnd: 20, Status: models.ClipStatusReady})
	})

	hub := collab.NewHub(hostReg, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	follower := Restore(host.ID, "follower", models.NewTimeline(host.ID, "follower"), testLogger())
	follower.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, _ *playback.Controller) {
		tl.AddClip(&models.Clip{ID: clipID, SourceDuration: 20, TimelineEnd: 20, Status: models.ClipStatusReady})
	})
	hubURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	if err := follower.JoinRemoteHub(hubURL); err != nil {
		t.Fatalf("JoinRemoteHub() error = %v", err)
	}
	defer follower.Close()

	// A drag committed on the follower reaches the host through the hub.
	vp := editing.Viewport{TrackWidthPx: 1000, Zoom: 1, Duration: 100}
	if err := follower.BeginDrag(editing.TargetClip, clipID, editing.Move, vp, editing.PointerEvent{X: 100}); err != nil {
		t.Fatalf("BeginDrag() error = %v", err)
	}
	if _, _, err := follower.MoveDrag(editing.PointerEvent{X: 150}); err != nil {
		t.Fatalf("MoveDrag() error = %v", err)
	}
	if _, err := follower.CommitDrag(); err != nil {
		t.Fatalf("CommitDrag() error = %v", err)
	}
	waitForClipStart(t, host, clipID, 5.0)

	// An edit broadcast by the hub lands on the follower's timeline.
	start := 7.0
	end := 27.0
	hub.Broadcast(models.TimelineUpdate{
		Type:          models.UpdateVideoPosition,
		SessionID:     host.ID,
		VideoID:       &clipID,
		TimelineStart: &start,
		TimelineEnd:   &end,
	}, "")
	waitForClipStart(t, follower, clipID, 7.0)
}
