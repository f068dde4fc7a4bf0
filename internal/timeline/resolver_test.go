package timeline

import (
	"testing"

	"github.com/google/uuid"

	"videosync/models"
)

func clip(order int, start, end float64) *models.Clip {
	return &models.Clip{
		ID:             uuid.New(),
		Order:          order,
		SourceDuration: end - start,
		TimelineStart:  start,
		TimelineEnd:    end,
	}
}

func TestResolveActiveClip(t *testing.T) {
	clips := []*models.Clip{clip(0, 0, 5), clip(1, 8, 12)}
	res := ResolveAt(clips, 2.5)
	if res.Active == nil || res.Active.ID != clips[0].ID {
		t.Fatalf("expected first clip active at t=2.5, got %+v", res)
	}
}

func TestOverlapTieBreakIsDeterministic(t *testing.T) {
	fg := clip(0, 0, 10)
	bg := clip(1, 0, 10)
	// Feed the clips in both orders; the lowest-order clip must win every time.
	for i := 0; i < 10; i++ {
		for _, clips := range [][]*models.Clip{{fg, bg}, {bg, fg}} {
			res := ResolveAt(clips, 5.0)
			if res.Active == nil || res.Active.ID != fg.ID {
				t.Fatalf("expected order=0 clip active, got %+v", res.Active)
			}
			if len(res.Stacked) != 2 {
				t.Fatalf("expected 2 stacked clips, got %d", len(res.Stacked))
			}
		}
	}
}

func TestGapRoundTrip(t *testing.T) {
	clips := []*models.Clip{clip(0, 0, 5), clip(0, 8, 12)}
	res := ResolveAt(clips, 6.5)
	if res.Active != nil {
		t.Fatalf("no clip should be active at t=6.5")
	}
	if res.Gap == nil {
		t.Fatal("expected a gap at t=6.5")
	}
	if res.Gap.BeforeFirst {
		t.Error("gap at 6.5 is between clips, not before the first")
	}
	if res.Gap.NextClip == nil || res.Gap.NextClip.TimelineStart != 8 {
		t.Errorf("expected next clip starting at 8, got %+v", res.Gap.NextClip)
	}
}

func TestBeforeFirstClip(t *testing.T) {
	clips := []*models.Clip{clip(0, 3, 5)}
	res := ResolveAt(clips, 1.0)
	if res.Gap == nil || !res.Gap.BeforeFirst {
		t.Fatalf("expected before-first gap, got %+v", res)
	}
}

func TestPastAllContent(t *testing.T) {
	clips := []*models.Clip{clip(0, 0, 5)}
	for _, tt := range []float64{5.0, 5.0005, 17} {
		res := ResolveAt(clips, tt)
		if !res.PastAllContent {
			t.Errorf("t=%v: expected past-all-content, got %+v", tt, res)
		}
	}
}

func TestTouchingClipsAreNotOverlapping(t *testing.T) {
	a := clip(0, 0, 5)
	b := clip(1, 5, 9)
	res := ResolveAt([]*models.Clip{a, b}, 5.0)
	if len(res.Stacked) != 1 {
		t.Fatalf("touching boundary produced %d stacked clips", len(res.Stacked))
	}
	if res.Active.ID != b.ID {
		t.Error("t=5.0 belongs to the clip starting at 5, not the one ending there")
	}
}

func TestResolverNeverActiveBeyondEffectiveEnd(t *testing.T) {
	// Trim the clip so its effective end (6) lands before its timeline slot (10).
	cl := clip(0, 0, 10)
	cl.SourceDuration = 10
	end := 6.0
	cl.SourceEnd = &end
	clips := []*models.Clip{cl}

	if res := ResolveAt(clips, 5.9); res.Active == nil {
		t.Error("clip should be active just before its effective end")
	}
	if res := ResolveAt(clips, 6.0); res.Active != nil {
		t.Error("clip reported active at its effective end")
	}
	if res := ResolveAt(clips, 8.0); res.Active != nil {
		t.Error("clip reported active inside its trimmed-away region")
	}
}

func TestResolveCorrectsMalformedClip(t *testing.T) {
	bad := &models.Clip{ID: uuid.New(), SourceDuration: 4, TimelineStart: 0, TimelineEnd: 20}
	res := ResolveAt([]*models.Clip{bad}, 1.0)
	if res.Active == nil {
		t.Fatal("corrected clip should be active at t=1")
	}
	if bad.TimelineEnd != 4 {
		t.Errorf("expected span reset to full source (end=4), got %v", bad.TimelineEnd)
	}
}

func TestClipAtBoundary(t *testing.T) {
	a := clip(0, 0, 5)
	b := clip(0, 5, 9)
	clips := []*models.Clip{a, b}
	if got := ClipAtBoundary(clips, a); got == nil || got.ID != b.ID {
		t.Errorf("expected clip b at a's boundary, got %+v", got)
	}
	if got := ClipAtBoundary(clips, b); got != nil {
		t.Errorf("expected no clip after b, got %+v", got)
	}
}

func TestNextClipAfterPrefersLeftmost(t *testing.T) {
	clips := []*models.Clip{clip(0, 20, 25), clip(0, 8, 12)}
	next := NextClipAfter(clips, 6)
	if next == nil || next.TimelineStart != 8 {
		t.Fatalf("expected clip at 8, got %+v", next)
	}
}
