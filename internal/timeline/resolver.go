// Package timeline resolves which clips are visible at a playhead position.
// Everything here is a pure function over the timeline model so the playback
// controller and the edit engine can share one notion of "what is at time t".
package timeline

import (
	"sort"

	"github.com/sirupsen/logrus"

	"videosync/models"
)

// Epsilon absorbs floating-point noise at clip boundaries after repeated
// trims. One millisecond is well below anything a drag can produce.
const Epsilon = 0.001

// GapInfo describes a playhead position not covered by any clip.
type GapInfo struct {
	BeforeFirst bool         // playhead precedes the first clip
	NextClip    *models.Clip // next clip to the right, nil when past all content
	PrevClip    *models.Clip // closest clip ending at or before the playhead
}

// Resolution is the answer to "what is at time t".
type Resolution struct {
	Active         *models.Clip   // foreground clip, nil when in a gap
	Stacked        []*models.Clip // every clip containing t, foreground first
	Gap            *GapInfo       // set when no clip contains t and content remains
	PastAllContent bool           // t is at/after the last effective end
}

// ResolveAt returns the set of clips whose [timelineStart, effectiveEnd)
// contains t, with the foreground clip (lowest order) selected as active.
// Malformed clips are auto-corrected in place before resolution so a corrupt
// span never produces NaN math downstream.
func ResolveAt(clips []*models.Clip, t float64) Resolution {
	for _, cl := range clips {
		if cl.Normalize() {
			logrus.WithFields(logrus.Fields{
				"clip_id":        cl.ID,
				"timeline_start": cl.TimelineStart,
				"timeline_end":   cl.TimelineEnd,
			}).Warn("Corrected malformed clip span before resolution")
		}
	}

	stacked := make([]*models.Clip, 0, 2)
	for _, cl := range clips {
		if cl.Contains(t) {
			stacked = append(stacked, cl)
		}
	}
	if len(stacked) > 0 {
		// Foreground wins: lowest order first, id as a stable tie-break so
		// repeated calls with identical input pick the same clip.
		sort.SliceStable(stacked, func(i, j int) bool {
			if stacked[i].Order != stacked[j].Order {
				return stacked[i].Order < stacked[j].Order
			}
			return stacked[i].ID.String() < stacked[j].ID.String()
		})
		return Resolution{Active: stacked[0], Stacked: stacked}
	}

	if len(clips) == 0 {
		return Resolution{PastAllContent: true}
	}

	lastEnd := 0.0
	for _, cl := range clips {
		if end := cl.EffectiveEnd(); end > lastEnd {
			lastEnd = end
		}
	}
	if t >= lastEnd-Epsilon {
		return Resolution{PastAllContent: true}
	}

	gap := &GapInfo{
		NextClip: NextClipAfter(clips, t),
		PrevClip: prevClipBefore(clips, t),
	}
	gap.BeforeFirst = gap.PrevClip == nil
	return Resolution{Gap: gap}
}

// NextClipAfter returns the clip with the smallest timeline start at or after
// t, or nil when no clip starts after t. A clip whose start equals t (within
// epsilon) counts, which is what the gap clock needs when it lands exactly on
// a boundary.
func NextClipAfter(clips []*models.Clip, t float64) *models.Clip {
	var next *models.Clip
	for _, cl := range clips {
		if cl.TimelineStart >= t-Epsilon && cl.EffectiveEnd() > t {
			if next == nil || cl.TimelineStart < next.TimelineStart {
				next = cl
			}
		}
	}
	return next
}

func prevClipBefore(clips []*models.Clip, t float64) *models.Clip {
	var prev *models.Clip
	for _, cl := range clips {
		if cl.EffectiveEnd() <= t+Epsilon {
			if prev == nil || cl.EffectiveEnd() > prev.EffectiveEnd() {
				prev = cl
			}
		}
	}
	return prev
}

// ClipAtBoundary finds the clip that should take over once the given clip's
// effective region ends: the clip containing effectiveEnd + epsilon. The
// ending clip itself is excluded; when only the ending clip matches again
// (a double-trimmed clip whose region immediately ends again) the caller
// treats the lookahead as exhausted.
func ClipAtBoundary(clips []*models.Clip, ending *models.Clip) *models.Clip {
	probe := ending.EffectiveEnd() + Epsilon
	res := ResolveAt(clips, probe)
	if res.Active == nil || res.Active.ID == ending.ID {
		return nil
	}
	return res.Active
}

// LastEffectiveEnd returns the rightmost effective end across all clips.
func LastEffectiveEnd(clips []*models.Clip) float64 {
	end := 0.0
	for _, cl := range clips {
		if e := cl.EffectiveEnd(); e > end {
			end = e
		}
	}
	return end
}
