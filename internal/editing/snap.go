package editing

import "math"

// snapCandidates collects every edge a dragged edge may align to: other
// clips' starts and effective ends, segment and BGM edges, and the timeline
// boundaries (0 and total duration). The dragged entity's own edges are
// excluded.
func (g *Gesture) snapCandidates() []float64 {
	total := g.tl.TotalDuration()
	candidates := []float64{0, total}

	for _, cl := range g.tl.Clips {
		if g.kind == TargetClip && cl.ID == g.targetID {
			continue
		}
		candidates = append(candidates, cl.TimelineStart, cl.EffectiveEnd())
	}
	for _, seg := range g.tl.Segments {
		if g.kind == TargetSegment && seg.ID == g.targetID {
			continue
		}
		start, end := seg.AbsoluteRange(g.tl.Clips)
		candidates = append(candidates, start, end)
	}
	for _, track := range g.tl.BGMTracks {
		if g.kind == TargetBGM && track.ID == g.targetID {
			continue
		}
		candidates = append(candidates, track.StartTime, track.EffectiveEnd(total))
	}
	return candidates
}

// applySnap aligns at most one edge of the proposed geometry to the nearest
// candidate within the snap threshold. Start is checked before end; only one
// axis snaps per move.
func (g *Gesture) applySnap() {
	g.snap = nil
	candidates := g.snapCandidates()

	if g.mode == Move || g.mode == ResizeStart {
		if target, ok := nearest(candidates, g.proposed.Start); ok {
			if g.mode == Move {
				shift := target - g.proposed.Start
				g.proposed.Start = target
				g.proposed.End += shift
				g.snap = &SnapIndicator{Edge: "start", Time: target}
			} else if g.snapResizeStart(target) {
				g.snap = &SnapIndicator{Edge: "start", Time: target}
			}
			return
		}
	}
	if g.mode == Move || g.mode == ResizeEnd {
		if target, ok := nearest(candidates, g.proposed.End); ok {
			if g.mode == Move {
				shift := target - g.proposed.End
				g.proposed.End = target
				g.proposed.Start += shift
				g.snap = &SnapIndicator{Edge: "end", Time: target}
			} else if g.snapResizeEnd(target) {
				g.snap = &SnapIndicator{Edge: "end", Time: target}
			}
		}
	}
}

// snapResizeStart moves the in-point toward target, re-applying the same trim
// clamps as the resize transform so the source in-point never leaves
// [0, sourceDuration-MinDuration]. A clamp can stop the edge short of the
// target; the partial shift still applies but no snap is indicated. Reports
// whether the edge landed exactly.
func (g *Gesture) snapResizeStart(target float64) bool {
	start := target
	if start < 0 {
		start = 0
	}
	if max := g.proposed.End - MinDuration; start > max {
		start = max
	}
	shift := start - g.proposed.Start

	if g.kind == TargetClip {
		sourceStart := g.proposed.SourceStart + shift
		if sourceStart < 0 {
			sourceStart = 0
		}
		if max := g.clip.SourceDuration - MinDuration; sourceStart > max {
			sourceStart = max
		}
		shift = sourceStart - g.proposed.SourceStart
		g.proposed.SourceStart = sourceStart
	} else {
		offset := g.proposed.AudioOffset + shift
		if offset < 0 {
			offset = 0
		}
		shift = offset - g.proposed.AudioOffset
		g.proposed.AudioOffset = offset
	}
	g.proposed.Start += shift
	return g.proposed.Start == target
}

// snapResizeEnd moves the out-point toward target within the same material
// limits as the resize transform, keeping the clip's source out-point in
// sync.
func (g *Gesture) snapResizeEnd(target float64) bool {
	end := target
	if min := g.proposed.Start + MinDuration; end < min {
		end = min
	}
	switch g.kind {
	case TargetClip:
		if max := g.proposed.Start + (g.clip.SourceDuration - g.proposed.SourceStart); end > max {
			end = max
		}
	case TargetSegment:
		if g.segment.EstimatedAudioDuration > 0 {
			if max := g.proposed.Start + (g.segment.EstimatedAudioDuration - g.proposed.AudioOffset); end > max {
				end = max
			}
		}
	case TargetBGM:
		if !g.track.Loop && g.track.Duration > 0 {
			if max := g.proposed.Start + (g.track.Duration - g.proposed.AudioOffset); end > max {
				end = max
			}
		}
	}
	g.proposed.End = end
	if g.kind == TargetClip {
		g.proposed.SourceEnd = g.proposed.SourceStart + (end - g.proposed.Start)
		if g.proposed.SourceEnd > g.clip.SourceDuration {
			g.proposed.SourceEnd = g.clip.SourceDuration
		}
	}
	return g.proposed.End == target
}

// nearest returns the closest candidate within the snap threshold.
func nearest(candidates []float64, edge float64) (float64, bool) {
	best := math.Inf(1)
	target := 0.0
	for _, c := range candidates {
		if d := math.Abs(c - edge); d < best {
			best = d
			target = c
		}
	}
	return target, best <= SnapThreshold
}
