package comp

import (
	"fmt"
	"runtime"
	"sync"
)

// Render synthesizes the composite described by res into one planar buffer
// spanning exactly the region. Outside crossfade windows the selected take
// is copied at unity gain; inside a window the outgoing and incoming takes
// are blended with the equal-power gain pair, the same scalar gain applied
// to every channel. bpm must be the value the result was partitioned with,
// so the re-derived region length matches the segment boundaries.
//
// Segments are rendered concurrently. Work is partitioned along segment
// boundaries: each worker owns its segments' output ranges, and a crossfade
// window is written entirely by the incoming segment's worker, so no two
// workers touch the same output samples.
func (e *Engine) Render(takes []Take, res *CompResult, bpm float64) ([][]float32, error) {
	sampleRate, channels, err := validateTakes(takes)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: nil comp result", ErrRenderFailure)
	}
	if res.SampleRate != sampleRate {
		return nil, fmt.Errorf("%w: result was built for %d Hz, takes are %d Hz",
			ErrRenderFailure, res.SampleRate, sampleRate)
	}
	if res.ChannelCount != channels {
		return nil, fmt.Errorf("%w: result was built for %d channels, takes have %d",
			ErrRenderFailure, res.ChannelCount, channels)
	}
	total, err := regionSamples(res.Region, bpm, sampleRate)
	if err != nil {
		return nil, err
	}
	if err := checkResult(res, takes, total); err != nil {
		return nil, err
	}

	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, total)
	}

	segments := res.Segments
	idx := takeIndex(takes)
	// fadeIn[i] is the boundary whose window opens segment i, or -1. The
	// matching fade-out side of segment i is fadeIn[i+1].
	fadeIn := boundaryBySegment(segments, res.Crossfades)

	workers := runtime.NumCPU()
	if workers > len(segments) {
		workers = len(segments)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(segments); i += workers {
				seg := &segments[i]
				copyStart, copyEnd := seg.StartSample, seg.EndSample
				if li := fadeIn[i]; li >= 0 {
					b := &res.Crossfades[li]
					blendWindow(out, &takes[idx[b.OutgoingTakeID]], &takes[idx[b.IncomingTakeID]], b)
					copyStart = b.windowEnd()
				}
				if i+1 < len(segments) {
					if ri := fadeIn[i+1]; ri >= 0 {
						copyEnd = res.Crossfades[ri].windowStart()
					}
				}
				copyUnity(out, &takes[idx[seg.SelectedTakeID]], copyStart, copyEnd)
			}
		}(w)
	}
	wg.Wait()
	return out, nil
}

// checkResult verifies the CompResult invariants render depends on: exact
// tiling of [0,total), selected takes drawn from the take set, and one
// in-window crossfade exactly where adjacent selections differ.
func checkResult(res *CompResult, takes []Take, total int) error {
	segments := res.Segments
	if len(segments) == 0 {
		return fmt.Errorf("%w: result has no segments", ErrRenderFailure)
	}
	idx := takeIndex(takes)
	pos := 0
	for i := range segments {
		seg := &segments[i]
		if seg.Index != i {
			return fmt.Errorf("%w: segment %d carries index %d", ErrRenderFailure, i, seg.Index)
		}
		if seg.StartSample != pos || seg.Len() <= 0 {
			return fmt.Errorf("%w: segment %d spans [%d,%d), expected to start at %d",
				ErrRenderFailure, i, seg.StartSample, seg.EndSample, pos)
		}
		if _, ok := idx[seg.SelectedTakeID]; !ok {
			return fmt.Errorf("%w: segment %d selects unknown take %q", ErrRenderFailure, i, seg.SelectedTakeID)
		}
		pos = seg.EndSample
	}
	if pos != total {
		return fmt.Errorf("%w: segments end at %d, region is %d samples (bpm mismatch with partitioning?)",
			ErrRenderFailure, pos, total)
	}

	k := 0
	for i := 0; i+1 < len(segments); i++ {
		out, in := &segments[i], &segments[i+1]
		if out.SelectedTakeID == in.SelectedTakeID {
			continue
		}
		if k >= len(res.Crossfades) {
			return fmt.Errorf("%w: missing crossfade at boundary %d (segments %d/%d)",
				ErrRenderFailure, in.StartSample, out.Index, in.Index)
		}
		b := &res.Crossfades[k]
		if b.PositionSample != in.StartSample ||
			b.OutgoingTakeID != out.SelectedTakeID || b.IncomingTakeID != in.SelectedTakeID {
			return fmt.Errorf("%w: crossfade %d does not match boundary %d (segments %d/%d)",
				ErrRenderFailure, k, in.StartSample, out.Index, in.Index)
		}
		if out.Len() < b.DurationSamples || in.Len() < b.DurationSamples {
			return fmt.Errorf("%w: segment %d or %d is shorter than the %d sample crossfade at boundary %d",
				ErrRenderFailure, out.Index, in.Index, b.DurationSamples, in.StartSample)
		}
		k++
	}
	if k != len(res.Crossfades) {
		return fmt.Errorf("%w: result carries %d crossfades, segments imply %d", ErrRenderFailure, len(res.Crossfades), k)
	}
	return nil
}

// boundaryBySegment maps each segment index to the crossfade opening it,
// or -1. Crossfades and segments are both ordered by position.
func boundaryBySegment(segments []Segment, crossfades []CrossfadeBoundary) []int {
	fadeIn := make([]int, len(segments))
	for i := range fadeIn {
		fadeIn[i] = -1
	}
	k := 0
	for i := 1; i < len(segments) && k < len(crossfades); i++ {
		if crossfades[k].PositionSample == segments[i].StartSample {
			fadeIn[i] = k
			k++
		}
	}
	return fadeIn
}

// copyUnity writes take samples into [from,to) unchanged. Positions outside
// the take's recorded extent stay silent; the output buffer starts zeroed.
func copyUnity(out [][]float32, take *Take, from, to int) {
	if to <= from {
		return
	}
	for ch := range out {
		src := take.Samples[ch]
		lo, hi := from+take.RegionOffset, to+take.RegionOffset
		if lo < 0 {
			lo = 0
		}
		if hi > len(src) {
			hi = len(src)
		}
		if hi > lo {
			copy(out[ch][lo-take.RegionOffset:hi-take.RegionOffset], src[lo:hi])
		}
	}
}

// blendWindow writes one crossfade window, reading both takes at each
// position and applying the equal-power pair. The gains are computed once
// per output sample and shared across channels.
func blendWindow(out [][]float32, outgoing, incoming *Take, b *CrossfadeBoundary) {
	n := b.DurationSamples
	start := b.windowStart()
	for k := 0; k < n; k++ {
		t := 0.5
		if n > 1 {
			t = float64(k) / float64(n-1)
		}
		fadeOut, fadeIn := FadeGains(t)
		pos := start + k
		for ch := range out {
			o := float64(outgoing.at(ch, pos))
			i := float64(incoming.at(ch, pos))
			out[ch][pos] = float32(o*fadeOut + i*fadeIn)
		}
	}
}
