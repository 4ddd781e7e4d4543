package comp

import (
	"fmt"
	"math"
)

// FadeGains returns the equal-power gain pair at normalized crossfade
// position t in [0,1]: the outgoing gain follows cos(t*pi/2) and the
// incoming gain sin(t*pi/2), so fadeOut^2+fadeIn^2 == 1 at every point and
// perceived loudness holds steady through the transition.
func FadeGains(t float64) (fadeOut, fadeIn float64) {
	return math.Cos(t * math.Pi / 2), math.Sin(t * math.Pi / 2)
}

// CrossfadeBoundary describes one take transition. The blend window is
// centered on PositionSample: it reaches DurationSamples/2 into the
// outgoing segment and the rest into the incoming one.
type CrossfadeBoundary struct {
	PositionSample  int    `json:"position_sample"`
	DurationSamples int    `json:"duration_samples"`
	OutgoingTakeID  string `json:"outgoing_take_id"`
	IncomingTakeID  string `json:"incoming_take_id"`
}

// windowStart returns the first output sample of the blend window.
func (b CrossfadeBoundary) windowStart() int {
	return b.PositionSample - b.DurationSamples/2
}

// windowEnd returns one past the last output sample of the blend window.
func (b CrossfadeBoundary) windowEnd() int {
	return b.windowStart() + b.DurationSamples
}

// crossfadeSamples converts the configured window width to samples.
func crossfadeSamples(durationMs float64, sampleRate int) int {
	return int(math.Round(durationMs / 1000.0 * float64(sampleRate)))
}

// synthesizeCrossfades derives one boundary for every adjacent segment pair
// whose selected takes differ. Adjacent segments sharing a take continue
// seamlessly and get no boundary. Every segment adjacent to a boundary must
// be at least one full crossfade window long so the centered window stays
// inside the two segments it blends.
func synthesizeCrossfades(segments []Segment, durationSamples int) ([]CrossfadeBoundary, error) {
	var boundaries []CrossfadeBoundary
	for i := 0; i+1 < len(segments); i++ {
		out, in := &segments[i], &segments[i+1]
		if out.SelectedTakeID == in.SelectedTakeID {
			continue
		}
		if out.Len() < durationSamples {
			return nil, fmt.Errorf("%w: segment %d is %d samples, shorter than the %d sample crossfade at boundary %d",
				ErrRenderFailure, out.Index, out.Len(), durationSamples, in.StartSample)
		}
		if in.Len() < durationSamples {
			return nil, fmt.Errorf("%w: segment %d is %d samples, shorter than the %d sample crossfade at boundary %d",
				ErrRenderFailure, in.Index, in.Len(), durationSamples, in.StartSample)
		}
		boundaries = append(boundaries, CrossfadeBoundary{
			PositionSample:  in.StartSample,
			DurationSamples: durationSamples,
			OutgoingTakeID:  out.SelectedTakeID,
			IncomingTakeID:  in.SelectedTakeID,
		})
	}
	return boundaries, nil
}
