package comp

import (
	"fmt"
	"math"
)

// beatsPerBar fixes the engine to 4/4 time.
const beatsPerBar = 4.0

// Region is the bar range being comped. Bars are 0-based and EndBar is
// exclusive, so {0, 8} spans eight bars.
type Region struct {
	StartBar int `json:"start_bar"`
	EndBar   int `json:"end_bar"`
}

// Beats returns the region length in beats.
func (r Region) Beats() float64 {
	return float64(r.EndBar-r.StartBar) * beatsPerBar
}

// Segment is one fixed-width slice of the region, the unit of take
// selection. Sample positions are region-local: 0 is the region start.
type Segment struct {
	Index          int            `json:"index"`
	StartSample    int            `json:"start_sample"`
	EndSample      int            `json:"end_sample"` // exclusive
	SelectedTakeID string         `json:"selected_take_id"`
	Score          ScoreBreakdown `json:"score"`
}

// Len returns the segment width in samples.
func (s Segment) Len() int {
	return s.EndSample - s.StartSample
}

// regionSamples converts the region length to samples at the given tempo,
// validating the musical inputs.
func regionSamples(region Region, bpm float64, sampleRate int) (int, error) {
	if region.EndBar <= region.StartBar {
		return 0, fmt.Errorf("%w: region end bar %d must be after start bar %d",
			ErrInvalidConfig, region.EndBar, region.StartBar)
	}
	if bpm <= 0 {
		return 0, fmt.Errorf("%w: bpm must be > 0, got %g", ErrInvalidConfig, bpm)
	}
	if sampleRate <= 0 {
		return 0, fmt.Errorf("%w: sample rate must be > 0, got %d", ErrInvalidConfig, sampleRate)
	}
	samplesPerBeat := 60.0 / bpm * float64(sampleRate)
	total := int(math.Round(region.Beats() * samplesPerBeat))
	if total < 1 {
		return 0, fmt.Errorf("%w: region resolves to zero samples at %g bpm, %d Hz",
			ErrInvalidConfig, bpm, sampleRate)
	}
	return total, nil
}

// PartitionRegion splits the region into contiguous segments of
// segmentSizeBeats each. Segment widths are derived once from tempo and
// sample rate; the final segment absorbs any rounding remainder so the
// segments tile [0, regionSamples) exactly, with no gaps or overlaps.
func PartitionRegion(region Region, bpm float64, sampleRate int, segmentSizeBeats float64) ([]Segment, error) {
	if segmentSizeBeats <= 0 {
		return nil, fmt.Errorf("%w: segment size must be > 0 beats, got %g", ErrInvalidConfig, segmentSizeBeats)
	}
	total, err := regionSamples(region, bpm, sampleRate)
	if err != nil {
		return nil, err
	}

	samplesPerBeat := 60.0 / bpm * float64(sampleRate)
	width := int(segmentSizeBeats * samplesPerBeat)
	if width < 1 {
		return nil, fmt.Errorf("%w: segment size %g beats resolves to zero samples",
			ErrInvalidConfig, segmentSizeBeats)
	}

	count := int(math.Ceil(region.Beats()/segmentSizeBeats - 1e-9))
	if count < 1 {
		count = 1
	}
	// Flooring width keeps every interior boundary at or before its exact
	// beat position, so the remainder always lands on the final segment.
	segments := make([]Segment, count)
	for i := range segments {
		start := i * width
		end := start + width
		if i == count-1 {
			end = total
		}
		segments[i] = Segment{Index: i, StartSample: start, EndSample: end}
	}
	if last := &segments[count-1]; last.EndSample <= last.StartSample {
		return nil, fmt.Errorf("%w: final segment %d is empty (start %d, region end %d)",
			ErrInvalidConfig, last.Index, last.StartSample, total)
	}
	return segments, nil
}
