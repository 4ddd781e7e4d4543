package comp

import "fmt"

// Metrics summarizes one take's analysis results. Values are produced by an
// upstream analysis step and handed in as plain data; the engine never
// inspects take audio to derive them.
type Metrics struct {
	// TimingErrorMs is the take's timing deviation from the beat grid in
	// milliseconds, >= 0.
	TimingErrorMs float64 `json:"timing_error_ms"`
	// SNRDb is the signal-to-noise ratio in dB.
	SNRDb float64 `json:"snr_db"`
	// HasClipping reports whether the take contains clipped samples.
	HasClipping bool `json:"has_clipping"`
}

// Take is one recorded performance of the region being comped. Takes are
// immutable for the duration of a comp operation; the engine only reads
// from Samples. IDs must be unique within one operation.
type Take struct {
	ID string

	// Samples holds planar per-channel audio. All takes in one operation
	// must share sample rate and channel count.
	Samples    [][]float32
	SampleRate int

	// RegionOffset is the index into Samples that aligns with the start of
	// the requested region, so region-local position p reads from sample
	// p+RegionOffset. Positions outside the recorded extent read as silence.
	RegionOffset int

	Metrics Metrics
}

// Channels returns the take's channel count.
func (t *Take) Channels() int {
	return len(t.Samples)
}

// at reads one sample in region-local coordinates, returning silence
// outside the recorded extent.
func (t *Take) at(ch, pos int) float32 {
	idx := pos + t.RegionOffset
	data := t.Samples[ch]
	if idx < 0 || idx >= len(data) {
		return 0
	}
	return data[idx]
}

// validateTakes checks the shared-format contract and returns the common
// sample rate and channel count.
func validateTakes(takes []Take) (sampleRate, channels int, err error) {
	if len(takes) == 0 {
		return 0, 0, ErrNoTakes
	}
	sampleRate = takes[0].SampleRate
	channels = takes[0].Channels()
	if sampleRate <= 0 {
		return 0, 0, fmt.Errorf("%w: take %q has sample rate %d", ErrInvalidConfig, takes[0].ID, sampleRate)
	}
	if channels < 1 {
		return 0, 0, fmt.Errorf("%w: take %q has no channels", ErrChannelCountMismatch, takes[0].ID)
	}
	for i := range takes {
		t := &takes[i]
		if t.SampleRate != sampleRate {
			return 0, 0, fmt.Errorf("%w: take %q has %d Hz, take %q has %d Hz",
				ErrSampleRateMismatch, takes[0].ID, sampleRate, t.ID, t.SampleRate)
		}
		if t.Channels() != channels {
			return 0, 0, fmt.Errorf("%w: take %q has %d channels, take %q has %d",
				ErrChannelCountMismatch, takes[0].ID, channels, t.ID, t.Channels())
		}
		for ch := 1; ch < len(t.Samples); ch++ {
			if len(t.Samples[ch]) != len(t.Samples[0]) {
				return 0, 0, fmt.Errorf("%w: take %q channel %d has %d samples, channel 0 has %d",
					ErrChannelCountMismatch, t.ID, ch, len(t.Samples[ch]), len(t.Samples[0]))
			}
		}
	}
	return sampleRate, channels, nil
}
