package dsp

import "math"

// EnvelopeFollower tracks signal magnitude with separate attack and release
// smoothing (no heap allocations in Process).
type EnvelopeFollower struct {
	attack  float32
	release float32
	env     float32
}

// NewEnvelopeFollower creates a follower with the given attack and release
// times in milliseconds.
func NewEnvelopeFollower(attackMs, releaseMs float64, sampleRate int) *EnvelopeFollower {
	return &EnvelopeFollower{
		attack:  onePoleCoeff(attackMs, sampleRate),
		release: onePoleCoeff(releaseMs, sampleRate),
	}
}

// onePoleCoeff converts a time constant in milliseconds to a one-pole
// smoothing coefficient at the given rate.
func onePoleCoeff(ms float64, sampleRate int) float32 {
	if ms <= 0 {
		return 0
	}
	return float32(math.Exp(-1.0 / (ms / 1000.0 * float64(sampleRate))))
}

// Process advances the follower by one sample and returns the envelope.
func (e *EnvelopeFollower) Process(x float32) float32 {
	mag := x
	if mag < 0 {
		mag = -mag
	}
	coeff := e.release
	if mag > e.env {
		coeff = e.attack
	}
	e.env = mag + coeff*(e.env-mag)
	return e.env
}

// Value returns the current envelope without advancing.
func (e *EnvelopeFollower) Value() float32 {
	return e.env
}

// Reset clears the follower state.
func (e *EnvelopeFollower) Reset() {
	e.env = 0
}

// SlidingRMS computes the root-mean-square level over the most recent
// window of samples using a circular buffer and a running sum of squares.
type SlidingRMS struct {
	buf []float64
	pos int
	sum float64
}

// NewSlidingRMS creates a meter over a window of the given size in samples.
func NewSlidingRMS(window int) *SlidingRMS {
	if window < 1 {
		window = 1
	}
	return &SlidingRMS{buf: make([]float64, window)}
}

// Process pushes one sample and returns the RMS over the current window.
// The window starts zero-filled, so early values ramp up from silence.
func (s *SlidingRMS) Process(x float32) float64 {
	sq := float64(x) * float64(x)
	s.sum += sq - s.buf[s.pos]
	s.buf[s.pos] = sq
	s.pos++
	if s.pos == len(s.buf) {
		s.pos = 0
	}
	// The running sum drifts by accumulated rounding; clamp at zero.
	if s.sum < 0 {
		s.sum = 0
	}
	return math.Sqrt(s.sum / float64(len(s.buf)))
}

// Value returns the RMS over the current window without advancing.
func (s *SlidingRMS) Value() float64 {
	if s.sum < 0 {
		return 0
	}
	return math.Sqrt(s.sum / float64(len(s.buf)))
}

// Reset clears the window.
func (s *SlidingRMS) Reset() {
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.pos = 0
	s.sum = 0
}

// PeakMeter tracks the largest absolute sample seen since the last reset.
type PeakMeter struct {
	peak float32
}

// Process feeds one sample and returns the running peak.
func (p *PeakMeter) Process(x float32) float32 {
	if x < 0 {
		x = -x
	}
	if x > p.peak {
		p.peak = x
	}
	return p.peak
}

// ProcessBlock feeds a block of samples and returns the running peak.
func (p *PeakMeter) ProcessBlock(block []float32) float32 {
	for _, x := range block {
		if x < 0 {
			x = -x
		}
		if x > p.peak {
			p.peak = x
		}
	}
	return p.peak
}

// Value returns the current peak.
func (p *PeakMeter) Value() float32 {
	return p.peak
}

// Reset clears the peak.
func (p *PeakMeter) Reset() {
	p.peak = 0
}
