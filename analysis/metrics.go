package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/cwbudde/algo-approx"
	algofft "github.com/cwbudde/algo-fft"
	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/algo-comp/dsp"
)

// Config controls take metric extraction.
type Config struct {
	// FrameSize is the STFT frame length in samples, a power of two.
	FrameSize int
	// HopSize is the STFT frame advance in samples.
	HopSize int
	// ClippingThresholdDb is the full-scale level at or above which a
	// sample counts as clipped.
	ClippingThresholdDb float64
	// MinClipRun is how many consecutive clipped samples flag the take.
	// Isolated peaks at full scale are tolerated below this run length.
	MinClipRun int
	// NoiseQuantile and SignalQuantile pick the frame-RMS order statistics
	// used as noise floor and signal level for the SNR estimate.
	NoiseQuantile  float64
	SignalQuantile float64
	// OnsetThreshold is the minimum normalized spectral novelty for an
	// onset, in (0,1).
	OnsetThreshold float64
	// GateDb mutes onset detection while the signal envelope sits below
	// this full-scale level.
	GateDb float64
}

// DefaultConfig returns the standard extraction parameters.
func DefaultConfig() Config {
	return Config{
		FrameSize:           2048,
		HopSize:             512,
		ClippingThresholdDb: -0.5,
		MinClipRun:          3,
		NoiseQuantile:       0.10,
		SignalQuantile:      0.90,
		OnsetThreshold:      0.30,
		GateDb:              -60,
	}
}

// Validate reports the first problem with the config, or nil.
func (c Config) Validate() error {
	if c.FrameSize < 64 || c.FrameSize&(c.FrameSize-1) != 0 {
		return fmt.Errorf("frame size must be a power of two >= 64, got %d", c.FrameSize)
	}
	if c.HopSize < 1 || c.HopSize > c.FrameSize {
		return fmt.Errorf("hop size must be in [1,%d], got %d", c.FrameSize, c.HopSize)
	}
	if c.ClippingThresholdDb > 0 {
		return fmt.Errorf("clipping threshold must be <= 0 dBFS, got %g", c.ClippingThresholdDb)
	}
	if c.MinClipRun < 1 {
		return fmt.Errorf("min clip run must be >= 1, got %d", c.MinClipRun)
	}
	if c.NoiseQuantile <= 0 || c.SignalQuantile >= 1 || c.NoiseQuantile >= c.SignalQuantile {
		return fmt.Errorf("quantiles must satisfy 0 < noise < signal < 1, got %g and %g",
			c.NoiseQuantile, c.SignalQuantile)
	}
	if c.OnsetThreshold <= 0 || c.OnsetThreshold >= 1 {
		return fmt.Errorf("onset threshold must be in (0,1), got %g", c.OnsetThreshold)
	}
	return nil
}

// Metrics describes one take's measured performance characteristics. The
// first three fields feed comp scoring; the rest are diagnostics.
type Metrics struct {
	TimingErrorMs float64 `json:"timing_error_ms"`
	SNRDb         float64 `json:"snr_db"`
	HasClipping   bool    `json:"has_clipping"`

	OnsetCount     int     `json:"onset_count"`
	NoiseFloorDb   float64 `json:"noise_floor_db"`
	SignalLevelDb  float64 `json:"signal_level_db"`
	PeakDb         float64 `json:"peak_db"`
	ClippedSamples int     `json:"clipped_samples"`
	Frames         int     `json:"frames"`
}

// AnalyzeTake measures one take against the beat grid implied by bpm.
// samples is planar per-channel audio in [-1,1]; regionOffset is the index
// into samples that aligns with the region start, so grid positions can be
// compared in region time. The result is deterministic for identical inputs.
func AnalyzeTake(samples [][]float32, sampleRate int, bpm float64, regionOffset int, cfg Config) (Metrics, error) {
	if err := cfg.Validate(); err != nil {
		return Metrics{}, err
	}
	if len(samples) == 0 || len(samples[0]) == 0 {
		return Metrics{}, fmt.Errorf("no audio to analyze")
	}
	for ch := 1; ch < len(samples); ch++ {
		if len(samples[ch]) != len(samples[0]) {
			return Metrics{}, fmt.Errorf("channel %d has %d samples, channel 0 has %d",
				ch, len(samples[ch]), len(samples[0]))
		}
	}
	if sampleRate <= 0 {
		return Metrics{}, fmt.Errorf("sample rate must be > 0, got %d", sampleRate)
	}
	if bpm <= 0 {
		return Metrics{}, fmt.Errorf("bpm must be > 0, got %g", bpm)
	}

	var m Metrics

	var peak dsp.PeakMeter
	for _, ch := range samples {
		peak.ProcessBlock(ch)
	}
	m.PeakDb = levelDb(float64(peak.Value()))
	m.ClippedSamples, m.HasClipping = detectClipping(samples, cfg)

	mono := mixdown(samples)
	flux, frameRMS, gateEnv, err := frameFeatures(mono, sampleRate, cfg)
	if err != nil {
		return Metrics{}, err
	}
	m.Frames = len(flux)

	m.NoiseFloorDb, m.SignalLevelDb, m.SNRDb = estimateSNR(frameRMS, cfg)

	onsets := pickOnsets(flux, gateEnv, cfg)
	m.OnsetCount = len(onsets)
	m.TimingErrorMs = timingError(onsets, sampleRate, bpm, regionOffset, cfg)

	return m, nil
}

// detectClipping counts samples at or above the threshold across all
// channels and flags the take when any channel holds the threshold for
// MinClipRun consecutive samples.
func detectClipping(samples [][]float32, cfg Config) (clipped int, has bool) {
	threshold := float32(linearLevel(cfg.ClippingThresholdDb))
	for _, ch := range samples {
		run := 0
		for _, s := range ch {
			a := s
			if a < 0 {
				a = -a
			}
			if a >= threshold {
				clipped++
				run++
				if run >= cfg.MinClipRun {
					has = true
				}
			} else {
				run = 0
			}
		}
	}
	return clipped, has
}

// mixdown averages the channels into one mono signal for framing.
func mixdown(samples [][]float32) []float64 {
	mono := make([]float64, len(samples[0]))
	scale := 1.0 / float64(len(samples))
	for _, ch := range samples {
		for i, s := range ch {
			mono[i] += float64(s) * scale
		}
	}
	return mono
}

// frameFeatures walks the mono signal frame by frame and returns the
// positive spectral flux, the windowed RMS, and the envelope level at each
// frame end. The first frame's flux is zeroed; it only measures the jump
// from silence into the first spectrum.
func frameFeatures(mono []float64, sampleRate int, cfg Config) (flux, frameRMS, gateEnv []float64, err error) {
	if len(mono) < cfg.FrameSize {
		return nil, nil, nil, nil
	}
	plan, err := algofft.NewPlanReal64(cfg.FrameSize)
	if err != nil {
		return nil, nil, nil, err
	}

	window := hannWindow(cfg.FrameSize)
	spec := make([]complex128, cfg.FrameSize/2+1)
	buf := make([]float64, cfg.FrameSize)
	bins := cfg.FrameSize / 2
	prev := make([]float64, bins)

	rms := dsp.NewSlidingRMS(cfg.FrameSize)
	env := dsp.NewEnvelopeFollower(1.0, 50.0, sampleRate)

	fed := 0
	for pos := 0; pos+cfg.FrameSize <= len(mono); pos += cfg.HopSize {
		for i := 0; i < cfg.FrameSize; i++ {
			buf[i] = mono[pos+i] * window[i]
		}
		plan.Forward(spec, buf)

		var f float64
		for k := 1; k < bins; k++ {
			mag := cmplx.Abs(spec[k])
			if d := mag - prev[k]; d > 0 {
				f += d
			}
			prev[k] = mag
		}

		for ; fed < pos+cfg.FrameSize; fed++ {
			rms.Process(float32(mono[fed]))
			env.Process(float32(mono[fed]))
		}

		flux = append(flux, f)
		frameRMS = append(frameRMS, rms.Value())
		gateEnv = append(gateEnv, float64(env.Value()))
	}
	if len(flux) > 0 {
		flux[0] = 0
	}
	return flux, frameRMS, gateEnv, nil
}

// estimateSNR compares order statistics of the frame RMS track: the low
// quantile stands in for the noise floor, the high one for the played
// signal level.
func estimateSNR(frameRMS []float64, cfg Config) (floorDb, signalDb, snrDb float64) {
	if len(frameRMS) == 0 {
		return -120, -120, 0
	}
	sorted := append([]float64(nil), frameRMS...)
	sort.Float64s(sorted)
	floor := stat.Quantile(cfg.NoiseQuantile, stat.Empirical, sorted, nil)
	signal := stat.Quantile(cfg.SignalQuantile, stat.Empirical, sorted, nil)
	floorDb = levelDb(floor)
	signalDb = levelDb(signal)
	snrDb = signalDb - floorDb
	if snrDb < 0 {
		snrDb = 0
	}
	return floorDb, signalDb, snrDb
}

// pickOnsets returns the frame indices of detected note onsets: local
// maxima of the soft-saturated novelty curve above the configured
// threshold, with the envelope gate open.
func pickOnsets(flux, gateEnv []float64, cfg Config) []int {
	if len(flux) == 0 {
		return nil
	}
	var mean float64
	for _, f := range flux {
		mean += f
	}
	mean /= float64(len(flux))
	if mean <= 0 {
		return nil
	}

	// Soft-saturating normalization keeps huge transients from burying
	// quieter onsets. The fast exponential is fine here; peak picking only
	// needs the curve's shape.
	novelty := make([]float64, len(flux))
	for i, f := range flux {
		novelty[i] = 1.0 - float64(approx.FastExp(float32(-f/mean)))
	}

	gate := linearLevel(cfg.GateDb)
	var onsets []int
	for i := range novelty {
		if novelty[i] < cfg.OnsetThreshold || gateEnv[i] < gate {
			continue
		}
		if !localMax(novelty, i, 2) {
			continue
		}
		onsets = append(onsets, i)
	}
	return onsets
}

// localMax reports whether v[i] tops its neighborhood, with ties broken
// toward the earlier frame.
func localMax(v []float64, i, radius int) bool {
	lo, hi := i-radius, i+radius
	if lo < 0 {
		lo = 0
	}
	if hi >= len(v) {
		hi = len(v) - 1
	}
	for j := lo; j <= hi; j++ {
		if j == i {
			continue
		}
		if v[j] > v[i] || (v[j] == v[i] && j < i) {
			return false
		}
	}
	return true
}

// timingError measures the median absolute deviation of onset positions
// from the beat grid, in milliseconds. No onsets means nothing measurably
// off-grid, which reports as zero.
func timingError(onsetFrames []int, sampleRate int, bpm float64, regionOffset int, cfg Config) float64 {
	if len(onsetFrames) == 0 {
		return 0
	}
	samplesPerBeat := 60.0 / bpm * float64(sampleRate)
	devs := make([]float64, 0, len(onsetFrames))
	for _, f := range onsetFrames {
		// Frame center in take samples, then into region time.
		pos := f*cfg.HopSize + cfg.FrameSize/2
		r := float64(pos - regionOffset)
		m := math.Mod(r, samplesPerBeat)
		if m < 0 {
			m += samplesPerBeat
		}
		d := math.Min(m, samplesPerBeat-m)
		devs = append(devs, d/float64(sampleRate)*1000.0)
	}
	sort.Float64s(devs)
	return stat.Quantile(0.5, stat.Empirical, devs, nil)
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// levelDb converts a linear level to dB full scale, floored well below
// audibility to avoid log of zero.
func levelDb(v float64) float64 {
	return 20 * math.Log10(math.Max(v, 1e-12))
}

func linearLevel(db float64) float64 {
	return math.Pow(10, db/20)
}
