// Package comp implements segment-based auto-comping of multi-take
// recordings: partition a bar range into beat-aligned segments, score every
// take per segment on timing, quality and clipping, select a winner per
// segment, and render the composite with equal-power crossfades at take
// transitions.
package comp

// Engine runs comp operations under one validated configuration.
type Engine struct {
	cfg Config
}

// New validates cfg and returns an engine bound to a private copy of it.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Options describe one comp operation. A nil Mode selects Auto.
type Options struct {
	Region  Region
	TrackID string
	// BPM is the tempo the region's bars are resolved against. Render takes
	// the same value again so its sample boundaries match the partitioning.
	BPM  float64
	Mode Mode
}

// CompResult is the full outcome of scoring and selection, prior to
// rendering. It is immutable once returned.
type CompResult struct {
	TrackID      string `json:"track_id,omitempty"`
	Region       Region `json:"region"`
	SampleRate   int    `json:"sample_rate"`
	ChannelCount int    `json:"channel_count"`

	Segments   []Segment           `json:"segments"`
	Crossfades []CrossfadeBoundary `json:"crossfades"`

	SegmentCount   int     `json:"segment_count"`
	CrossfadeCount int     `json:"crossfade_count"`
	AverageScore   float64 `json:"average_score"`
}

// Comp scores the takes, selects one per segment and derives the crossfade
// boundaries. Takes must be non-empty and share sample rate and channel
// count. The result is complete and self-contained; no partial results are
// produced on error.
func (e *Engine) Comp(takes []Take, opts Options) (*CompResult, error) {
	sampleRate, channels, err := validateTakes(takes)
	if err != nil {
		return nil, err
	}

	if len(takes) == 1 {
		return e.singleTakeResult(&takes[0], opts, sampleRate, channels)
	}

	segments, err := PartitionRegion(opts.Region, opts.BPM, sampleRate, e.cfg.SegmentSizeBeats)
	if err != nil {
		return nil, err
	}
	if err := e.selectTakes(takes, segments, opts.Mode); err != nil {
		return nil, err
	}
	duration := crossfadeSamples(e.cfg.CrossfadeDurationMs, sampleRate)
	crossfades, err := synthesizeCrossfades(segments, duration)
	if err != nil {
		return nil, err
	}

	return &CompResult{
		TrackID:        opts.TrackID,
		Region:         opts.Region,
		SampleRate:     sampleRate,
		ChannelCount:   channels,
		Segments:       segments,
		Crossfades:     crossfades,
		SegmentCount:   len(segments),
		CrossfadeCount: len(crossfades),
		AverageScore:   averageScore(segments),
	}, nil
}

// singleTakeResult covers the sole take over one segment spanning the whole
// region. Scoring is bypassed entirely; there is nothing to choose between.
func (e *Engine) singleTakeResult(take *Take, opts Options, sampleRate, channels int) (*CompResult, error) {
	total, err := regionSamples(opts.Region, opts.BPM, sampleRate)
	if err != nil {
		return nil, err
	}
	if m, ok := opts.Mode.(Manual); ok {
		if err := validateAssignments(m.Assignments, []Take{*take}, 1); err != nil {
			return nil, err
		}
	}
	segment := Segment{
		Index:          0,
		StartSample:    0,
		EndSample:      total,
		SelectedTakeID: take.ID,
		Score:          ScoreBreakdown{Timing: 1, Quality: 1, Clipping: 1, Total: 1, Reason: "only take available"},
	}
	return &CompResult{
		TrackID:        opts.TrackID,
		Region:         opts.Region,
		SampleRate:     sampleRate,
		ChannelCount:   channels,
		Segments:       []Segment{segment},
		SegmentCount:   1,
		CrossfadeCount: 0,
		AverageScore:   1.0,
	}, nil
}

func averageScore(segments []Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	var sum float64
	for i := range segments {
		sum += segments[i].Score.Total
	}
	return sum / float64(len(segments))
}

// takeIndex maps take IDs to their position in the input order.
func takeIndex(takes []Take) map[string]int {
	idx := make(map[string]int, len(takes))
	for i := range takes {
		idx[takes[i].ID] = i
	}
	return idx
}
