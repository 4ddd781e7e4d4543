package comp

// Scoring windows, in the units of the incoming metrics. Timing falls off
// linearly to zero at timingWindowMs of grid deviation; quality scales
// linearly up to full marks at qualityWindowDb of SNR.
const (
	timingWindowMs  = 50.0
	qualityWindowDb = 30.0
)

// ScoreBreakdown is the complete rating of one take for one segment.
// Timing, Quality and Total are in [0,1]; Clipping is the binary gate
// (0 when the take clips, 1 otherwise). Total is always the weighted sum
// of the three sub-scores under the operation's config.
type ScoreBreakdown struct {
	Timing   float64 `json:"timing"`
	Quality  float64 `json:"quality"`
	Clipping float64 `json:"clipping"`
	Total    float64 `json:"total"`
	Reason   string  `json:"reason"`
}

// ScoreTake rates one take under the given weights. The take's metrics are
// region-global, so the same breakdown applies to every segment the take is
// considered for. Pure function of its inputs; safe to call concurrently.
func ScoreTake(take *Take, cfg Config) ScoreBreakdown {
	timing := clamp01(1.0 - take.Metrics.TimingErrorMs/timingWindowMs)
	quality := clamp01(take.Metrics.SNRDb / qualityWindowDb)
	clipping := 1.0
	if take.Metrics.HasClipping {
		clipping = 0.0
	}
	b := ScoreBreakdown{
		Timing:   timing,
		Quality:  quality,
		Clipping: clipping,
		Total:    cfg.TimingWeight*timing + cfg.QualityWeight*quality + cfg.ClippingWeight*clipping,
	}
	b.Reason = scoreReason(b, cfg)
	return b
}

// scoreReason names the dominant weighted factor, then the clipping state.
// Deterministic so identical inputs always produce identical text.
func scoreReason(b ScoreBreakdown, cfg Config) string {
	timingPart := cfg.TimingWeight * b.Timing
	qualityPart := cfg.QualityWeight * b.Quality
	var lead string
	switch {
	case timingPart > qualityPart:
		lead = "best timing"
	case qualityPart > timingPart:
		lead = "best quality"
	default:
		lead = "balanced timing and quality"
	}
	if b.Clipping == 0 {
		return lead + ", clipping detected"
	}
	return lead + ", no clipping"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
