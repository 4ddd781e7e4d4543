package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-comp/comp"
)

type runReport struct {
	SessionPaths   []string           `json:"session_paths"`
	Takes          int                `json:"takes"`
	Assignments    int                `json:"assignments"`
	DurationSec    float64            `json:"elapsed_seconds"`
	Evaluations    int                `json:"evaluations"`
	MayflyVariant  string             `json:"mayfly_variant"`
	BestLoss       float64            `json:"best_loss"`
	BestAgreement  float64            `json:"best_agreement"`
	TimingWeight   float64            `json:"timing_weight"`
	QualityWeight  float64            `json:"quality_weight"`
	ClippingWeight float64            `json:"clipping_weight"`
	BestKnobs      map[string]float64 `json:"best_knobs"`
	TopCandidates  []topCandidate     `json:"top_candidates,omitempty"`
}

// writeConfigJSON writes the fitted weights in the shape of a session config
// block, so the output can be pasted straight into a session file.
func writeConfigJSON(path string, cfg comp.Config) error {
	type out struct {
		SegmentSizeBeats    float64 `json:"segment_size_beats"`
		CrossfadeDurationMs float64 `json:"crossfade_duration_ms"`
		ClippingThresholdDb float64 `json:"clipping_threshold_db"`
		TimingWeight        float64 `json:"timing_weight"`
		QualityWeight       float64 `json:"quality_weight"`
		ClippingWeight      float64 `json:"clipping_weight"`
	}
	return writeJSON(path, out{
		SegmentSizeBeats:    cfg.SegmentSizeBeats,
		CrossfadeDurationMs: cfg.CrossfadeDurationMs,
		ClippingThresholdDb: cfg.ClippingThresholdDb,
		TimingWeight:        cfg.TimingWeight,
		QualityWeight:       cfg.QualityWeight,
		ClippingWeight:      cfg.ClippingWeight,
	})
}

func writeReportJSON(path string, defs []knobDef, best candidate, result *optimizationResult, rep runReport) error {
	knobs := make(map[string]float64, len(defs))
	for i, d := range defs {
		knobs[d.Name] = best.Vals[i]
	}
	rep.BestKnobs = knobs
	rep.BestLoss = result.bestEval.loss
	rep.BestAgreement = result.bestEval.agreement
	rep.TimingWeight = result.bestEval.weights.TimingWeight
	rep.QualityWeight = result.bestEval.weights.QualityWeight
	rep.ClippingWeight = result.bestEval.weights.ClippingWeight
	rep.DurationSec = result.elapsed
	rep.Evaluations = result.evals
	rep.TopCandidates = result.top
	return writeJSON(path, rep)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}
