package main

import (
	"github.com/cwbudde/algo-comp/comp"
)

type knobDef struct {
	Name string
	Min  float64
	Max  float64
}

type candidate struct {
	Vals []float64
}

// weightKnobs returns the raw score-weight knobs. Only the ratios between
// the raws matter; configFromCandidate divides by their sum so the resulting
// weights always satisfy the engine's unit-sum check. The lower bound keeps
// the sum away from zero.
func weightKnobs() []knobDef {
	return []knobDef{
		{Name: "timing_weight_raw", Min: 0.01, Max: 1.0},
		{Name: "quality_weight_raw", Min: 0.01, Max: 1.0},
		{Name: "clipping_weight_raw", Min: 0.01, Max: 1.0},
	}
}

func initCandidate(defs []knobDef, base comp.Config) candidate {
	vals := []float64{base.TimingWeight, base.QualityWeight, base.ClippingWeight}
	for i := range vals {
		vals[i] = clamp(vals[i], defs[i].Min, defs[i].Max)
	}
	return candidate{Vals: vals}
}

func configFromCandidate(base comp.Config, c candidate) comp.Config {
	sum := c.Vals[0] + c.Vals[1] + c.Vals[2]
	cfg := base
	cfg.TimingWeight = c.Vals[0] / sum
	cfg.QualityWeight = c.Vals[1] / sum
	cfg.ClippingWeight = c.Vals[2] / sum
	return cfg
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i := range defs {
		x := 0.0
		if i < len(pos) {
			x = clamp(pos[i], 0, 1)
		}
		vals[i] = defs[i].Min + x*(defs[i].Max-defs[i].Min)
	}
	return candidate{Vals: vals}
}
