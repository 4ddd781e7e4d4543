package comp

import (
	"math"
	"testing"
)

func TestScoreTakeFormula(t *testing.T) {
	cfg := DefaultConfig()
	take := Take{ID: "a", Metrics: Metrics{TimingErrorMs: 5, SNRDb: 25, HasClipping: false}}

	b := ScoreTake(&take, cfg)
	if !within(b.Timing, 0.9, 1e-9) {
		t.Fatalf("timing = %v, want 0.9", b.Timing)
	}
	if !within(b.Quality, 25.0/30.0, 1e-9) {
		t.Fatalf("quality = %v, want %v", b.Quality, 25.0/30.0)
	}
	if b.Clipping != 1 {
		t.Fatalf("clipping = %v, want 1", b.Clipping)
	}
	want := 0.4*0.9 + 0.4*(25.0/30.0) + 0.2*1
	if !within(b.Total, want, 1e-9) {
		t.Fatalf("total = %v, want %v", b.Total, want)
	}
}

func TestScoreTakeRanksCleanTakeOverClippedTake(t *testing.T) {
	cfg := DefaultConfig()
	a := Take{ID: "a", Metrics: Metrics{TimingErrorMs: 5, SNRDb: 25, HasClipping: false}}
	b := Take{ID: "b", Metrics: Metrics{TimingErrorMs: 40, SNRDb: 10, HasClipping: true}}

	sa := ScoreTake(&a, cfg)
	sb := ScoreTake(&b, cfg)

	if !within(sa.Total, 0.89333, 1e-5) {
		t.Fatalf("take a total = %v, want 0.89333", sa.Total)
	}
	if !within(sb.Total, 0.21333, 1e-5) {
		t.Fatalf("take b total = %v, want 0.21333", sb.Total)
	}
	if sa.Total <= sb.Total {
		t.Fatalf("clean take must outrank clipped take: %v vs %v", sa.Total, sb.Total)
	}
}

func TestScoreTakeClampsToUnitRange(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		name    string
		metrics Metrics
		timing  float64
		quality float64
	}{
		{name: "timing beyond window", metrics: Metrics{TimingErrorMs: 80, SNRDb: 15}, timing: 0, quality: 0.5},
		{name: "snr beyond window", metrics: Metrics{TimingErrorMs: 0, SNRDb: 60}, timing: 1, quality: 1},
		{name: "negative snr", metrics: Metrics{TimingErrorMs: 10, SNRDb: -12}, timing: 0.8, quality: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := ScoreTake(&Take{ID: "x", Metrics: tc.metrics}, cfg)
			if !within(b.Timing, tc.timing, 1e-9) {
				t.Fatalf("timing = %v, want %v", b.Timing, tc.timing)
			}
			if !within(b.Quality, tc.quality, 1e-9) {
				t.Fatalf("quality = %v, want %v", b.Quality, tc.quality)
			}
			if b.Timing < 0 || b.Timing > 1 || b.Quality < 0 || b.Quality > 1 || b.Total < 0 || b.Total > 1 {
				t.Fatalf("scores outside [0,1]: %+v", b)
			}
		})
	}
}

func TestScoreTakeClippingGate(t *testing.T) {
	cfg := DefaultConfig()
	clean := ScoreTake(&Take{ID: "x", Metrics: Metrics{TimingErrorMs: 0, SNRDb: 30}}, cfg)
	clipped := ScoreTake(&Take{ID: "x", Metrics: Metrics{TimingErrorMs: 0, SNRDb: 30, HasClipping: true}}, cfg)

	if clean.Clipping != 1 || clipped.Clipping != 0 {
		t.Fatalf("clipping gate = %v/%v, want 1/0", clean.Clipping, clipped.Clipping)
	}
	if !within(clean.Total-clipped.Total, cfg.ClippingWeight, 1e-9) {
		t.Fatalf("clipping should cost exactly its weight: %v vs %v", clean.Total, clipped.Total)
	}
}

func TestScoreTakeTotalIsWeightedSum(t *testing.T) {
	cfg := Config{
		SegmentSizeBeats:    4,
		CrossfadeDurationMs: 20,
		ClippingThresholdDb: -0.5,
		TimingWeight:        0.7,
		QualityWeight:       0.1,
		ClippingWeight:      0.2,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	b := ScoreTake(&Take{ID: "x", Metrics: Metrics{TimingErrorMs: 12, SNRDb: 18, HasClipping: true}}, cfg)
	want := cfg.TimingWeight*b.Timing + cfg.QualityWeight*b.Quality + cfg.ClippingWeight*b.Clipping
	if !within(b.Total, want, 1e-9) {
		t.Fatalf("total = %v, want weighted sum %v", b.Total, want)
	}
}

func TestScoreTakeIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	take := Take{ID: "x", Metrics: Metrics{TimingErrorMs: 17.3, SNRDb: 21.9, HasClipping: false}}
	first := ScoreTake(&take, cfg)
	for i := 0; i < 10; i++ {
		if got := ScoreTake(&take, cfg); got != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestScoreReason(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		name    string
		metrics Metrics
		want    string
	}{
		{name: "timing leads", metrics: Metrics{TimingErrorMs: 5, SNRDb: 15}, want: "best timing, no clipping"},
		{name: "quality leads", metrics: Metrics{TimingErrorMs: 40, SNRDb: 28}, want: "best quality, no clipping"},
		{name: "quality leads with clipping", metrics: Metrics{TimingErrorMs: 40, SNRDb: 10, HasClipping: true}, want: "best quality, clipping detected"},
		{name: "balanced", metrics: Metrics{TimingErrorMs: 0, SNRDb: 30}, want: "balanced timing and quality, no clipping"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := ScoreTake(&Take{ID: "x", Metrics: tc.metrics}, cfg)
			if b.Reason != tc.want {
				t.Fatalf("reason = %q, want %q", b.Reason, tc.want)
			}
		})
	}
}

func within(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}
