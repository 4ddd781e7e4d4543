package comp

import (
	"errors"
	"testing"
)

func TestCompSingleTakeCoversWholeRegion(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	takes := []Take{makeTake("solo", Metrics{TimingErrorMs: 35, SNRDb: 8, HasClipping: true})}

	res, err := e.Comp(takes, Options{Region: Region{StartBar: 0, EndBar: 8}, BPM: 120})
	if err != nil {
		t.Fatalf("Comp: %v", err)
	}
	if res.SegmentCount != 1 || len(res.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(res.Segments))
	}
	seg := res.Segments[0]
	if seg.StartSample != 0 || seg.EndSample != 768000 {
		t.Fatalf("segment spans [%d,%d), want [0,768000)", seg.StartSample, seg.EndSample)
	}
	if seg.SelectedTakeID != "solo" {
		t.Fatalf("selected %q, want %q", seg.SelectedTakeID, "solo")
	}
	if seg.Score.Total != 1 || seg.Score.Reason != "only take available" {
		t.Fatalf("score = %+v, want total 1 with only-take reason", seg.Score)
	}
	if res.CrossfadeCount != 0 || len(res.Crossfades) != 0 {
		t.Fatalf("got %d crossfades, want 0", len(res.Crossfades))
	}
	if res.AverageScore != 1 {
		t.Fatalf("average score = %v, want 1", res.AverageScore)
	}
}

func TestCompSingleTakeValidatesManualAssignments(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	takes := []Take{makeTake("solo", Metrics{})}
	opts := Options{Region: Region{StartBar: 0, EndBar: 4}, BPM: 120}

	opts.Mode = Manual{Assignments: map[int]string{3: "solo"}}
	if _, err := e.Comp(takes, opts); !errors.Is(err, ErrManualAssignment) {
		t.Fatalf("expected ErrManualAssignment for index past the single segment, got %v", err)
	}

	opts.Mode = Manual{Assignments: map[int]string{0: "solo"}}
	res, err := e.Comp(takes, opts)
	if err != nil {
		t.Fatalf("Comp: %v", err)
	}
	if res.Segments[0].SelectedTakeID != "solo" {
		t.Fatalf("selected %q, want %q", res.Segments[0].SelectedTakeID, "solo")
	}
}

func TestCompAutoSelectsBestTakeEverySegment(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	takes := []Take{
		makeTake("mid", Metrics{TimingErrorMs: 20, SNRDb: 18}),
		makeTake("best", Metrics{TimingErrorMs: 5, SNRDb: 25}),
		makeTake("worst", Metrics{TimingErrorMs: 45, SNRDb: 6, HasClipping: true}),
	}

	res, err := e.Comp(takes, Options{Region: Region{StartBar: 0, EndBar: 16}, BPM: 120, TrackID: "gtr-1"})
	if err != nil {
		t.Fatalf("Comp: %v", err)
	}
	if res.TrackID != "gtr-1" || res.SampleRate != 48000 || res.ChannelCount != 1 {
		t.Fatalf("result format = %q/%d/%d, want gtr-1/48000/1", res.TrackID, res.SampleRate, res.ChannelCount)
	}
	if len(res.Segments) != 16 {
		t.Fatalf("got %d segments, want 16", len(res.Segments))
	}
	assertTiling(t, res.Segments, 1536000)
	for i := range res.Segments {
		if res.Segments[i].SelectedTakeID != "best" {
			t.Fatalf("segment %d selected %q, want %q", i, res.Segments[i].SelectedTakeID, "best")
		}
	}
	if len(res.Crossfades) != 0 {
		t.Fatalf("uniform selection produced %d crossfades, want 0", len(res.Crossfades))
	}
	if !within(res.AverageScore, 0.89333, 1e-5) {
		t.Fatalf("average score = %v, want 0.89333", res.AverageScore)
	}
}

func TestCompMixedManualAndAuto(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SegmentSizeBeats = 16
	e := mustEngine(t, cfg)
	takes := []Take{
		makeTake("better", Metrics{TimingErrorMs: 5, SNRDb: 25}),
		makeTake("worse", Metrics{TimingErrorMs: 40, SNRDb: 10, HasClipping: true}),
	}
	opts := Options{
		Region: Region{StartBar: 0, EndBar: 8},
		BPM:    120,
		Mode:   Manual{Assignments: map[int]string{0: "worse"}},
	}

	res, err := e.Comp(takes, opts)
	if err != nil {
		t.Fatalf("Comp: %v", err)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(res.Segments))
	}
	if res.Segments[0].SelectedTakeID != "worse" || res.Segments[0].Score.Reason != "manual selection" {
		t.Fatalf("segment 0 = %q (%q), want manual pick of worse", res.Segments[0].SelectedTakeID, res.Segments[0].Score.Reason)
	}
	if res.Segments[1].SelectedTakeID != "better" {
		t.Fatalf("segment 1 selected %q, want auto fallback to better", res.Segments[1].SelectedTakeID)
	}
	if len(res.Crossfades) != 1 {
		t.Fatalf("got %d crossfades, want 1 at the take change", len(res.Crossfades))
	}
	b := res.Crossfades[0]
	if b.PositionSample != 384000 || b.DurationSamples != 960 {
		t.Fatalf("boundary = %+v, want position 384000 duration 960", b)
	}
	if b.OutgoingTakeID != "worse" || b.IncomingTakeID != "better" {
		t.Fatalf("boundary takes = %q -> %q, want worse -> better", b.OutgoingTakeID, b.IncomingTakeID)
	}
	if !within(res.AverageScore, 0.94667, 1e-5) {
		t.Fatalf("average score = %v, want 0.94667", res.AverageScore)
	}
}

func TestCompNilModeDefaultsToAuto(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	takes := []Take{
		makeTake("a", Metrics{TimingErrorMs: 5, SNRDb: 25}),
		makeTake("b", Metrics{TimingErrorMs: 40, SNRDb: 10}),
	}
	opts := Options{Region: Region{StartBar: 0, EndBar: 4}, BPM: 120}

	nilMode, err := e.Comp(takes, opts)
	if err != nil {
		t.Fatalf("Comp with nil mode: %v", err)
	}
	opts.Mode = Auto{}
	auto, err := e.Comp(takes, opts)
	if err != nil {
		t.Fatalf("Comp with Auto: %v", err)
	}
	if len(nilMode.Segments) != len(auto.Segments) {
		t.Fatalf("segment counts differ: %d vs %d", len(nilMode.Segments), len(auto.Segments))
	}
	for i := range nilMode.Segments {
		if nilMode.Segments[i] != auto.Segments[i] {
			t.Fatalf("segment %d differs: %+v vs %+v", i, nilMode.Segments[i], auto.Segments[i])
		}
	}
}

func TestCompSegmentScoresKeepWeightedSumRelation(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	cfg := e.Config()
	takes := []Take{
		makeTake("a", Metrics{TimingErrorMs: 13.7, SNRDb: 22.4}),
		makeTake("b", Metrics{TimingErrorMs: 8.2, SNRDb: 17.1, HasClipping: true}),
		makeTake("c", Metrics{TimingErrorMs: 31.5, SNRDb: 27.8}),
	}

	res, err := e.Comp(takes, Options{Region: Region{StartBar: 0, EndBar: 8}, BPM: 97})
	if err != nil {
		t.Fatalf("Comp: %v", err)
	}
	for i := range res.Segments {
		s := res.Segments[i].Score
		for _, v := range []float64{s.Timing, s.Quality, s.Clipping, s.Total} {
			if v < 0 || v > 1 {
				t.Fatalf("segment %d has score outside [0,1]: %+v", i, s)
			}
		}
		want := cfg.TimingWeight*s.Timing + cfg.QualityWeight*s.Quality + cfg.ClippingWeight*s.Clipping
		if !within(s.Total, want, 1e-9) {
			t.Fatalf("segment %d total = %v, want weighted sum %v", i, s.Total, want)
		}
	}
}

func TestCompCrossfadeLongerThanSegment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CrossfadeDurationMs = 3000
	e := mustEngine(t, cfg)
	takes := []Take{
		makeTake("a", Metrics{TimingErrorMs: 5, SNRDb: 25}),
		makeTake("b", Metrics{TimingErrorMs: 10, SNRDb: 20}),
	}
	opts := Options{
		Region: Region{StartBar: 0, EndBar: 2},
		BPM:    120,
		Mode:   Manual{Assignments: map[int]string{0: "a", 1: "b"}},
	}

	_, err := e.Comp(takes, opts)
	if !errors.Is(err, ErrRenderFailure) {
		t.Fatalf("expected ErrRenderFailure for crossfade wider than a segment, got %v", err)
	}
}

func TestCompInputValidation(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	opts := Options{Region: Region{StartBar: 0, EndBar: 4}, BPM: 120}

	mono := makeTake("mono", Metrics{})
	stereo := makeTake("stereo", Metrics{})
	stereo.Samples = [][]float32{make([]float32, 256), make([]float32, 256)}
	slow := makeTake("slow", Metrics{})
	slow.SampleRate = 44100
	ragged := makeTake("ragged", Metrics{})
	ragged.Samples = [][]float32{make([]float32, 256), make([]float32, 128)}

	cases := []struct {
		name  string
		takes []Take
		want  error
	}{
		{name: "no takes", takes: nil, want: ErrNoTakes},
		{name: "sample rate mismatch", takes: []Take{mono, slow}, want: ErrSampleRateMismatch},
		{name: "channel count mismatch", takes: []Take{mono, stereo}, want: ErrChannelCountMismatch},
		{name: "ragged channels", takes: []Take{stereo, ragged}, want: ErrChannelCountMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Comp(tc.takes, opts)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero segment size", mutate: func(c *Config) { c.SegmentSizeBeats = 0 }},
		{name: "negative crossfade", mutate: func(c *Config) { c.CrossfadeDurationMs = -1 }},
		{name: "negative weight", mutate: func(c *Config) { c.TimingWeight, c.QualityWeight = -0.1, 0.9 }},
		{name: "weights sum below one", mutate: func(c *Config) { c.ClippingWeight = 0.1 }},
		{name: "weights sum above one", mutate: func(c *Config) { c.ClippingWeight = 0.300002 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestNewAcceptsWeightsWithinTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClippingWeight = 0.2000005
	if _, err := New(cfg); err != nil {
		t.Fatalf("weights summing to 1 within tolerance must pass, got %v", err)
	}
}
