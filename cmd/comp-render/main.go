package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/cwbudde/algo-comp/analysis"
	"github.com/cwbudde/algo-comp/comp"
	"github.com/cwbudde/algo-comp/internal/compcommon"
	"github.com/cwbudde/algo-comp/session"
)

func main() {
	sessionPath := flag.String("session", "session.json", "Session JSON file path")
	output := flag.String("output", "comp.wav", "Output WAV file path")
	reportPath := flag.String("report", "", "Optional comp report JSON path")
	sampleRate := flag.Int("sample-rate", 0, "Target sample rate in Hz (0 uses the first take's file rate)")
	forceAuto := flag.Bool("auto", false, "Ignore manual assignments and select every segment automatically")
	printSegments := flag.Bool("segments", false, "Print the per-segment selection table")
	flag.Parse()

	sess, err := session.LoadJSON(*sessionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading session %q: %v\n", *sessionPath, err)
		os.Exit(1)
	}
	cfg, err := sess.EngineConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in session config: %v\n", err)
		os.Exit(1)
	}
	engine, err := comp.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Comping %d takes, bars %d-%d at %.1f BPM (session: %s)...\n", len(sess.Takes), sess.Region.StartBar, sess.Region.EndBar, sess.BPM, *sessionPath)

	start := time.Now()
	takes, rate, err := loadTakes(sess, cfg, *sampleRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading takes: %v\n", err)
		os.Exit(1)
	}

	mode := sess.Mode()
	if *forceAuto {
		mode = comp.Auto{}
	}

	result, err := engine.Comp(takes, comp.Options{
		Region:  sess.Region,
		TrackID: sess.TrackID,
		BPM:     sess.BPM,
		Mode:    mode,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error comping: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Selected %d segments, %d crossfades, average score %.4f\n", result.SegmentCount, result.CrossfadeCount, result.AverageScore)

	if *printSegments {
		for _, seg := range result.Segments {
			fmt.Printf("  segment %3d [%9d:%9d) take=%-12s total=%.4f  %s\n", seg.Index, seg.StartSample, seg.EndSample, seg.SelectedTakeID, seg.Score.Total, seg.Score.Reason)
		}
	}

	out, err := engine.Render(takes, result, sess.BPM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering: %v\n", err)
		os.Exit(1)
	}

	if err := compcommon.WriteWAV(*output, out, rate); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output WAV: %v\n", err)
		os.Exit(1)
	}

	if *reportPath != "" {
		if err := writeReport(*reportPath, result); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			os.Exit(1)
		}
	}

	frames := 0
	if len(out) > 0 {
		frames = len(out[0])
	}
	fmt.Printf("Successfully wrote %s (%d frames, %d channels) in %.2fs\n", *output, frames, len(out), time.Since(start).Seconds())
}

// loadTakes reads every take WAV in the session, resamples to a common rate,
// and fills in metrics, running auto-analysis for takes without pinned values.
func loadTakes(sess *session.File, cfg comp.Config, targetRate int) ([]comp.Take, int, error) {
	takes := make([]comp.Take, 0, len(sess.Takes))
	rate := targetRate
	for i := range sess.Takes {
		entry := &sess.Takes[i]
		samples, fileRate, err := compcommon.ReadWAV(entry.Path)
		if err != nil {
			return nil, 0, fmt.Errorf("take %q: %w", entry.ID, err)
		}
		if rate == 0 {
			rate = fileRate
		}
		offset := entry.RegionOffset
		if fileRate != rate {
			samples, err = compcommon.ResampleIfNeeded(samples, fileRate, rate)
			if err != nil {
				return nil, 0, fmt.Errorf("take %q: %w", entry.ID, err)
			}
			offset = int(math.Round(float64(offset) * float64(rate) / float64(fileRate)))
		}

		var metrics comp.Metrics
		if entry.Complete() {
			metrics = entry.Merge(comp.Metrics{})
		} else {
			acfg := analysis.DefaultConfig()
			acfg.ClippingThresholdDb = cfg.ClippingThresholdDb
			m, err := analysis.AnalyzeTake(samples, rate, sess.BPM, offset, acfg)
			if err != nil {
				return nil, 0, fmt.Errorf("analyze take %q: %w", entry.ID, err)
			}
			metrics = entry.Merge(comp.Metrics{
				TimingErrorMs: m.TimingErrorMs,
				SNRDb:         m.SNRDb,
				HasClipping:   m.HasClipping,
			})
		}

		takes = append(takes, comp.Take{
			ID:           entry.ID,
			Samples:      samples,
			SampleRate:   rate,
			RegionOffset: offset,
			Metrics:      metrics,
		})
	}
	return takes, rate, nil
}

func writeReport(path string, result *comp.CompResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}
