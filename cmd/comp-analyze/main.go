package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/cwbudde/algo-comp/analysis"
	"github.com/cwbudde/algo-comp/internal/compcommon"
)

func main() {
	inPath := flag.String("in", "", "Take WAV path")
	bpm := flag.Float64("bpm", 120.0, "Tempo of the recording in beats per minute")
	regionOffset := flag.Int("region-offset", 0, "Sample index in the take that lines up with the region start")
	sampleRate := flag.Int("sample-rate", 0, "Resample to this rate before analysis (0 keeps the file rate)")
	clipDb := flag.Float64("clip-threshold-db", -0.5, "Clipping detection threshold in dBFS")
	frameSize := flag.Int("frame-size", 2048, "FFT frame size for onset detection (power of two)")
	hopSize := flag.Int("hop", 512, "Hop between analysis frames in samples")
	jsonOut := flag.Bool("json", false, "Print metrics as JSON (paste-able into a session take's metrics block)")
	flag.Parse()

	if *inPath == "" {
		die("missing -in: need a take WAV to analyze")
	}

	samples, fileRate, err := compcommon.ReadWAV(*inPath)
	if err != nil {
		die("failed to read take: %v", err)
	}
	rate := fileRate
	offset := *regionOffset
	if *sampleRate > 0 && *sampleRate != fileRate {
		samples, err = compcommon.ResampleIfNeeded(samples, fileRate, *sampleRate)
		if err != nil {
			die("failed to resample take: %v", err)
		}
		offset = int(math.Round(float64(offset) * float64(*sampleRate) / float64(fileRate)))
		rate = *sampleRate
	}

	cfg := analysis.DefaultConfig()
	cfg.ClippingThresholdDb = *clipDb
	cfg.FrameSize = *frameSize
	cfg.HopSize = *hopSize

	metrics, err := analysis.AnalyzeTake(samples, rate, *bpm, offset, cfg)
	if err != nil {
		die("analysis failed: %v", err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(metrics); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	frames := 0
	if len(samples) > 0 {
		frames = len(samples[0])
	}
	fmt.Printf("Take:          %s (%d frames, %d channels @ %d Hz)\n", *inPath, frames, len(samples), rate)
	fmt.Printf("Timing error:  %.2f ms (median over %d onsets)\n", metrics.TimingErrorMs, metrics.OnsetCount)
	fmt.Printf("SNR:           %.1f dB (floor %.1f dB, signal %.1f dB)\n", metrics.SNRDb, metrics.NoiseFloorDb, metrics.SignalLevelDb)
	if metrics.HasClipping {
		fmt.Printf("Clipping:      %d samples at or above %.1f dBFS (peak %.2f dBFS)\n", metrics.ClippedSamples, *clipDb, metrics.PeakDb)
	} else {
		fmt.Printf("Clipping:      none (peak %.2f dBFS)\n", metrics.PeakDb)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
