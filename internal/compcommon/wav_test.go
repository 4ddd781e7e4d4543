package compcommon

import (
	"math"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "roundtrip.wav")

	const frames = 2048
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := range left {
		left[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/48000.0))
		right[i] = float32(0.25 * math.Sin(2*math.Pi*220*float64(i)/48000.0))
	}

	if err := WriteWAV(path, [][]float32{left, right}, 48000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	got, rate, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if rate != 48000 {
		t.Fatalf("sample rate = %d, want 48000", rate)
	}
	if len(got) != 2 || len(got[0]) != frames || len(got[1]) != frames {
		t.Fatalf("read %dx%d frames, want 2x%d", len(got), len(got[0]), frames)
	}
	// 16-bit quantization bounds the roundtrip error.
	const tol = 2.0 / 32768.0
	for ch := range got {
		want := [][]float32{left, right}[ch]
		for i := range got[ch] {
			if math.Abs(float64(got[ch][i]-want[i])) > tol {
				t.Fatalf("channel %d sample %d = %v, want %v within %v", ch, i, got[ch][i], want[i], tol)
			}
		}
	}
}

func TestWriteWAVRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	if err := WriteWAV(filepath.Join(dir, "a.wav"), nil, 48000); err == nil {
		t.Fatalf("expected an error for zero channels")
	}
	ragged := [][]float32{make([]float32, 10), make([]float32, 9)}
	if err := WriteWAV(filepath.Join(dir, "b.wav"), ragged, 48000); err == nil {
		t.Fatalf("expected an error for ragged channels")
	}
}

func TestReadWAVRejectsNonWAV(t *testing.T) {
	if _, _, err := ReadWAV(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestResampleIfNeededPassThrough(t *testing.T) {
	in := [][]float32{{0.1, 0.2, 0.3}}
	out, err := ResampleIfNeeded(in, 48000, 48000)
	if err != nil {
		t.Fatalf("ResampleIfNeeded: %v", err)
	}
	if &out[0][0] != &in[0][0] {
		t.Fatalf("matching rates should return the input unchanged")
	}
}

func TestResampleIfNeededChangesLength(t *testing.T) {
	const n = 4800
	in := make([]float32, n)
	for i := range in {
		in[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/48000.0))
	}
	out, err := ResampleIfNeeded([][]float32{in}, 48000, 24000)
	if err != nil {
		t.Fatalf("ResampleIfNeeded: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d channels, want 1", len(out))
	}
	// Halving the rate should roughly halve the length.
	if len(out[0]) < n/2-64 || len(out[0]) > n/2+64 {
		t.Fatalf("resampled length = %d, want about %d", len(out[0]), n/2)
	}
}
