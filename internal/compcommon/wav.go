package compcommon

import (
	"fmt"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// ReadWAV decodes a WAV file into planar per-channel samples normalized to
// [-1,1], plus the file's sample rate.
func ReadWAV(path string) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("invalid wav buffer: %s", path)
	}

	bits := buf.SourceBitDepth
	if bits <= 0 {
		bits = 16
	}
	scale := 1.0 / float32(int64(1)<<(bits-1))

	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([][]float32, ch)
	for c := 0; c < ch; c++ {
		out[c] = make([]float32, frames)
		for i := 0; i < frames; i++ {
			out[c][i] = float32(buf.Data[i*ch+c]) * scale
		}
	}
	return out, buf.Format.SampleRate, nil
}

// ResampleIfNeeded converts planar audio from fromRate to toRate, channel
// by channel. The comp engine itself never resamples; tools call this
// explicitly before takes enter an operation, so any quality tradeoff is
// visible at the call site.
func ResampleIfNeeded(in [][]float32, fromRate int, toRate int) ([][]float32, error) {
	if fromRate == toRate {
		return in, nil
	}
	out := make([][]float32, len(in))
	for c, src := range in {
		r, err := dspresample.NewForRates(
			float64(fromRate),
			float64(toRate),
			dspresample.WithQuality(dspresample.QualityBest),
		)
		if err != nil {
			return nil, err
		}
		buf := make([]float64, len(src))
		for i, s := range src {
			buf[i] = float64(s)
		}
		res := r.Process(buf)
		out[c] = make([]float32, len(res))
		for i, s := range res {
			out[c][i] = float32(s)
		}
	}
	return out, nil
}

// WriteWAV writes planar channels to a 16-bit PCM WAV file, creating the
// parent directory if needed.
func WriteWAV(path string, channels [][]float32, sampleRate int) error {
	if len(channels) == 0 {
		return fmt.Errorf("no channels to write")
	}
	frames := len(channels[0])
	for c := 1; c < len(channels); c++ {
		if len(channels[c]) != frames {
			return fmt.Errorf("channel %d has %d samples, channel 0 has %d", c, len(channels[c]), frames)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, len(channels), 1)
	defer enc.Close()

	data := make([]float32, frames*len(channels))
	for i := 0; i < frames; i++ {
		for c := range channels {
			data[i*len(channels)+c] = channels[c][i]
		}
	}
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: len(channels),
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	return enc.Write(buf)
}
