package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-comp/comp"
)

// File is the JSON schema for comp session manifests: one region, its
// tempo, the takes on disk, and optional overrides for the engine config
// and take selection. It is the interchange format of the command line
// tools; the engine itself never reads or writes files.
type File struct {
	TrackID string          `json:"track_id,omitempty"`
	BPM     float64         `json:"bpm"`
	Region  comp.Region     `json:"region"`
	Config  *ConfigOverride `json:"config,omitempty"`
	Takes   []TakeEntry     `json:"takes"`
	// Assignments pin takes to segments. A non-empty list switches the
	// operation to manual mode; unlisted segments still auto-score.
	Assignments []Assignment `json:"assignments,omitempty"`
}

// TakeEntry describes one take WAV on disk plus optional precomputed
// metrics. Entries without an ID get a generated one at load time.
type TakeEntry struct {
	ID           string           `json:"id,omitempty"`
	Path         string           `json:"path"`
	RegionOffset int              `json:"region_offset,omitempty"`
	Metrics      *MetricsOverride `json:"metrics,omitempty"`
}

// MetricsOverride carries precomputed metric fields. Fields left null are
// filled by analysis when a tool loads the take.
type MetricsOverride struct {
	TimingErrorMs *float64 `json:"timing_error_ms,omitempty"`
	SNRDb         *float64 `json:"snr_db,omitempty"`
	HasClipping   *bool    `json:"has_clipping,omitempty"`
}

// ConfigOverride carries partial engine configuration; fields left null
// keep their defaults.
type ConfigOverride struct {
	SegmentSizeBeats    *float64 `json:"segment_size_beats,omitempty"`
	CrossfadeDurationMs *float64 `json:"crossfade_duration_ms,omitempty"`
	ClippingThresholdDb *float64 `json:"clipping_threshold_db,omitempty"`
	TimingWeight        *float64 `json:"timing_weight,omitempty"`
	QualityWeight       *float64 `json:"quality_weight,omitempty"`
	ClippingWeight      *float64 `json:"clipping_weight,omitempty"`
}

// Assignment pins one segment to one take in manual mode.
type Assignment struct {
	Segment int    `json:"segment"`
	TakeID  string `json:"take_id"`
}

// LoadJSON reads and validates a session manifest. Relative take paths are
// resolved against the manifest's directory, and entries without an ID are
// assigned a fresh one.
func LoadJSON(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	if f.BPM <= 0 {
		return nil, fmt.Errorf("bpm must be > 0, got %g", f.BPM)
	}
	if f.Region.EndBar <= f.Region.StartBar {
		return nil, fmt.Errorf("region end bar %d must be after start bar %d", f.Region.EndBar, f.Region.StartBar)
	}
	if len(f.Takes) == 0 {
		return nil, fmt.Errorf("session has no takes")
	}

	base := filepath.Dir(path)
	seen := make(map[string]bool, len(f.Takes))
	for i := range f.Takes {
		e := &f.Takes[i]
		e.Path = strings.TrimSpace(e.Path)
		if e.Path == "" {
			return nil, fmt.Errorf("takes[%d] has no path", i)
		}
		if !filepath.IsAbs(e.Path) {
			e.Path = filepath.Clean(filepath.Join(base, e.Path))
		}
		e.ID = strings.TrimSpace(e.ID)
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate take id %q", e.ID)
		}
		seen[e.ID] = true
	}

	for i, a := range f.Assignments {
		if a.Segment < 0 {
			return nil, fmt.Errorf("assignments[%d] has negative segment index %d", i, a.Segment)
		}
		if !seen[a.TakeID] {
			return nil, fmt.Errorf("assignments[%d] references unknown take %q", i, a.TakeID)
		}
	}

	return &f, nil
}

// EngineConfig applies the session's overrides onto the default engine
// configuration and validates the result.
func (f *File) EngineConfig() (comp.Config, error) {
	cfg := comp.DefaultConfig()
	if o := f.Config; o != nil {
		if o.SegmentSizeBeats != nil {
			cfg.SegmentSizeBeats = *o.SegmentSizeBeats
		}
		if o.CrossfadeDurationMs != nil {
			cfg.CrossfadeDurationMs = *o.CrossfadeDurationMs
		}
		if o.ClippingThresholdDb != nil {
			cfg.ClippingThresholdDb = *o.ClippingThresholdDb
		}
		if o.TimingWeight != nil {
			cfg.TimingWeight = *o.TimingWeight
		}
		if o.QualityWeight != nil {
			cfg.QualityWeight = *o.QualityWeight
		}
		if o.ClippingWeight != nil {
			cfg.ClippingWeight = *o.ClippingWeight
		}
	}
	if err := cfg.Validate(); err != nil {
		return comp.Config{}, err
	}
	return cfg, nil
}

// Mode returns Manual when the session pins any segments, Auto otherwise.
func (f *File) Mode() comp.Mode {
	if len(f.Assignments) == 0 {
		return comp.Auto{}
	}
	m := comp.Manual{Assignments: make(map[int]string, len(f.Assignments))}
	for _, a := range f.Assignments {
		m.Assignments[a.Segment] = a.TakeID
	}
	return m
}

// Merge fills a measured metrics value with any fields the entry pins,
// returning what the engine should see for this take.
func (e *TakeEntry) Merge(measured comp.Metrics) comp.Metrics {
	if e.Metrics == nil {
		return measured
	}
	if e.Metrics.TimingErrorMs != nil {
		measured.TimingErrorMs = *e.Metrics.TimingErrorMs
	}
	if e.Metrics.SNRDb != nil {
		measured.SNRDb = *e.Metrics.SNRDb
	}
	if e.Metrics.HasClipping != nil {
		measured.HasClipping = *e.Metrics.HasClipping
	}
	return measured
}

// Complete reports whether the entry pins all metric fields, letting tools
// skip analysis for that take.
func (e *TakeEntry) Complete() bool {
	return e.Metrics != nil &&
		e.Metrics.TimingErrorMs != nil && e.Metrics.SNRDb != nil && e.Metrics.HasClipping != nil
}
