package comp

import "errors"

// Error kinds reported by the engine. Returned errors wrap one of these
// sentinels with contextual detail; callers match them with errors.Is.
// Every kind is fatal to the single comp operation it occurs in and is
// never retried internally.
var (
	// ErrNoTakes is returned when the takes list is empty.
	ErrNoTakes = errors.New("no takes provided")

	// ErrInvalidConfig is returned when configuration or region inputs are
	// unusable: weights not summing to 1, non-positive segment size, region
	// end at or before start, non-positive bpm or sample rate.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrSampleRateMismatch is returned when takes disagree on sample rate.
	// The engine performs no implicit resampling.
	ErrSampleRateMismatch = errors.New("sample rate mismatch")

	// ErrChannelCountMismatch is returned when takes disagree on channel layout.
	ErrChannelCountMismatch = errors.New("channel count mismatch")

	// ErrManualAssignment is returned when a manual override references a
	// segment index outside the partitioned range or an unknown take ID.
	ErrManualAssignment = errors.New("manual assignment out of range")

	// ErrRenderFailure is returned on internal invariant violations during
	// crossfade synthesis or rendering, such as a segment shorter than one
	// crossfade window.
	ErrRenderFailure = errors.New("render failure")
)
