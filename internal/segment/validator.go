package segment

import (
	"fmt"
	"time"
)

// Default validation thresholds. Segments below these are unreliable
// inputs to the renderer and to concatenation, and are the usual cause
// of the "repeats a fragment" defect.
const (
	// DefaultMinDuration is the minimum usable segment duration.
	DefaultMinDuration = 3 * time.Second

	// DefaultMinAudioBytes is the minimum size for an audio segment.
	DefaultMinAudioBytes = 50_000

	// DefaultMinVideoBytes is the minimum size for a rendered video segment.
	DefaultMinVideoBytes = 100_000
)

// Limits holds the validation thresholds for candidate segments.
// A segment failing validation is never silently dropped: the caller
// either recomputes the plan or falls back to single-shot rendering.
type Limits struct {
	MinDuration   time.Duration
	MinAudioBytes int64
	MinVideoBytes int64
}

// DefaultLimits returns the standard validation thresholds.
func DefaultLimits() Limits {
	return Limits{
		MinDuration:   DefaultMinDuration,
		MinAudioBytes: DefaultMinAudioBytes,
		MinVideoBytes: DefaultMinVideoBytes,
	}
}

// normalize ensures all Limits fields have valid values.
func (l *Limits) normalize() {
	if l.MinDuration <= 0 {
		l.MinDuration = DefaultMinDuration
	}
	if l.MinAudioBytes <= 0 {
		l.MinAudioBytes = DefaultMinAudioBytes
	}
	if l.MinVideoBytes <= 0 {
		l.MinVideoBytes = DefaultMinVideoBytes
	}
}

// ValidateAudio checks an audio segment's duration and byte size against
// the thresholds. It returns nil on accept, or an ErrValidation-wrapped
// reason on reject.
func (l Limits) ValidateAudio(d time.Duration, size int64) error {
	l.normalize()
	if d < l.MinDuration {
		return fmt.Errorf("%w: audio segment duration %v below minimum %v",
			ErrValidation, d.Round(time.Millisecond), l.MinDuration)
	}
	if size < l.MinAudioBytes {
		return fmt.Errorf("%w: audio segment size %d bytes below minimum %d",
			ErrValidation, size, l.MinAudioBytes)
	}
	return nil
}

// ValidateVideo checks a rendered video segment's duration and byte size.
func (l Limits) ValidateVideo(d time.Duration, size int64) error {
	l.normalize()
	if d < l.MinDuration {
		return fmt.Errorf("%w: video segment duration %v below minimum %v",
			ErrValidation, d.Round(time.Millisecond), l.MinDuration)
	}
	if size < l.MinVideoBytes {
		return fmt.Errorf("%w: video segment size %d bytes below minimum %d",
			ErrValidation, size, l.MinVideoBytes)
	}
	return nil
}

// ValidatePlannedDuration checks only the duration threshold, for plan
// entries that have not been cut yet (no file size to inspect).
func (l Limits) ValidatePlannedDuration(d time.Duration) error {
	l.normalize()
	if d < l.MinDuration {
		return fmt.Errorf("%w: planned segment duration %v below minimum %v",
			ErrValidation, d.Round(time.Millisecond), l.MinDuration)
	}
	return nil
}
