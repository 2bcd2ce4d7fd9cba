// Package segment plans and cuts a source audio artifact into an ordered
// sequence of bounded-duration segments, and enforces the minimum
// duration/size thresholds that make a segment a reliable renderer input.
package segment

import (
	"fmt"
	"time"
)

// Segment is a time-bounded slice of the source audio processed as one
// unit. Segments of one split are contiguous, non-overlapping, and cover
// the full source duration within tolerance. The caller is responsible
// for cleaning up segment files after use.
type Segment struct {
	Path  string        // Absolute path to the segment file.
	Index int           // Zero-based sequence index for ordering.
	Start time.Duration // Start timestamp in the source audio.
	End   time.Duration // End timestamp in the source audio.
	Size  int64         // File size in bytes.
}

// Duration returns the length of this segment.
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// String returns a human-readable representation for logging.
func (s Segment) String() string {
	return fmt.Sprintf("segment %d: %s-%s",
		s.Index,
		formatClock(s.Start),
		formatClock(s.End))
}

// formatClock formats a duration as HH:MM:SS or MM:SS.
func formatClock(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
