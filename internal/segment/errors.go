package segment

import "errors"

// ErrValidation indicates a segment is below the minimum duration or size
// thresholds and cannot be used as renderer input.
var ErrValidation = errors.New("segment validation failed")

// ErrSplitCoverage indicates the cut segments do not cover the source
// duration within the hard tolerance.
var ErrSplitCoverage = errors.New("split does not cover source duration")

// ErrCutFailed indicates FFmpeg failed to extract a segment. A failed cut
// aborts the whole split; the splitter never returns a partial chunk set.
var ErrCutFailed = errors.New("segment cut failed")
