package segment

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/Shubhankar1/VBVA/internal/media"
)

// Splitting policy constants.
const (
	// DefaultPreferredLength is the preferred segment length. Audio at or
	// below this duration is never split: the 0-12s range is empirically
	// the most failure-prone for chunked rendering.
	DefaultPreferredLength = 12 * time.Second

	// HardCoverageTolerance is the maximum allowed discrepancy between the
	// sum of segment durations and the source duration. Exceeding it
	// aborts the split.
	HardCoverageTolerance = 100 * time.Millisecond

	// SoftCoverageTolerance is the discrepancy above which a warning is
	// logged without failing the split.
	SoftCoverageTolerance = 10 * time.Millisecond

	// chunkSampleRate is the sample rate chunks are re-encoded to.
	// A uniform rate across chunks keeps timestamps clean at the joins.
	chunkSampleRate = 24000
)

// Splitter divides a source audio artifact into an ordered sequence of
// equal-length segments.
type Splitter struct {
	ffmpegPath string
	prober     media.Prober
	limits     Limits
	preferred  time.Duration
	log        zerolog.Logger

	cmd     commandRunner
	tempDir tempDirCreator
	stat    fileStatter
	files   fileRemover
}

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithLimits sets the validation thresholds.
func WithLimits(l Limits) SplitterOption {
	return func(sp *Splitter) { sp.limits = l }
}

// WithPreferredLength sets the preferred segment length.
func WithPreferredLength(d time.Duration) SplitterOption {
	return func(sp *Splitter) {
		if d > 0 {
			sp.preferred = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log zerolog.Logger) SplitterOption {
	return func(sp *Splitter) { sp.log = log }
}

// WithSplitterCommandRunner sets the command runner (for testing).
func WithSplitterCommandRunner(r commandRunner) SplitterOption {
	return func(sp *Splitter) { sp.cmd = r }
}

// WithSplitterTempDir sets the temp directory creator (for testing).
func WithSplitterTempDir(t tempDirCreator) SplitterOption {
	return func(sp *Splitter) { sp.tempDir = t }
}

// WithSplitterFileStatter sets the file statter (for testing).
func WithSplitterFileStatter(s fileStatter) SplitterOption {
	return func(sp *Splitter) { sp.stat = s }
}

// WithSplitterFileRemover sets the file remover (for testing).
func WithSplitterFileRemover(f fileRemover) SplitterOption {
	return func(sp *Splitter) { sp.files = f }
}

// NewSplitter creates a Splitter using the given ffmpeg binary and prober.
func NewSplitter(ffmpegPath string, prober media.Prober, opts ...SplitterOption) (*Splitter, error) {
	if ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpegPath cannot be empty")
	}
	if prober == nil {
		return nil, fmt.Errorf("prober cannot be nil")
	}

	sp := &Splitter{
		ffmpegPath: ffmpegPath,
		prober:     prober,
		limits:     DefaultLimits(),
		preferred:  DefaultPreferredLength,
		log:        zerolog.Nop(),
		cmd:        osCommandRunner{},
		tempDir:    osTempDirCreator{},
		stat:       osFileStatter{},
		files:      osFileRemover{},
	}
	for _, opt := range opts {
		opt(sp)
	}
	return sp, nil
}

// PlanChunkCount returns the number of equal-length chunks a source of
// the given total duration should be cut into: ceil(total/preferred),
// reduced while the resulting per-chunk length would fall below the
// minimum duration. A result of 1 means single-shot.
func PlanChunkCount(total, preferred time.Duration, limits Limits) int {
	if preferred <= 0 {
		preferred = DefaultPreferredLength
	}
	if total <= preferred {
		return 1
	}

	n := int(math.Ceil(total.Seconds() / preferred.Seconds()))
	for n > 1 && limits.ValidatePlannedDuration(total/time.Duration(n)) != nil {
		n--
	}
	return n
}

// Split cuts the source audio into an ordered sequence of segments.
// Sources at or below the preferred length come back as one segment
// pointing at the source file itself (no cut). Chunks are always equal
// divisions of the total duration, never a fixed absolute length, so
// there is no small remainder segment.
//
// Any cut failure aborts the whole split; a partial chunk set is never
// returned. The caller owns cleanup of the returned segment files.
func (sp *Splitter) Split(ctx context.Context, audioPath string) ([]Segment, error) {
	total, err := sp.prober.Probe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("probe source: %w", err)
	}

	n := PlanChunkCount(total, sp.preferred, sp.limits)
	if n == 1 {
		seg, err := sp.wholeSegment(audioPath, total)
		if err != nil {
			return nil, err
		}
		return []Segment{seg}, nil
	}

	sp.log.Debug().
		Str("source", audioPath).
		Dur("total", total).
		Int("chunks", n).
		Msg("splitting audio")

	tempDir, err := sp.tempDir.MkdirTemp("", "vbva-segments-*")
	if err != nil {
		return nil, fmt.Errorf("create segment directory: %w", err)
	}

	segments := make([]Segment, 0, n)
	var covered time.Duration
	for i := 0; i < n; i++ {
		start := total * time.Duration(i) / time.Duration(n)
		end := total * time.Duration(i+1) / time.Duration(n)

		chunkPath := filepath.Join(tempDir, fmt.Sprintf("segment_%03d.mp3", i))
		if err := sp.cut(ctx, audioPath, chunkPath, start, end); err != nil {
			_ = sp.files.RemoveAll(tempDir) // best-effort cleanup; cut error takes precedence
			return nil, err
		}

		dur, size, err := sp.inspect(ctx, chunkPath)
		if err != nil {
			_ = sp.files.RemoveAll(tempDir)
			return nil, err
		}
		if err := sp.limits.ValidateAudio(dur, size); err != nil {
			_ = sp.files.RemoveAll(tempDir)
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}

		segments = append(segments, Segment{
			Path:  chunkPath,
			Index: i,
			Start: start,
			End:   end,
			Size:  size,
		})
		covered += dur
	}

	if err := sp.checkCoverage(total, covered); err != nil {
		_ = sp.files.RemoveAll(tempDir)
		return nil, err
	}

	return segments, nil
}

// wholeSegment returns a single segment spanning the entire source.
func (sp *Splitter) wholeSegment(audioPath string, total time.Duration) (Segment, error) {
	info, err := sp.stat.Stat(audioPath)
	if err != nil {
		return Segment{}, fmt.Errorf("stat source: %w", err)
	}
	return Segment{
		Path:  audioPath,
		Index: 0,
		Start: 0,
		End:   total,
		Size:  info.Size(),
	}, nil
}

// cut extracts [start, end) from audioPath to chunkPath. Seeking
// happens on the input (-ss before -i), which skips decoding everything
// ahead of the cut point. Chunks are re-encoded to a fixed sample rate
// rather than stream-copied: copied audio keeps the source's packet
// boundaries, which desynchronizes timestamps after recombination.
func (sp *Splitter) cut(ctx context.Context, audioPath, chunkPath string, start, end time.Duration) error {
	args := []string{
		"-y",
		"-ss", formatFFmpegTime(start),
		"-i", audioPath,
		"-t", formatFFmpegTime(end - start),
		"-c:a", "libmp3lame",
		"-ar", fmt.Sprintf("%d", chunkSampleRate),
		chunkPath,
	}

	output, err := sp.cmd.CombinedOutput(ctx, sp.ffmpegPath, args)
	if err != nil {
		return fmt.Errorf("%w: %s: %v\nOutput: %s",
			ErrCutFailed, chunkPath, err, string(output))
	}
	return nil
}

// inspect probes a cut chunk's actual duration and size.
func (sp *Splitter) inspect(ctx context.Context, chunkPath string) (time.Duration, int64, error) {
	dur, err := sp.prober.Probe(ctx, chunkPath)
	if err != nil {
		return 0, 0, fmt.Errorf("probe chunk: %w", err)
	}
	info, err := sp.stat.Stat(chunkPath)
	if err != nil {
		return 0, 0, fmt.Errorf("stat chunk: %w", err)
	}
	return dur, info.Size(), nil
}

// checkCoverage verifies the cut chunks cover the source duration.
func (sp *Splitter) checkCoverage(total, covered time.Duration) error {
	diff := covered - total
	if diff < 0 {
		diff = -diff
	}
	if diff > HardCoverageTolerance {
		return fmt.Errorf("%w: covered %v of %v (diff %v)",
			ErrSplitCoverage, covered.Round(time.Millisecond), total.Round(time.Millisecond), diff)
	}
	if diff > SoftCoverageTolerance {
		sp.log.Warn().
			Dur("total", total).
			Dur("covered", covered).
			Dur("diff", diff).
			Msg("segment durations drift from source within tolerance")
	}
	return nil
}

// formatFFmpegTime formats a duration for FFmpeg -ss/-t arguments.
func formatFFmpegTime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := d.Seconds() - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}
