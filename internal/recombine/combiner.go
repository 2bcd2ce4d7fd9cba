// Package recombine joins rendered video segments into one continuous
// output file.
package recombine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Shubhankar1/VBVA/internal/media"
	"github.com/Shubhankar1/VBVA/internal/render"
)

// Duration tolerances for the combined output versus the sum of its
// input segments.
const (
	// HardDriftTolerance fails the combine.
	HardDriftTolerance = 100 * time.Millisecond

	// SoftDriftTolerance logs a warning.
	SoftDriftTolerance = 10 * time.Millisecond

	// outputSampleRate is the audio sample rate of the combined file.
	// Matching the segment sample rate keeps audio timestamps monotonic
	// across the joins.
	outputSampleRate = 24000
)

// Combiner joins an ordered set of rendered segments into a single
// video file.
type Combiner struct {
	ffmpegPath string
	prober     media.Prober
	outputDir  string
	log        zerolog.Logger

	cmd     commandRunner
	tempDir tempDirCreator
	files   fileWriter
	remover fileRemover
	renamer fileRenamer
	now     func() time.Time
}

// CombinerOption configures a Combiner.
type CombinerOption func(*Combiner)

// WithOutputDir sets the directory the combined file is written to.
func WithOutputDir(dir string) CombinerOption {
	return func(c *Combiner) {
		if dir != "" {
			c.outputDir = dir
		}
	}
}

// WithCombinerLogger sets the structured logger.
func WithCombinerLogger(log zerolog.Logger) CombinerOption {
	return func(c *Combiner) { c.log = log }
}

// WithCombinerCommandRunner sets the command runner (for testing).
func WithCombinerCommandRunner(r commandRunner) CombinerOption {
	return func(c *Combiner) { c.cmd = r }
}

// WithCombinerTempDir sets the temp directory creator (for testing).
func WithCombinerTempDir(t tempDirCreator) CombinerOption {
	return func(c *Combiner) { c.tempDir = t }
}

// WithCombinerFileWriter sets the file writer (for testing).
func WithCombinerFileWriter(w fileWriter) CombinerOption {
	return func(c *Combiner) { c.files = w }
}

// WithCombinerFileRemover sets the file remover (for testing).
func WithCombinerFileRemover(r fileRemover) CombinerOption {
	return func(c *Combiner) { c.remover = r }
}

// WithCombinerFileRenamer sets the file renamer (for testing).
func WithCombinerFileRenamer(r fileRenamer) CombinerOption {
	return func(c *Combiner) { c.renamer = r }
}

// WithCombinerClock sets the clock (for testing).
func WithCombinerClock(now func() time.Time) CombinerOption {
	return func(c *Combiner) { c.now = now }
}

// NewCombiner creates a Combiner writing into outputDir.
func NewCombiner(ffmpegPath, outputDir string, prober media.Prober, opts ...CombinerOption) (*Combiner, error) {
	if ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpegPath cannot be empty")
	}
	if outputDir == "" {
		return nil, fmt.Errorf("outputDir cannot be empty")
	}
	if prober == nil {
		return nil, fmt.Errorf("prober cannot be nil")
	}

	c := &Combiner{
		ffmpegPath: ffmpegPath,
		prober:     prober,
		outputDir:  outputDir,
		log:        zerolog.Nop(),
		cmd:        osCommandRunner{},
		tempDir:    osTempDirCreator{},
		files:      osFileWriter{},
		remover:    osFileRemover{},
		renamer:    osFileRenamer{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Combine joins the rendered segments, in index order, into one output
// file. The segment set must be contiguous and duplicate-free; a
// missing or repeated index aborts rather than producing a video with
// silently reordered or dropped content.
//
// Metadata normalization runs even for a single segment, so single-shot
// and chunked requests produce outputs with identical container
// characteristics.
func (c *Combiner) Combine(ctx context.Context, segments []render.Rendered) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: no segments to combine", ErrSequenceIntegrity)
	}

	ordered, expected, err := orderSegments(segments)
	if err != nil {
		return "", err
	}

	var joined, workDir string
	if len(ordered) == 1 {
		joined = ordered[0].Path
	} else {
		joined, workDir, err = c.join(ctx, ordered)
		if err != nil {
			return "", err
		}
	}

	final, err := c.normalizeMetadata(ctx, joined)
	if err != nil {
		if workDir != "" {
			_ = c.remover.RemoveAll(workDir)
		}
		return "", err
	}

	// The joined intermediate lives in a temp work dir. When
	// normalization kept the un-normalized join, move it into the output
	// dir so it outlives cleanup; either way the work dir goes.
	if workDir != "" {
		if final == joined {
			kept := filepath.Join(c.outputDir, fmt.Sprintf("output_%s.mp4", uuid.NewString()))
			if err := c.renamer.Rename(joined, kept); err != nil {
				_ = c.remover.RemoveAll(workDir)
				return "", fmt.Errorf("%w: keep un-normalized output: %v", ErrRecombine, err)
			}
			final = kept
		}
		_ = c.remover.RemoveAll(workDir)
	}

	if err := c.verifyDuration(ctx, final, expected); err != nil {
		return "", err
	}
	return final, nil
}

// orderSegments verifies the segments form the exact index set 0..n-1
// and returns them sorted by index along with their total duration.
func orderSegments(segments []render.Rendered) ([]render.Rendered, time.Duration, error) {
	n := len(segments)
	ordered := make([]render.Rendered, n)
	seen := make([]bool, n)
	var total time.Duration

	for _, seg := range segments {
		if seg.Index < 0 || seg.Index >= n {
			return nil, 0, fmt.Errorf("%w: index %d outside 0..%d", ErrSequenceIntegrity, seg.Index, n-1)
		}
		if seen[seg.Index] {
			return nil, 0, fmt.Errorf("%w: duplicate index %d", ErrSequenceIntegrity, seg.Index)
		}
		seen[seg.Index] = true
		ordered[seg.Index] = seg
		total += seg.Duration
	}
	// seen is fully marked here: n segments, n distinct in-range indices.
	return ordered, total, nil
}

// join concatenates the ordered segments with the concat demuxer,
// falling back once to a full re-encode when the stream-copy join
// fails. The caller owns cleanup of the returned work dir.
func (c *Combiner) join(ctx context.Context, ordered []render.Rendered) (string, string, error) {
	workDir, err := c.tempDir.MkdirTemp("", "vbva-combine-*")
	if err != nil {
		return "", "", fmt.Errorf("create combine directory: %w", err)
	}

	listPath := filepath.Join(workDir, "segments.txt")
	var list strings.Builder
	for _, seg := range ordered {
		fmt.Fprintf(&list, "file '%s'\n", seg.Path)
	}
	if err := c.files.WriteFile(listPath, []byte(list.String()), 0o600); err != nil {
		_ = c.remover.RemoveAll(workDir)
		return "", "", fmt.Errorf("write concat list: %w", err)
	}

	joined := filepath.Join(workDir, fmt.Sprintf("joined_%s.mp4", uuid.NewString()))

	// Stream-copy video, re-encode audio. Copying audio keeps each
	// segment's own timestamps, which jump at the joins.
	fastArgs := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-ar", fmt.Sprintf("%d", outputSampleRate),
		joined,
	}
	output, err := c.cmd.CombinedOutput(ctx, c.ffmpegPath, fastArgs)
	if err == nil {
		return joined, workDir, nil
	}

	c.log.Warn().
		Err(err).
		Str("output", tail(string(output), 300)).
		Msg("stream-copy join failed, retrying with full re-encode")

	slowArgs := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-ar", fmt.Sprintf("%d", outputSampleRate),
		joined,
	}
	output, err = c.cmd.CombinedOutput(ctx, c.ffmpegPath, slowArgs)
	if err != nil {
		_ = c.remover.RemoveAll(workDir)
		return "", "", fmt.Errorf("%w: re-encode join: %v\nOutput: %s",
			ErrRecombine, err, tail(string(output), 500))
	}
	return joined, workDir, nil
}

// normalizeMetadata rewrites the container so every output, single-shot
// or chunked, carries clean timestamps and a fresh creation marker.
// Some players use stale metadata to resume mid-file, which looks like
// the video starting from its middle. If normalization distorts the
// duration, the un-normalized file is kept.
func (c *Combiner) normalizeMetadata(ctx context.Context, inPath string) (string, error) {
	before, err := c.prober.Probe(ctx, inPath)
	if err != nil {
		return "", fmt.Errorf("probe before normalization: %w", err)
	}

	outPath := filepath.Join(c.outputDir, fmt.Sprintf("output_%s.mp4", uuid.NewString()))
	args := []string{
		"-y",
		"-i", inPath,
		"-c", "copy",
		"-movflags", "+faststart",
		"-avoid_negative_ts", "make_zero",
		"-fflags", "+genpts",
		"-metadata", fmt.Sprintf("creation_time=%s", c.now().UTC().Format(time.RFC3339)),
		outPath,
	}
	output, err := c.cmd.CombinedOutput(ctx, c.ffmpegPath, args)
	if err != nil {
		c.log.Warn().
			Err(err).
			Str("output", tail(string(output), 300)).
			Msg("metadata normalization failed, keeping un-normalized output")
		return inPath, nil
	}

	after, err := c.prober.Probe(ctx, outPath)
	if err != nil {
		return inPath, nil
	}
	if drift := absDiff(before, after); drift > HardDriftTolerance {
		c.log.Warn().
			Dur("before", before).
			Dur("after", after).
			Msg("normalization distorted duration, keeping un-normalized output")
		_ = c.remover.RemoveAll(outPath)
		return inPath, nil
	}
	return outPath, nil
}

// verifyDuration re-probes the final file against the sum of the input
// segment durations.
func (c *Combiner) verifyDuration(ctx context.Context, path string, expected time.Duration) error {
	actual, err := c.prober.Probe(ctx, path)
	if err != nil {
		return fmt.Errorf("probe combined output: %w", err)
	}

	drift := absDiff(actual, expected)
	if drift > HardDriftTolerance {
		return fmt.Errorf("%w: combined duration %v drifts %v from expected %v",
			ErrRecombine, actual.Round(time.Millisecond), drift.Round(time.Millisecond), expected.Round(time.Millisecond))
	}
	if drift > SoftDriftTolerance {
		c.log.Warn().
			Dur("expected", expected).
			Dur("actual", actual).
			Msg("combined duration drifts from segment total within tolerance")
	}
	return nil
}

func absDiff(a, b time.Duration) time.Duration {
	if a > b {
		return a - b
	}
	return b - a
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
