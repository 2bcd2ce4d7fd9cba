// Package media measures durations of audio and video artifacts.
// Every strategy decision and every post-hoc validation in the pipeline
// goes through the same prober, so durations are always measured the
// same way.
package media

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Prober measures the exact duration of a media artifact.
// Probing is deterministic and side-effect-free.
type Prober interface {
	// Probe returns the artifact's duration with millisecond precision.
	// It fails with ErrProbe for unreadable, corrupt or empty files;
	// it never reports a default duration.
	Probe(ctx context.Context, path string) (time.Duration, error)
}

// Compile-time interface implementation check.
var _ Prober = (*FFProber)(nil)

// FFProber probes durations via ffprobe, falling back to parsing
// ffmpeg's stderr banner when ffprobe is unavailable.
type FFProber struct {
	ffmpegPath  string
	ffprobePath string // empty disables the ffprobe fast path

	cmd  commandRunner
	stat fileStatter
}

// FFProberOption configures an FFProber.
type FFProberOption func(*FFProber)

// WithFFprobePath sets the path to the ffprobe binary.
// Without it the prober parses ffmpeg output instead.
func WithFFprobePath(path string) FFProberOption {
	return func(p *FFProber) { p.ffprobePath = path }
}

// WithCommandRunner sets the command runner (for testing).
func WithCommandRunner(r commandRunner) FFProberOption {
	return func(p *FFProber) { p.cmd = r }
}

// WithFileStatter sets the file statter (for testing).
func WithFileStatter(s fileStatter) FFProberOption {
	return func(p *FFProber) { p.stat = s }
}

// NewFFProber creates an FFProber using the given ffmpeg binary.
func NewFFProber(ffmpegPath string, opts ...FFProberOption) (*FFProber, error) {
	if ffmpegPath == "" {
		return nil, fmt.Errorf("%w: ffmpegPath cannot be empty", ErrProbe)
	}

	p := &FFProber{
		ffmpegPath: ffmpegPath,
		cmd:        osCommandRunner{},
		stat:       osFileStatter{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Probe returns the duration of the media file at path.
func (p *FFProber) Probe(ctx context.Context, path string) (time.Duration, error) {
	info, err := p.stat.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot read %s: %v", ErrProbe, path, err)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%w: %s is empty", ErrProbe, path)
	}

	if p.ffprobePath != "" {
		if d, err := p.probeWithFFprobe(ctx, path); err == nil {
			return d, nil
		}
		// ffprobe failures fall through to the ffmpeg banner parse;
		// files ffprobe rejects are sometimes still readable by ffmpeg.
	}

	return p.probeWithFFmpeg(ctx, path)
}

// probeWithFFprobe reads the container duration directly.
func (p *FFProber) probeWithFFprobe(ctx context.Context, path string) (time.Duration, error) {
	args := []string{
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	}
	out, err := p.cmd.CombinedOutput(ctx, p.ffprobePath, args)
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe: %v", ErrProbe, err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot parse ffprobe output %q", ErrProbe, strings.TrimSpace(string(out)))
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("%w: non-positive duration %.3fs for %s", ErrProbe, seconds, path)
	}

	return time.Duration(seconds * float64(time.Second)).Round(time.Millisecond), nil
}

// probeWithFFmpeg extracts duration from the ffmpeg stderr banner.
// The -i flag with a null output makes ffmpeg print file info including
// "Duration: HH:MM:SS.cc"; ffmpeg returns non-zero even when it reads
// the file successfully, so the output is parsed regardless.
func (p *FFProber) probeWithFFmpeg(ctx context.Context, path string) (time.Duration, error) {
	args := []string{
		"-i", path,
		"-f", "null", "-",
	}
	out, err := p.cmd.CombinedOutput(ctx, p.ffmpegPath, args)
	if err != nil && len(out) == 0 {
		return 0, fmt.Errorf("%w: ffmpeg: %v", ErrProbe, err)
	}

	return parseDurationFromFFmpegOutput(string(out))
}

// parseDurationFromFFmpegOutput extracts duration from FFmpeg stderr.
// Looks for: "Duration: HH:MM:SS.cc" or "time=HH:MM:SS.cc"
func parseDurationFromFFmpegOutput(output string) (time.Duration, error) {
	// Pattern: Duration: 00:05:23.45
	durationRe := regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	if matches := durationRe.FindStringSubmatch(output); matches != nil {
		return checkedDuration(parseTimeComponents(matches[1], matches[2], matches[3], matches[4]))
	}

	// Fallback pattern: time=00:05:23.45 (from progress output)
	timeRe := regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)
	// Find all matches and use the last one (final time).
	allMatches := timeRe.FindAllStringSubmatch(output, -1)
	if len(allMatches) > 0 {
		matches := allMatches[len(allMatches)-1]
		return checkedDuration(parseTimeComponents(matches[1], matches[2], matches[3], matches[4]))
	}

	return 0, fmt.Errorf("%w: could not parse duration from ffmpeg output", ErrProbe)
}

// checkedDuration rejects a parsed zero: a readable file always carries
// some duration, so zero means the banner lied or was truncated.
func checkedDuration(d time.Duration, err error) (time.Duration, error) {
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: parsed a zero duration", ErrProbe)
	}
	return d, nil
}

// parseTimeComponents converts HH:MM:SS.cc strings to Duration.
func parseTimeComponents(hours, minutes, seconds, fraction string) (time.Duration, error) {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)
	// The fractional part may be 1-3+ digits; normalize to milliseconds.
	frac, _ := strconv.Atoi(fraction)
	ms := frac
	switch len(fraction) {
	case 1:
		ms = frac * 100
	case 2:
		ms = frac * 10
	case 3:
		// Already milliseconds.
	default:
		// More precision than we need, truncate.
		for len(fraction) > 3 {
			ms /= 10
			fraction = fraction[:len(fraction)-1]
		}
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}
