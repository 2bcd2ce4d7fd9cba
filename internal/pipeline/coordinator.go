// Package pipeline coordinates one synthesis request end to end:
// probe, strategy selection, parallel render, recombination, caching.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Shubhankar1/VBVA/internal/cache"
	"github.com/Shubhankar1/VBVA/internal/media"
	"github.com/Shubhankar1/VBVA/internal/render"
	"github.com/Shubhankar1/VBVA/internal/segment"
)

// ConfigVersion participates in the request fingerprint; bump it when
// the splitting or render strategy changes so stale cached artifacts
// stop matching.
const ConfigVersion = "v1"

// Strategy names how a request was rendered.
type Strategy string

const (
	StrategySingle  Strategy = "single"
	StrategyChunked Strategy = "chunked"
)

// Request describes one synthesis job.
type Request struct {
	AudioPath string
	FaceAsset string
	Params    render.Params
}

// Stats reports how a request was processed.
type Stats struct {
	Strategy     Strategy
	Segments     int
	FallbackUsed bool
	CacheHit     bool
	Took         time.Duration
}

// Result is a completed synthesis.
type Result struct {
	OutputPath  string
	Fingerprint string
	Stats       Stats
}

// Collaborator ports. The concrete implementations live in their own
// packages; the coordinator only drives them.
type (
	splitter interface {
		Split(ctx context.Context, audioPath string) ([]segment.Segment, error)
	}
	dispatcher interface {
		RenderAll(ctx context.Context, segs []segment.Segment, faceAsset string, params render.Params) ([]render.Rendered, error)
	}
	combiner interface {
		Combine(ctx context.Context, segments []render.Rendered) (string, error)
	}
	fileStatter interface {
		Stat(name string) (os.FileInfo, error)
	}
)

type osFileStatter struct{}

func (osFileStatter) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

// Coordinator runs synthesis requests. Safe for concurrent use; all
// per-request state lives on the stack.
type Coordinator struct {
	prober     media.Prober
	splitter   splitter
	dispatcher dispatcher
	combiner   combiner
	store      cache.Store
	stat       fileStatter
	log        zerolog.Logger
	group      singleflight.Group
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithCache sets the artifact cache. Without one every request renders.
func WithCache(store cache.Store) CoordinatorOption {
	return func(c *Coordinator) { c.store = store }
}

// WithCoordinatorLogger sets the structured logger.
func WithCoordinatorLogger(log zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = log }
}

// WithCoordinatorFileStatter sets the file statter (for testing).
func WithCoordinatorFileStatter(s fileStatter) CoordinatorOption {
	return func(c *Coordinator) { c.stat = s }
}

// NewCoordinator wires the pipeline collaborators together.
func NewCoordinator(prober media.Prober, sp splitter, d dispatcher, cb combiner, opts ...CoordinatorOption) (*Coordinator, error) {
	if prober == nil || sp == nil || d == nil || cb == nil {
		return nil, fmt.Errorf("all pipeline collaborators are required")
	}

	c := &Coordinator{
		prober:     prober,
		splitter:   sp,
		dispatcher: d,
		combiner:   cb,
		stat:       osFileStatter{},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Synthesize runs one request to completion. Identical concurrent
// requests (same fingerprint) converge on a single live render; callers
// beyond the first share its result. A completed request is cached, so
// repeating it returns the stored artifact without rendering.
func (c *Coordinator) Synthesize(ctx context.Context, req Request) (Result, error) {
	fp, err := Fingerprint(req.AudioPath, req.FaceAsset, ConfigVersion)
	if err != nil {
		return Result{}, stageError(StageProbing, err)
	}

	if res, ok := c.cached(fp); ok {
		return res, nil
	}

	v, err, shared := c.group.Do(fp, func() (any, error) {
		// A request that queued behind the winner may find the result
		// already cached.
		if res, ok := c.cached(fp); ok {
			return res, nil
		}
		return c.run(ctx, req, fp)
	})
	if err != nil {
		return Result{}, err
	}

	res := v.(Result)
	if shared {
		c.log.Debug().Str("fingerprint", fp).Msg("request coalesced onto live render")
	}
	return res, nil
}

// cached looks up a finished artifact for the fingerprint.
func (c *Coordinator) cached(fp string) (Result, bool) {
	if c.store == nil {
		return Result{}, false
	}
	entry, ok := c.store.Get(fp)
	if !ok {
		return Result{}, false
	}
	c.log.Info().Str("fingerprint", fp).Str("artifact", entry.ArtifactPath).Msg("cache hit")
	return Result{
		OutputPath:  entry.ArtifactPath,
		Fingerprint: fp,
		Stats:       Stats{CacheHit: true},
	}, true
}

// run executes the full pipeline for one request.
func (c *Coordinator) run(ctx context.Context, req Request, fp string) (Result, error) {
	started := time.Now()

	total, err := c.prober.Probe(ctx, req.AudioPath)
	if err != nil {
		return Result{}, stageError(StageProbing, err)
	}

	stats := Stats{Strategy: StrategySingle, Segments: 1}

	segs, splitErr := c.splitter.Split(ctx, req.AudioPath)
	if splitErr != nil {
		c.log.Warn().Err(splitErr).Msg("split failed, falling back to single-shot")
		stats.FallbackUsed = true
	} else if len(segs) > 1 {
		stats.Strategy = StrategyChunked
		stats.Segments = len(segs)
	}

	var out string
	var runErr error
	if splitErr == nil {
		out, runErr = c.attempt(ctx, req, segs)
	}

	if splitErr != nil || runErr != nil {
		if ctx.Err() != nil {
			return Result{}, stageError(StageRendering, ctx.Err())
		}
		if stats.Strategy == StrategySingle && splitErr == nil {
			// Single-shot was the first strategy; there is nothing to
			// fall back to.
			return Result{}, c.aborted(runErr)
		}
		if runErr != nil {
			c.log.Warn().Err(runErr).Msg("chunked synthesis failed, falling back to single-shot")
			stats.FallbackUsed = true
		}

		single, err := c.wholeSegment(req.AudioPath, total)
		if err != nil {
			return Result{}, c.aborted(err)
		}
		out, runErr = c.attempt(ctx, req, []segment.Segment{single})
		if runErr != nil {
			return Result{}, c.aborted(runErr)
		}
		stats.Strategy = StrategySingle
		stats.Segments = 1
	}

	if c.store != nil {
		if err := c.store.Put(fp, out); err != nil {
			// The artifact is good; a cache write failure only costs a
			// future re-render.
			c.log.Warn().Err(err).Msg("cache write failed")
		}
	}

	stats.Took = time.Since(started)
	c.log.Info().
		Str("fingerprint", fp).
		Str("strategy", string(stats.Strategy)).
		Int("segments", stats.Segments).
		Bool("fallback", stats.FallbackUsed).
		Dur("took", stats.Took).
		Msg("synthesis complete")

	return Result{OutputPath: out, Fingerprint: fp, Stats: stats}, nil
}

// attempt renders the given segments and combines the results.
func (c *Coordinator) attempt(ctx context.Context, req Request, segs []segment.Segment) (string, error) {
	rendered, err := c.dispatcher.RenderAll(ctx, segs, req.FaceAsset, req.Params)
	if err != nil {
		return "", stageError(StageRendering, err)
	}
	out, err := c.combiner.Combine(ctx, rendered)
	if err != nil {
		return "", stageError(StageRecombining, err)
	}
	return out, nil
}

// wholeSegment builds a single segment spanning the entire source audio.
func (c *Coordinator) wholeSegment(audioPath string, total time.Duration) (segment.Segment, error) {
	info, err := c.stat.Stat(audioPath)
	if err != nil {
		return segment.Segment{}, fmt.Errorf("stat source: %w", err)
	}
	return segment.Segment{
		Path:  audioPath,
		Index: 0,
		Start: 0,
		End:   total,
		Size:  info.Size(),
	}, nil
}

// aborted wraps the terminal failure of a request once every strategy
// is exhausted.
func (c *Coordinator) aborted(err error) error {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return &PipelineError{
			Stage:        perr.Stage,
			SegmentIndex: perr.SegmentIndex,
			Err:          errors.Join(ErrAborted, perr.Err),
		}
	}
	return stageError(StageRendering, errors.Join(ErrAborted, err))
}
