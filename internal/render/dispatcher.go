package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Shubhankar1/VBVA/internal/apierr"
	"github.com/Shubhankar1/VBVA/internal/media"
	"github.com/Shubhankar1/VBVA/internal/segment"
)

// Dispatcher scheduling defaults.
const (
	// DefaultWorkers is the render pool size. Rendering is GPU or CPU
	// bound in the inference process, so a small fixed pool; unbounded
	// concurrency just thrashes the engine.
	DefaultWorkers = 6

	// DefaultRenderTimeout bounds one segment render including retries'
	// individual attempts.
	DefaultRenderTimeout = 5 * time.Minute

	// DefaultDurationTolerance is how far a rendered segment's duration
	// may drift from its source audio before it is rejected.
	DefaultDurationTolerance = 500 * time.Millisecond
)

// Dispatcher renders a set of segments in parallel over a fixed-size
// worker pool and returns the results ordered by segment index.
type Dispatcher struct {
	renderer  Renderer
	prober    media.Prober
	pool      *ants.Pool
	poolSize  int
	limits    segment.Limits
	timeout   time.Duration
	tolerance time.Duration
	retry     apierr.RetryConfig
	log       zerolog.Logger
	stat      fileStatter
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.poolSize = n
		}
	}
}

// WithRenderTimeout sets the per-segment wall-clock budget.
func WithRenderTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithDurationTolerance sets the allowed rendered-vs-source duration drift.
func WithDurationTolerance(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.tolerance = t
		}
	}
}

// WithRetryConfig sets the per-segment retry budget.
func WithRetryConfig(cfg apierr.RetryConfig) DispatcherOption {
	return func(d *Dispatcher) { d.retry = cfg }
}

// WithDispatcherLimits sets the rendered-segment validation thresholds.
func WithDispatcherLimits(l segment.Limits) DispatcherOption {
	return func(d *Dispatcher) { d.limits = l }
}

// WithDispatcherLogger sets the structured logger.
func WithDispatcherLogger(log zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = log }
}

// WithDispatcherFileStatter sets the file statter (for testing).
func WithDispatcherFileStatter(s fileStatter) DispatcherOption {
	return func(d *Dispatcher) { d.stat = s }
}

// NewDispatcher creates a Dispatcher with its own worker pool. The
// caller must Close it to release the pool.
func NewDispatcher(renderer Renderer, prober media.Prober, opts ...DispatcherOption) (*Dispatcher, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer cannot be nil")
	}
	if prober == nil {
		return nil, fmt.Errorf("prober cannot be nil")
	}

	d := &Dispatcher{
		renderer:  renderer,
		prober:    prober,
		poolSize:  DefaultWorkers,
		limits:    segment.DefaultLimits(),
		timeout:   DefaultRenderTimeout,
		tolerance: DefaultDurationTolerance,
		retry:     apierr.RetryConfig{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
		log:       zerolog.Nop(),
		stat:      osFileStatter{},
	}
	for _, opt := range opts {
		opt(d)
	}

	pool, err := ants.NewPool(d.poolSize)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	d.pool = pool
	return d, nil
}

// Close releases the worker pool.
func (d *Dispatcher) Close() {
	if d.pool != nil {
		d.pool.Release()
	}
}

// renderOutcome carries one segment's result out of the pool.
type renderOutcome struct {
	rendered Rendered
	err      error
}

// RenderAll renders every segment concurrently and returns results
// ordered by segment index, regardless of completion order. The first
// segment to exhaust its retry budget cancels the remaining work.
func (d *Dispatcher) RenderAll(ctx context.Context, segs []segment.Segment, faceAsset string, params Params) ([]Rendered, error) {
	if len(segs) == 0 {
		return nil, fmt.Errorf("no segments to render")
	}
	params.normalize()

	d.log.Info().
		Int("segments", len(segs)).
		Int("workers", d.poolSize).
		Msg("dispatching render")

	g, ctx := errgroup.WithContext(ctx)
	results := make([]Rendered, len(segs))

	for _, seg := range segs {
		seg := seg
		g.Go(func() error {
			out := make(chan renderOutcome, 1)
			if err := d.pool.Submit(func() {
				out <- d.renderOne(ctx, seg, faceAsset, params)
			}); err != nil {
				return fmt.Errorf("submit segment %d: %w", seg.Index, err)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case oc := <-out:
				if oc.err != nil {
					return oc.err
				}
				results[seg.Index] = oc.rendered
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// renderOne renders a single segment with retries. Validation runs
// inside the retry loop: inference output is not deterministic, so a
// drifting or undersized artifact gets re-rendered rather than failing
// the whole dispatch on the first bad attempt.
func (d *Dispatcher) renderOne(ctx context.Context, seg segment.Segment, faceAsset string, params Params) renderOutcome {
	start := time.Now()

	rendered, err := apierr.RetryWithBackoff(ctx, d.retry, func() (Rendered, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		path, err := d.renderer.Render(attemptCtx, faceAsset, seg.Path, params)
		if err != nil {
			return Rendered{}, err
		}
		return d.validate(ctx, seg, path)
	}, d.shouldRetry)
	if err != nil {
		// Keep the attempt's own sentinel in the chain alongside
		// ErrRender so callers can map the failure.
		return renderOutcome{err: fmt.Errorf("%w: segment %d: %w", ErrRender, seg.Index, err)}
	}

	d.log.Debug().
		Int("index", seg.Index).
		Dur("took", time.Since(start)).
		Dur("duration", rendered.Duration).
		Msg("segment rendered")
	return renderOutcome{rendered: rendered}
}

// shouldRetry reports whether a render attempt is worth repeating.
// Cancellation of the whole dispatch is terminal; an individual attempt
// timing out is not.
func (d *Dispatcher) shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// validate re-probes a rendered segment and checks it against the
// source audio segment.
func (d *Dispatcher) validate(ctx context.Context, seg segment.Segment, path string) (Rendered, error) {
	dur, err := d.prober.Probe(ctx, path)
	if err != nil {
		return Rendered{}, fmt.Errorf("%w: segment %d: probe rendered output: %v", ErrRender, seg.Index, err)
	}
	info, err := d.stat.Stat(path)
	if err != nil {
		return Rendered{}, fmt.Errorf("%w: segment %d: stat rendered output: %v", ErrRender, seg.Index, err)
	}
	if err := d.limits.ValidateVideo(dur, info.Size()); err != nil {
		return Rendered{}, fmt.Errorf("segment %d: %w", seg.Index, err)
	}

	drift := dur - seg.Duration()
	if drift < 0 {
		drift = -drift
	}
	if drift > d.tolerance {
		return Rendered{}, fmt.Errorf("%w: segment %d: rendered duration %v drifts %v from source %v",
			ErrRender, seg.Index, dur.Round(time.Millisecond), drift.Round(time.Millisecond), seg.Duration().Round(time.Millisecond))
	}

	return Rendered{
		Index:    seg.Index,
		Path:     path,
		Duration: dur,
		Size:     info.Size(),
	}, nil
}
