package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shubhankar1/VBVA/internal/apierr"
	"github.com/Shubhankar1/VBVA/internal/segment"
)

// --- Test fakes ---

type fakeRenderer struct {
	fn func(ctx context.Context, faceAsset, audioPath string, params Params) (string, error)
}

func (f *fakeRenderer) Render(ctx context.Context, faceAsset, audioPath string, params Params) (string, error) {
	return f.fn(ctx, faceAsset, audioPath, params)
}

type fakeProber struct {
	durations map[string]time.Duration
}

func (f *fakeProber) Probe(_ context.Context, path string) (time.Duration, error) {
	d, ok := f.durations[path]
	if !ok {
		return 0, errors.New("probe: unknown path " + path)
	}
	return d, nil
}

type fakeStatter struct {
	sizes map[string]int64
}

func (f fakeStatter) Stat(name string) (fs.FileInfo, error) {
	size, ok := f.sizes[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return statInfo{size: size}, nil
}

type statInfo struct{ size int64 }

func (s statInfo) Name() string       { return "rendered.mp4" }
func (s statInfo) Size() int64        { return s.size }
func (s statInfo) Mode() fs.FileMode  { return 0o644 }
func (s statInfo) ModTime() time.Time { return time.Time{} }
func (s statInfo) IsDir() bool        { return false }
func (s statInfo) Sys() any           { return nil }

func testSegments(n int) []segment.Segment {
	segs := make([]segment.Segment, n)
	for i := 0; i < n; i++ {
		segs[i] = segment.Segment{
			Path:  fmt.Sprintf("/in/segment_%03d.mp3", i),
			Index: i,
			Start: time.Duration(i) * 10 * time.Second,
			End:   time.Duration(i+1) * 10 * time.Second,
			Size:  160_000,
		}
	}
	return segs
}

// outputsFor maps each segment's rendered path to matching probe and
// stat results.
func outputsFor(n int) (map[string]time.Duration, map[string]int64) {
	durations := map[string]time.Duration{}
	sizes := map[string]int64{}
	for i := 0; i < n; i++ {
		p := fmt.Sprintf("/out/rendered_%03d.mp4", i)
		durations[p] = 10 * time.Second
		sizes[p] = 500_000
	}
	return durations, sizes
}

func quickRetry() apierr.RetryConfig {
	return apierr.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

// --- Tests ---

func TestDispatcher_RenderAll_OrdersByIndex(t *testing.T) {
	t.Parallel()

	segs := testSegments(4)
	durations, sizes := outputsFor(4)

	// Earlier segments finish later, exercising out-of-order completion.
	renderer := &fakeRenderer{fn: func(_ context.Context, _, audioPath string, _ Params) (string, error) {
		var idx int
		fmt.Sscanf(audioPath, "/in/segment_%03d.mp3", &idx)
		time.Sleep(time.Duration(4-idx) * 10 * time.Millisecond)
		return fmt.Sprintf("/out/rendered_%03d.mp4", idx), nil
	}}

	d, err := NewDispatcher(renderer, &fakeProber{durations: durations},
		WithWorkers(4),
		WithRetryConfig(quickRetry()),
		WithDispatcherFileStatter(fakeStatter{sizes: sizes}),
	)
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}
	defer d.Close()

	results, err := d.RenderAll(context.Background(), segs, "/assets/face.png", DefaultParams())
	if err != nil {
		t.Fatalf("RenderAll() error: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("RenderAll() returned %d results, want 4", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d has index %d", i, r.Index)
		}
		want := fmt.Sprintf("/out/rendered_%03d.mp4", i)
		if r.Path != want {
			t.Errorf("result %d path = %q, want %q", i, r.Path, want)
		}
	}
}

func TestDispatcher_RenderAll_RetriesTransientFailure(t *testing.T) {
	t.Parallel()

	segs := testSegments(1)
	durations, sizes := outputsFor(1)

	var calls atomic.Int32
	renderer := &fakeRenderer{fn: func(_ context.Context, _, _ string, _ Params) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("engine hiccup")
		}
		return "/out/rendered_000.mp4", nil
	}}

	d, err := NewDispatcher(renderer, &fakeProber{durations: durations},
		WithRetryConfig(quickRetry()),
		WithDispatcherFileStatter(fakeStatter{sizes: sizes}),
	)
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}
	defer d.Close()

	results, err := d.RenderAll(context.Background(), segs, "/assets/face.png", DefaultParams())
	if err != nil {
		t.Fatalf("RenderAll() error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("renderer called %d times, want 2", got)
	}
	if results[0].Duration != 10*time.Second {
		t.Errorf("result duration = %v, want 10s", results[0].Duration)
	}
}

func TestDispatcher_RenderAll_ExhaustedRetriesFailsAll(t *testing.T) {
	t.Parallel()

	segs := testSegments(3)
	durations, sizes := outputsFor(3)

	renderer := &fakeRenderer{fn: func(ctx context.Context, _, audioPath string, _ Params) (string, error) {
		var idx int
		fmt.Sscanf(audioPath, "/in/segment_%03d.mp3", &idx)
		if idx == 1 {
			return "", errors.New("engine crash")
		}
		return fmt.Sprintf("/out/rendered_%03d.mp4", idx), nil
	}}

	d, err := NewDispatcher(renderer, &fakeProber{durations: durations},
		WithRetryConfig(quickRetry()),
		WithDispatcherFileStatter(fakeStatter{sizes: sizes}),
	)
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}
	defer d.Close()

	_, err = d.RenderAll(context.Background(), segs, "/assets/face.png", DefaultParams())
	if !errors.Is(err, ErrRender) {
		t.Fatalf("RenderAll() error = %v, want ErrRender", err)
	}
}

func TestDispatcher_RenderAll_RejectsDriftedDuration(t *testing.T) {
	t.Parallel()

	segs := testSegments(1)
	// Rendered output is 2s longer than the 10s source segment.
	durations := map[string]time.Duration{"/out/rendered_000.mp4": 12 * time.Second}
	sizes := map[string]int64{"/out/rendered_000.mp4": 500_000}

	renderer := &fakeRenderer{fn: func(_ context.Context, _, _ string, _ Params) (string, error) {
		return "/out/rendered_000.mp4", nil
	}}

	d, err := NewDispatcher(renderer, &fakeProber{durations: durations},
		WithRetryConfig(quickRetry()),
		WithDispatcherFileStatter(fakeStatter{sizes: sizes}),
	)
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}
	defer d.Close()

	_, err = d.RenderAll(context.Background(), segs, "/assets/face.png", DefaultParams())
	if !errors.Is(err, ErrRender) {
		t.Fatalf("RenderAll() error = %v, want ErrRender", err)
	}
}

func TestDispatcher_RenderAll_RetriesAfterDriftedAttempt(t *testing.T) {
	t.Parallel()

	segs := testSegments(1)
	// First attempt drifts 2s past the source, second lands on it.
	durations := map[string]time.Duration{
		"/out/drifted.mp4": 12 * time.Second,
		"/out/good.mp4":    10 * time.Second,
	}
	sizes := map[string]int64{
		"/out/drifted.mp4": 500_000,
		"/out/good.mp4":    500_000,
	}

	var calls atomic.Int32
	renderer := &fakeRenderer{fn: func(_ context.Context, _, _ string, _ Params) (string, error) {
		if calls.Add(1) == 1 {
			return "/out/drifted.mp4", nil
		}
		return "/out/good.mp4", nil
	}}

	d, err := NewDispatcher(renderer, &fakeProber{durations: durations},
		WithRetryConfig(quickRetry()),
		WithDispatcherFileStatter(fakeStatter{sizes: sizes}),
	)
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}
	defer d.Close()

	results, err := d.RenderAll(context.Background(), segs, "/assets/face.png", DefaultParams())
	if err != nil {
		t.Fatalf("RenderAll() error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("renderer called %d times, want a re-render after the bad attempt", got)
	}
	if results[0].Path != "/out/good.mp4" {
		t.Errorf("result path = %q, want the re-rendered output", results[0].Path)
	}
}

func TestDispatcher_RenderAll_RejectsUndersizedOutput(t *testing.T) {
	t.Parallel()

	segs := testSegments(1)
	durations := map[string]time.Duration{"/out/rendered_000.mp4": 10 * time.Second}
	sizes := map[string]int64{"/out/rendered_000.mp4": 1_000}

	renderer := &fakeRenderer{fn: func(_ context.Context, _, _ string, _ Params) (string, error) {
		return "/out/rendered_000.mp4", nil
	}}

	d, err := NewDispatcher(renderer, &fakeProber{durations: durations},
		WithRetryConfig(quickRetry()),
		WithDispatcherFileStatter(fakeStatter{sizes: sizes}),
	)
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}
	defer d.Close()

	_, err = d.RenderAll(context.Background(), segs, "/assets/face.png", DefaultParams())
	if !errors.Is(err, segment.ErrValidation) {
		t.Fatalf("RenderAll() error = %v, want ErrValidation", err)
	}
}

func TestDispatcher_RenderAll_EmptyInput(t *testing.T) {
	t.Parallel()

	d, err := NewDispatcher(
		&fakeRenderer{fn: func(_ context.Context, _, _ string, _ Params) (string, error) { return "", nil }},
		&fakeProber{},
	)
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}
	defer d.Close()

	if _, err := d.RenderAll(context.Background(), nil, "/assets/face.png", DefaultParams()); err == nil {
		t.Error("RenderAll() accepted an empty segment list")
	}
}

func TestDispatcher_RenderAll_ContextCancelStopsRetries(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	segs := testSegments(1)

	var calls atomic.Int32
	renderer := &fakeRenderer{fn: func(_ context.Context, _, _ string, _ Params) (string, error) {
		calls.Add(1)
		cancel()
		return "", context.Canceled
	}}

	d, err := NewDispatcher(renderer, &fakeProber{},
		WithRetryConfig(apierr.RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}),
	)
	if err != nil {
		t.Fatalf("NewDispatcher() error: %v", err)
	}
	defer d.Close()

	_, err = d.RenderAll(ctx, segs, "/assets/face.png", DefaultParams())
	if err == nil {
		t.Fatal("RenderAll() succeeded after cancellation")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("renderer called %d times after cancellation, want 1", got)
	}
}
