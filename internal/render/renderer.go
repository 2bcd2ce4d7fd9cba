// Package render produces lip-synced video segments from audio segments
// and schedules their parallel execution.
package render

import (
	"context"
	"time"
)

// Render parameter defaults. Low frame rate and aggressive downscaling
// trade visual fidelity for render speed.
const (
	DefaultFPS          = 10
	DefaultResizeFactor = 6
	DefaultBatchSize    = 64
)

// Params controls the render engine invocation. Every segment of one
// request renders with identical Params; mixing parameters across
// segments produces visible seams at the joins.
type Params struct {
	FPS          int
	ResizeFactor int
	BatchSize    int
}

// DefaultParams returns the standard render parameters.
func DefaultParams() Params {
	return Params{
		FPS:          DefaultFPS,
		ResizeFactor: DefaultResizeFactor,
		BatchSize:    DefaultBatchSize,
	}
}

// normalize ensures all Params fields have valid values.
func (p *Params) normalize() {
	if p.FPS <= 0 {
		p.FPS = DefaultFPS
	}
	if p.ResizeFactor <= 0 {
		p.ResizeFactor = DefaultResizeFactor
	}
	if p.BatchSize <= 0 {
		p.BatchSize = DefaultBatchSize
	}
}

// Renderer produces one lip-synced video segment from a face asset and
// an audio segment.
type Renderer interface {
	// Render returns the path of the rendered video file. The face
	// asset may be a still image or a video; implementations handle
	// both.
	Render(ctx context.Context, faceAsset, audioPath string, params Params) (string, error)
}

// Rendered describes one successfully rendered video segment.
type Rendered struct {
	Index    int
	Path     string
	Duration time.Duration
	Size     int64
}
