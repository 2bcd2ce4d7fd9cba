package render

import "errors"

var (
	// ErrRender indicates a segment failed to render after exhausting
	// its retry budget.
	ErrRender = errors.New("segment render failed")

	// ErrRenderTimeout indicates a single render call exceeded its
	// wall-clock budget.
	ErrRenderTimeout = errors.New("segment render timed out")
)
