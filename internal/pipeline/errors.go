package pipeline

import (
	"errors"
	"fmt"
)

// Stage identifies where in the pipeline a request failed.
type Stage string

const (
	StageProbing     Stage = "probing"
	StageSplitting   Stage = "splitting"
	StageRendering   Stage = "rendering"
	StageRecombining Stage = "recombining"
	StageCaching     Stage = "caching"
)

// ErrAborted indicates a request failed with no strategy left to try.
var ErrAborted = errors.New("synthesis aborted")

// PipelineError reports a failed synthesis request with the stage it
// failed in. SegmentIndex is -1 when the failure is not tied to a
// specific segment.
type PipelineError struct {
	Stage        Stage
	SegmentIndex int
	Err          error
}

func (e *PipelineError) Error() string {
	if e.SegmentIndex >= 0 {
		return fmt.Sprintf("pipeline %s: segment %d: %v", e.Stage, e.SegmentIndex, e.Err)
	}
	return fmt.Sprintf("pipeline %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// stageError wraps err into a PipelineError not tied to a segment.
func stageError(stage Stage, err error) *PipelineError {
	return &PipelineError{Stage: stage, SegmentIndex: -1, Err: err}
}
