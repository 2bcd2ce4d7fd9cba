package ffmpeg

import "errors"

// ErrNotFound indicates the FFmpeg binary could not be located.
var ErrNotFound = errors.New("ffmpeg not found")

// ErrProbeNotFound indicates the ffprobe binary could not be located.
var ErrProbeNotFound = errors.New("ffprobe not found")
