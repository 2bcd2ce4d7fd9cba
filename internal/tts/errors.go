package tts

import "errors"

// ErrSynthesis indicates text-to-speech synthesis failed after retries.
var ErrSynthesis = errors.New("speech synthesis failed")
