// Package tts turns text into speech audio for the synthesis pipeline.
package tts

import (
	"context"
	"strings"
	"time"
)

// wordsPerMinute is the assumed speaking rate for the nominal duration
// estimate.
const wordsPerMinute = 150

// Audio is a synthesized speech file. NominalDuration is an estimate
// from the input text length; callers needing the real duration must
// probe the file.
type Audio struct {
	Path            string
	NominalDuration time.Duration
}

// Synthesizer turns text into a speech audio file.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (Audio, error)
}

// estimateSpokenDuration guesses how long the text takes to speak.
func estimateSpokenDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return time.Duration(float64(words) / wordsPerMinute * float64(time.Minute))
}
