package cli

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestProbeCmd(t *testing.T) {
	t.Parallel()

	path := testAudioFile(t, "speech.mp3")
	env := NewEnv(
		WithFFmpegResolver(fakeResolver{ffmpeg: "/usr/bin/ffmpeg", ffprobe: "/usr/bin/ffprobe"}),
		WithProberFactory(fakeProberFactory{duration: 83*time.Second + 500*time.Millisecond}),
	)

	out, err := executeCommand(t, ProbeCmd(env), path)
	if err != nil {
		t.Fatalf("execute error: %v", err)
	}
	if !strings.Contains(out, "1m23.5s") {
		t.Errorf("output = %q, want the duration", out)
	}
}

func TestProbeCmd_MissingFile(t *testing.T) {
	t.Parallel()

	env := NewEnv(
		WithFFmpegResolver(fakeResolver{ffmpeg: "/usr/bin/ffmpeg", ffprobe: "/usr/bin/ffprobe"}),
		WithProberFactory(fakeProberFactory{duration: time.Second}),
	)

	_, err := executeCommand(t, ProbeCmd(env), "/does/not/exist.mp3")
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("error = %v, want ErrFileNotFound", err)
	}
}

func TestProbeCmd_ResolverFailure(t *testing.T) {
	t.Parallel()

	path := testAudioFile(t, "speech.mp3")
	resolverErr := errors.New("ffmpeg not found")
	env := NewEnv(
		WithFFmpegResolver(fakeResolver{err: resolverErr}),
		WithProberFactory(fakeProberFactory{duration: time.Second}),
	)

	_, err := executeCommand(t, ProbeCmd(env), path)
	if !errors.Is(err, resolverErr) {
		t.Errorf("error = %v, want the resolver error", err)
	}
}
