package media

// Notes:
// - Command execution is faked via the commandRunner interface; no real
//   ffmpeg/ffprobe is invoked.
// - File existence/size checks are faked via fileStatter.

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"
)

// fakeRunner returns canned output per binary name.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) CombinedOutput(_ context.Context, name string, _ []string) ([]byte, error) {
	f.calls = append(f.calls, name)
	return []byte(f.outputs[name]), f.errs[name]
}

type fakeStatter struct {
	size int64
	err  error
}

type statInfo struct{ size int64 }

func (s statInfo) Name() string       { return "probe" }
func (s statInfo) Size() int64        { return s.size }
func (s statInfo) Mode() fs.FileMode  { return 0644 }
func (s statInfo) ModTime() time.Time { return time.Time{} }
func (s statInfo) IsDir() bool        { return false }
func (s statInfo) Sys() any           { return nil }

func (f fakeStatter) Stat(string) (fs.FileInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return statInfo{size: f.size}, nil
}

func TestFFProber_Probe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		ffprobePath string
		runner      *fakeRunner
		statter     fakeStatter
		want        time.Duration
		wantErr     bool
	}{
		{
			name:        "ffprobe csv output",
			ffprobePath: "ffprobe",
			runner: &fakeRunner{
				outputs: map[string]string{"ffprobe": "20.450000\n"},
			},
			statter: fakeStatter{size: 320000},
			want:    20450 * time.Millisecond,
		},
		{
			name:        "ffprobe failure falls back to ffmpeg banner",
			ffprobePath: "ffprobe",
			runner: &fakeRunner{
				outputs: map[string]string{
					"ffprobe": "",
					"ffmpeg":  "Input #0, mp3\n  Duration: 00:00:05.20, start: 0.0\n",
				},
				errs: map[string]error{"ffprobe": errors.New("exit status 1")},
			},
			statter: fakeStatter{size: 80000},
			want:    5200 * time.Millisecond,
		},
		{
			name: "ffmpeg banner only",
			runner: &fakeRunner{
				outputs: map[string]string{"ffmpeg": "Duration: 01:02:03.45, bitrate"},
				errs:    map[string]error{"ffmpeg": errors.New("exit status 1")},
			},
			statter: fakeStatter{size: 1 << 20},
			want:    time.Hour + 2*time.Minute + 3*time.Second + 450*time.Millisecond,
		},
		{
			name:        "zero ffprobe duration falls back to ffmpeg banner",
			ffprobePath: "ffprobe",
			runner: &fakeRunner{
				outputs: map[string]string{
					"ffprobe": "0.000000\n",
					"ffmpeg":  "Duration: 00:00:08.00, bitrate",
				},
				errs: map[string]error{"ffmpeg": errors.New("exit status 1")},
			},
			statter: fakeStatter{size: 120000},
			want:    8 * time.Second,
		},
		{
			name: "zero banner duration fails",
			runner: &fakeRunner{
				outputs: map[string]string{"ffmpeg": "Duration: 00:00:00.00, bitrate"},
			},
			statter: fakeStatter{size: 1000},
			wantErr: true,
		},
		{
			name: "unparseable output fails",
			runner: &fakeRunner{
				outputs: map[string]string{"ffmpeg": "no duration here"},
			},
			statter: fakeStatter{size: 1000},
			wantErr: true,
		},
		{
			name:    "empty file fails without running ffmpeg",
			runner:  &fakeRunner{},
			statter: fakeStatter{size: 0},
			wantErr: true,
		},
		{
			name:    "unreadable file fails",
			runner:  &fakeRunner{},
			statter: fakeStatter{err: fs.ErrNotExist},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := []FFProberOption{
				WithCommandRunner(tt.runner),
				WithFileStatter(tt.statter),
			}
			if tt.ffprobePath != "" {
				opts = append(opts, WithFFprobePath(tt.ffprobePath))
			}
			p, err := NewFFProber("ffmpeg", opts...)
			if err != nil {
				t.Fatalf("NewFFProber() error: %v", err)
			}

			got, err := p.Probe(context.Background(), "/tmp/in.mp3")
			if tt.wantErr {
				if !errors.Is(err, ErrProbe) {
					t.Fatalf("Probe() error = %v, want ErrProbe", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Probe() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Probe() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFFProber_ProbeNeverReturnsZeroOnFailure(t *testing.T) {
	t.Parallel()

	p, err := NewFFProber("ffmpeg",
		WithCommandRunner(&fakeRunner{outputs: map[string]string{"ffmpeg": "garbage"}}),
		WithFileStatter(fakeStatter{size: 10}),
	)
	if err != nil {
		t.Fatalf("NewFFProber() error: %v", err)
	}

	d, err := p.Probe(context.Background(), "/tmp/corrupt.mp3")
	if err == nil {
		t.Fatal("expected error for corrupt file")
	}
	if d != 0 {
		t.Errorf("failed probe returned duration %v alongside error", d)
	}
}

func TestParseDurationFromFFmpegOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		output  string
		want    time.Duration
		wantErr bool
	}{
		{
			name:   "standard banner",
			output: "Duration: 00:00:12.34, start: 0.000000",
			want:   12*time.Second + 340*time.Millisecond,
		},
		{
			name:   "time progress fallback uses last match",
			output: "time=00:00:01.00 ...\ntime=00:00:40.50 speed=20x",
			want:   40*time.Second + 500*time.Millisecond,
		},
		{
			name:   "millisecond precision",
			output: "Duration: 00:01:00.123",
			want:   time.Minute + 123*time.Millisecond,
		},
		{
			name:    "garbage",
			output:  strings.Repeat("x", 100),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseDurationFromFFmpegOutput(tt.output)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
