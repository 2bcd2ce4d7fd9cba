package ffmpeg

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// fakeEnv implements envProvider for testing resolution precedence.
type fakeEnv struct {
	vars     map[string]string
	pathBins map[string]string
	files    map[string]bool
}

func (f fakeEnv) Getenv(key string) string {
	return f.vars[key]
}

func (f fakeEnv) LookPath(file string) (string, error) {
	if p, ok := f.pathBins[file]; ok {
		return p, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func (f fakeEnv) Stat(name string) (os.FileInfo, error) {
	if f.files[name] {
		return fakeFileInfo{name: name}, nil
	}
	return nil, fs.ErrNotExist
}

type fakeFileInfo struct{ name string }

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return 1 }
func (f fakeFileInfo) Mode() fs.FileMode  { return 0755 }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return false }
func (f fakeFileInfo) Sys() any           { return nil }

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		env     fakeEnv
		want    string
		wantErr error
	}{
		{
			name: "env var takes precedence over PATH",
			env: fakeEnv{
				vars:     map[string]string{"FFMPEG_PATH": "/opt/ffmpeg/bin/ffmpeg"},
				pathBins: map[string]string{"ffmpeg": "/usr/bin/ffmpeg"},
				files:    map[string]bool{"/opt/ffmpeg/bin/ffmpeg": true},
			},
			want: "/opt/ffmpeg/bin/ffmpeg",
		},
		{
			name: "env var set but binary missing",
			env: fakeEnv{
				vars:     map[string]string{"FFMPEG_PATH": "/nonexistent/ffmpeg"},
				pathBins: map[string]string{"ffmpeg": "/usr/bin/ffmpeg"},
			},
			wantErr: ErrNotFound,
		},
		{
			name: "falls back to PATH",
			env: fakeEnv{
				pathBins: map[string]string{"ffmpeg": "/usr/local/bin/ffmpeg"},
			},
			want: "/usr/local/bin/ffmpeg",
		},
		{
			name:    "not found anywhere",
			env:     fakeEnv{},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewResolver(WithEnvProvider(tt.env))
			got, err := r.Resolve()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunOutput_ReturnsOutputOnFailure(t *testing.T) {
	t.Parallel()

	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no shell available")
	}

	out, err := RunOutput(context.Background(), sh, []string{"-c", "echo diagnostics; exit 1"})
	if err == nil {
		t.Fatal("RunOutput() error = nil, want non-zero exit")
	}
	if !strings.Contains(string(out), "diagnostics") {
		t.Errorf("RunOutput() output = %q, want the command's output despite the failure", out)
	}
}

func TestResolver_ResolveProbe(t *testing.T) {
	t.Parallel()

	env := fakeEnv{
		vars:  map[string]string{"FFPROBE_PATH": "/opt/ffmpeg/bin/ffprobe"},
		files: map[string]bool{"/opt/ffmpeg/bin/ffprobe": true},
	}
	r := NewResolver(WithEnvProvider(env))

	got, err := r.ResolveProbe()
	if err != nil {
		t.Fatalf("ResolveProbe() unexpected error: %v", err)
	}
	if got != "/opt/ffmpeg/bin/ffprobe" {
		t.Errorf("ResolveProbe() = %q", got)
	}

	_, err = NewResolver(WithEnvProvider(fakeEnv{})).ResolveProbe()
	if !errors.Is(err, ErrProbeNotFound) {
		t.Errorf("ResolveProbe() error = %v, want ErrProbeNotFound", err)
	}
}
