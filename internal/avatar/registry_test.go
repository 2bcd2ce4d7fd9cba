package avatar

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"
)

type fakeStatter struct {
	files map[string]int64
}

func (f fakeStatter) Stat(name string) (fs.FileInfo, error) {
	size, ok := f.files[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return statInfo{size: size}, nil
}

type statInfo struct{ size int64 }

func (s statInfo) Name() string       { return "asset" }
func (s statInfo) Size() int64        { return s.size }
func (s statInfo) Mode() fs.FileMode  { return 0o644 }
func (s statInfo) ModTime() time.Time { return time.Time{} }
func (s statInfo) IsDir() bool        { return false }
func (s statInfo) Sys() any           { return nil }

func newTestRegistry(t *testing.T, files map[string]int64) *Registry {
	t.Helper()
	r, err := NewRegistry("/assets", WithRegistryFileStatter(fakeStatter{files: files}))
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	return r
}

func TestRegistry_Resolve(t *testing.T) {
	t.Parallel()

	files := map[string]int64{
		filepath.Join("/assets", "general.png"): 50_000,
		filepath.Join("/assets", "hotel.mp4"):   2_000_000,
		filepath.Join("/assets", "hotel.png"):   50_000,
	}

	tests := []struct {
		name      string
		avatar    string
		wantName  string
		wantAsset string
		wantVoice string
	}{
		{
			name:      "known avatar with image asset",
			avatar:    "general",
			wantName:  "general",
			wantAsset: filepath.Join("/assets", "general.png"),
			wantVoice: "alloy",
		},
		{
			name:      "video asset preferred over image",
			avatar:    "hotel",
			wantName:  "hotel",
			wantAsset: filepath.Join("/assets", "hotel.mp4"),
			wantVoice: "nova",
		},
		{
			name:      "unknown avatar falls back to default",
			avatar:    "pirate",
			wantName:  "general",
			wantAsset: filepath.Join("/assets", "general.png"),
			wantVoice: "alloy",
		},
		{
			name:      "known avatar without asset falls back to default",
			avatar:    "airport",
			wantName:  "general",
			wantAsset: filepath.Join("/assets", "general.png"),
			wantVoice: "alloy",
		},
		{
			name:      "empty name means default",
			avatar:    "",
			wantName:  "general",
			wantAsset: filepath.Join("/assets", "general.png"),
			wantVoice: "alloy",
		},
		{
			name:      "name is case-insensitive",
			avatar:    "  Hotel ",
			wantName:  "hotel",
			wantAsset: filepath.Join("/assets", "hotel.mp4"),
			wantVoice: "nova",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newTestRegistry(t, files)
			got, err := r.Resolve(tt.avatar)
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.avatar, err)
			}
			if got.Name != tt.wantName || got.FaceAsset != tt.wantAsset || got.Voice != tt.wantVoice {
				t.Errorf("Resolve(%q) = %+v, want {%s %s %s}",
					tt.avatar, got, tt.wantName, tt.wantAsset, tt.wantVoice)
			}
		})
	}
}

func TestRegistry_Resolve_NoDefaultAsset(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, map[string]int64{})
	if _, err := r.Resolve("hotel"); !errors.Is(err, ErrNoAsset) {
		t.Fatalf("Resolve() error = %v, want ErrNoAsset", err)
	}
}

func TestRegistry_Resolve_IgnoresEmptyAsset(t *testing.T) {
	t.Parallel()

	files := map[string]int64{
		filepath.Join("/assets", "general.mp4"): 0,
		filepath.Join("/assets", "general.png"): 50_000,
	}
	r := newTestRegistry(t, files)

	got, err := r.Resolve("general")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got.FaceAsset != filepath.Join("/assets", "general.png") {
		t.Errorf("Resolve() picked empty asset: %q", got.FaceAsset)
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	names := Names()
	if len(names) != 4 || names[0] != "general" {
		t.Errorf("Names() = %v", names)
	}
	for _, n := range names {
		if _, ok := voices[n]; !ok {
			t.Errorf("avatar %q has no voice", n)
		}
	}
}
