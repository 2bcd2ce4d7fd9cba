// Package avatar maps avatar names to face assets and voices.
package avatar

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultName is the avatar used when a requested one cannot be served.
const DefaultName = "general"

// ErrNoAsset indicates no usable face asset exists, not even for the
// default avatar.
var ErrNoAsset = errors.New("no face asset available")

// Avatar is a resolved avatar: a face asset on disk plus the voice used
// to synthesize its speech.
type Avatar struct {
	Name      string
	FaceAsset string
	Voice     string
}

// voices maps avatar names to TTS voices.
var voices = map[string]string{
	"general": "alloy",
	"hotel":   "nova",
	"airport": "echo",
	"sales":   "onyx",
}

// assetExtensions lists face asset candidates in preference order. A
// video asset skips the still-image expansion step, so it wins over an
// image of the same name.
var assetExtensions = []string{".mp4", ".png", ".jpg", ".jpeg"}

// fileStatter retrieves file information.
type fileStatter interface {
	Stat(name string) (os.FileInfo, error)
}

type osFileStatter struct{}

func (osFileStatter) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

// Registry resolves avatar names against an assets directory holding
// one face file per avatar (general.mp4, hotel.png, ...).
type Registry struct {
	assetsDir string
	stat      fileStatter
	log       zerolog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the structured logger.
func WithRegistryLogger(log zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

// WithRegistryFileStatter sets the file statter (for testing).
func WithRegistryFileStatter(s fileStatter) RegistryOption {
	return func(r *Registry) { r.stat = s }
}

// NewRegistry creates a Registry over assetsDir.
func NewRegistry(assetsDir string, opts ...RegistryOption) (*Registry, error) {
	if assetsDir == "" {
		return nil, fmt.Errorf("assetsDir cannot be empty")
	}
	r := &Registry{
		assetsDir: assetsDir,
		stat:      osFileStatter{},
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Names lists the known avatar names.
func Names() []string {
	return []string{"general", "hotel", "airport", "sales"}
}

// Resolve returns the avatar for name. An unknown name or a missing
// face asset falls back to the default avatar; only a missing default
// asset is an error.
func (r *Registry) Resolve(name string) (Avatar, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultName
	}

	voice, known := voices[name]
	if !known {
		r.log.Warn().Str("avatar", name).Msg("unknown avatar, using default")
		return r.Resolve(DefaultName)
	}

	asset, ok := r.findAsset(name)
	if !ok {
		if name == DefaultName {
			return Avatar{}, fmt.Errorf("%w: no asset for %q under %s", ErrNoAsset, name, r.assetsDir)
		}
		r.log.Warn().Str("avatar", name).Msg("no face asset, using default avatar")
		return r.Resolve(DefaultName)
	}

	return Avatar{Name: name, FaceAsset: asset, Voice: voice}, nil
}

// findAsset returns the first existing face asset for name.
func (r *Registry) findAsset(name string) (string, bool) {
	for _, ext := range assetExtensions {
		path := filepath.Join(r.assetsDir, name+ext)
		if info, err := r.stat.Stat(path); err == nil && !info.IsDir() && info.Size() > 0 {
			return path, true
		}
	}
	return "", false
}
