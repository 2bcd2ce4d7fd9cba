package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/Shubhankar1/VBVA/internal/avatar"
	"github.com/Shubhankar1/VBVA/internal/cache"
	"github.com/Shubhankar1/VBVA/internal/config"
	"github.com/Shubhankar1/VBVA/internal/ffmpeg"
	"github.com/Shubhankar1/VBVA/internal/media"
	"github.com/Shubhankar1/VBVA/internal/pipeline"
	"github.com/Shubhankar1/VBVA/internal/recombine"
	"github.com/Shubhankar1/VBVA/internal/render"
	"github.com/Shubhankar1/VBVA/internal/segment"
	"github.com/Shubhankar1/VBVA/internal/tts"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have sensible defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
type Env struct {
	// I/O and environment
	Stderr io.Writer
	Getenv func(string) string
	Now    func() time.Time

	// Factories for domain objects
	FFmpegResolver  FFmpegResolver
	ConfigLoader    ConfigLoader
	ProberFactory   ProberFactory
	AvatarFactory   AvatarFactory
	TTSFactory      TTSFactory
	PipelineFactory PipelineFactory
}

// FFmpegResolver resolves the paths to the FFmpeg and FFprobe binaries.
type FFmpegResolver interface {
	Resolve() (string, error)
	ResolveProbe() (string, error)
}

// ConfigLoader loads and provides access to configuration.
type ConfigLoader interface {
	Load() (config.Config, error)
}

// ProberFactory creates media duration probers.
type ProberFactory interface {
	NewProber(ffmpegPath, ffprobePath string) (media.Prober, error)
}

// AvatarResolver resolves avatar names to face assets and voices.
type AvatarResolver interface {
	Resolve(name string) (avatar.Avatar, error)
}

// AvatarFactory creates avatar registries.
type AvatarFactory interface {
	NewRegistry(assetsDir string) (AvatarResolver, error)
}

// TTSFactory creates speech synthesizers.
type TTSFactory interface {
	NewSynthesizer(apiKey, outputDir string) (tts.Synthesizer, error)
}

// Pipeline runs synthesis requests.
type Pipeline interface {
	Synthesize(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// PipelineParams carries everything needed to assemble a pipeline.
type PipelineParams struct {
	FFmpegPath     string
	FFprobePath    string
	OutputDir      string
	CacheDir       string
	InferenceDir   string
	CheckpointPath string
	Workers        int
	MaxSegment     time.Duration
}

// PipelineFactory assembles a pipeline. The returned func releases the
// pipeline's resources (worker pool).
type PipelineFactory interface {
	New(p PipelineParams) (Pipeline, func(), error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) { e.Stderr = w }
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) { e.Getenv = fn }
}

// WithNow sets the time provider.
func WithNow(fn func() time.Time) EnvOption {
	return func(e *Env) { e.Now = fn }
}

// WithFFmpegResolver sets the FFmpeg resolver.
func WithFFmpegResolver(r FFmpegResolver) EnvOption {
	return func(e *Env) { e.FFmpegResolver = r }
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) { e.ConfigLoader = l }
}

// WithProberFactory sets the prober factory.
func WithProberFactory(f ProberFactory) EnvOption {
	return func(e *Env) { e.ProberFactory = f }
}

// WithAvatarFactory sets the avatar registry factory.
func WithAvatarFactory(f AvatarFactory) EnvOption {
	return func(e *Env) { e.AvatarFactory = f }
}

// WithTTSFactory sets the speech synthesizer factory.
func WithTTSFactory(f TTSFactory) EnvOption {
	return func(e *Env) { e.TTSFactory = f }
}

// WithPipelineFactory sets the pipeline factory.
func WithPipelineFactory(f PipelineFactory) EnvOption {
	return func(e *Env) { e.PipelineFactory = f }
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stderr:          os.Stderr,
		Getenv:          os.Getenv,
		Now:             time.Now,
		FFmpegResolver:  &defaultFFmpegResolver{},
		ConfigLoader:    &defaultConfigLoader{},
		ProberFactory:   &defaultProberFactory{},
		AvatarFactory:   &defaultAvatarFactory{},
		TTSFactory:      &defaultTTSFactory{},
		PipelineFactory: &defaultPipelineFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

// defaultFFmpegResolver implements FFmpegResolver using the ffmpeg package.
type defaultFFmpegResolver struct{}

func (defaultFFmpegResolver) Resolve() (string, error) {
	return ffmpeg.Resolve()
}

func (defaultFFmpegResolver) ResolveProbe() (string, error) {
	return ffmpeg.ResolveProbe()
}

// defaultConfigLoader implements ConfigLoader using the config package.
type defaultConfigLoader struct{}

func (defaultConfigLoader) Load() (config.Config, error) {
	return config.Load()
}

// defaultProberFactory implements ProberFactory using the media package.
type defaultProberFactory struct{}

func (defaultProberFactory) NewProber(ffmpegPath, ffprobePath string) (media.Prober, error) {
	return media.NewFFProber(ffmpegPath, media.WithFFprobePath(ffprobePath))
}

// defaultAvatarFactory implements AvatarFactory using the avatar package.
type defaultAvatarFactory struct{}

func (defaultAvatarFactory) NewRegistry(assetsDir string) (AvatarResolver, error) {
	return avatar.NewRegistry(assetsDir)
}

// defaultTTSFactory implements TTSFactory using OpenAI.
type defaultTTSFactory struct{}

func (defaultTTSFactory) NewSynthesizer(apiKey, outputDir string) (tts.Synthesizer, error) {
	return tts.NewOpenAISynthesizer(apiKey, outputDir)
}

// defaultPipelineFactory assembles the production pipeline.
type defaultPipelineFactory struct{}

func (defaultPipelineFactory) New(p PipelineParams) (Pipeline, func(), error) {
	prober, err := media.NewFFProber(p.FFmpegPath, media.WithFFprobePath(p.FFprobePath))
	if err != nil {
		return nil, nil, err
	}

	splitterOpts := []segment.SplitterOption{}
	if p.MaxSegment > 0 {
		splitterOpts = append(splitterOpts, segment.WithPreferredLength(p.MaxSegment))
	}
	splitter, err := segment.NewSplitter(p.FFmpegPath, prober, splitterOpts...)
	if err != nil {
		return nil, nil, err
	}

	renderer, err := render.NewExecRenderer(p.InferenceDir, p.CheckpointPath, p.FFmpegPath, prober)
	if err != nil {
		return nil, nil, err
	}
	dispatcher, err := render.NewDispatcher(renderer, prober, render.WithWorkers(p.Workers))
	if err != nil {
		return nil, nil, err
	}

	combiner, err := recombine.NewCombiner(p.FFmpegPath, p.OutputDir, prober)
	if err != nil {
		dispatcher.Close()
		return nil, nil, err
	}
	store, err := cache.NewFileStore(p.CacheDir)
	if err != nil {
		dispatcher.Close()
		return nil, nil, err
	}

	coord, err := pipeline.NewCoordinator(prober, splitter, dispatcher, combiner, pipeline.WithCache(store))
	if err != nil {
		dispatcher.Close()
		return nil, nil, err
	}
	return coord, dispatcher.Close, nil
}

// Compile-time interface verification.
var (
	_ FFmpegResolver  = (*defaultFFmpegResolver)(nil)
	_ ConfigLoader    = (*defaultConfigLoader)(nil)
	_ ProberFactory   = (*defaultProberFactory)(nil)
	_ AvatarFactory   = (*defaultAvatarFactory)(nil)
	_ TTSFactory      = (*defaultTTSFactory)(nil)
	_ PipelineFactory = (*defaultPipelineFactory)(nil)
)
