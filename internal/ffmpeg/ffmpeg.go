// Package ffmpeg locates and executes the FFmpeg/ffprobe binaries.
// The synthesis pipeline shells out to them for probing, cutting and
// concatenation; this package is the single place that knows how.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Environment variables for custom binary paths.
const (
	envFFmpegPath  = "FFMPEG_PATH"
	envFFprobePath = "FFPROBE_PATH"
)

// envProvider abstracts environment and path lookup operations.
type envProvider interface {
	Getenv(key string) string
	LookPath(file string) (string, error)
	Stat(name string) (os.FileInfo, error)
}

// osEnvProvider implements envProvider using os and exec packages.
type osEnvProvider struct{}

func (osEnvProvider) Getenv(key string) string                { return os.Getenv(key) }
func (osEnvProvider) LookPath(file string) (string, error)    { return exec.LookPath(file) }
func (osEnvProvider) Stat(name string) (os.FileInfo, error)   { return os.Stat(name) }

// Compile-time interface verification.
var _ envProvider = osEnvProvider{}

// Resolver finds the FFmpeg and ffprobe binaries.
// The pipeline runs server-side where FFmpeg is provisioned, so resolution
// is env var then PATH; there is no auto-download.
type Resolver struct {
	env envProvider
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithEnvProvider sets the environment provider implementation.
func WithEnvProvider(e envProvider) ResolverOption {
	return func(r *Resolver) { r.env = e }
}

// NewResolver creates a Resolver with the given options.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{env: osEnvProvider{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds ffmpeg using the following precedence:
//  1. FFMPEG_PATH environment variable (error if set but invalid)
//  2. System PATH
func (r *Resolver) Resolve() (string, error) {
	return r.resolve(envFFmpegPath, "ffmpeg", ErrNotFound)
}

// ResolveProbe finds ffprobe using the same precedence as Resolve,
// with FFPROBE_PATH as the override variable.
func (r *Resolver) ResolveProbe() (string, error) {
	return r.resolve(envFFprobePath, "ffprobe", ErrProbeNotFound)
}

func (r *Resolver) resolve(envKey, binary string, sentinel error) (string, error) {
	if envPath := r.env.Getenv(envKey); envPath != "" {
		if _, err := r.env.Stat(envPath); err != nil {
			return "", fmt.Errorf("%w: %s is set to %q but binary not found",
				sentinel, envKey, envPath)
		}
		return envPath, nil
	}

	path, err := r.env.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%w: install it or set %s", sentinel, envKey)
	}
	return path, nil
}

// Resolve finds ffmpeg using a default resolver.
func Resolve() (string, error) {
	return NewResolver().Resolve()
}

// ResolveProbe finds ffprobe using a default resolver.
func ResolveProbe() (string, error) {
	return NewResolver().ResolveProbe()
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// RunOutput executes a resolved binary and captures its combined output.
// The output is returned even when the command fails, since FFmpeg returns
// non-zero exit codes for valid operations (e.g. probing with no output file)
// and its diagnostics go to stderr.
func RunOutput(ctx context.Context, binPath string, args []string) ([]byte, error) {
	// #nosec G204 -- binPath comes from Resolve, args are built internally
	cmd := exec.CommandContext(ctx, binPath, args...)
	return cmd.CombinedOutput()
}
