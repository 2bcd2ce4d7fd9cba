package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Shubhankar1/VBVA/internal/apierr"
	"github.com/Shubhankar1/VBVA/internal/avatar"
	"github.com/Shubhankar1/VBVA/internal/cli"
	"github.com/Shubhankar1/VBVA/internal/ffmpeg"
	"github.com/Shubhankar1/VBVA/internal/media"
	"github.com/Shubhankar1/VBVA/internal/pipeline"
	"github.com/Shubhankar1/VBVA/internal/recombine"
	"github.com/Shubhankar1/VBVA/internal/render"
	"github.com/Shubhankar1/VBVA/internal/segment"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitSetup      = 3
	ExitValidation = 4
	ExitPipeline   = 5
	ExitInterrupt  = 130
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// Context with signal cancellation.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create the CLI environment with production defaults.
	env := cli.DefaultEnv()

	// Root command.
	rootCmd := &cobra.Command{
		Use:     "vbva",
		Short:   "Synthesize lip-synced avatar videos from text or audio",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	// Subcommands.
	rootCmd.AddCommand(cli.SynthesizeCmd(env))
	rootCmd.AddCommand(cli.ProbeCmd(env))
	rootCmd.AddCommand(cli.ConfigCmd(env))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	// Check for context cancellation (interrupt).
	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Usage errors (ExitUsage = 2): Cobra flag/arg parsing errors.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	// Setup errors (ExitSetup = 3).
	if errors.Is(err, ffmpeg.ErrNotFound) || errors.Is(err, ffmpeg.ErrProbeNotFound) ||
		errors.Is(err, cli.ErrAPIKeyMissing) || errors.Is(err, cli.ErrRenderEngineMissing) ||
		errors.Is(err, avatar.ErrNoAsset) {
		return ExitSetup
	}

	// Validation errors (ExitValidation = 4).
	if errors.Is(err, cli.ErrNoInput) || errors.Is(err, cli.ErrConflictingInput) ||
		errors.Is(err, cli.ErrFileNotFound) || errors.Is(err, cli.ErrUnsupportedFormat) ||
		errors.Is(err, cli.ErrInvalidConfigKey) || errors.Is(err, segment.ErrValidation) ||
		errors.Is(err, media.ErrProbe) {
		return ExitPipelineOrValidation(err, ExitValidation)
	}

	// Pipeline and API errors (ExitPipeline = 5).
	if errors.Is(err, pipeline.ErrAborted) || errors.Is(err, render.ErrRender) ||
		errors.Is(err, render.ErrRenderTimeout) || errors.Is(err, recombine.ErrRecombine) ||
		errors.Is(err, recombine.ErrSequenceIntegrity) || errors.Is(err, segment.ErrSplitCoverage) ||
		errors.Is(err, segment.ErrCutFailed) || errors.Is(err, apierr.ErrRateLimit) ||
		errors.Is(err, apierr.ErrQuotaExceeded) || errors.Is(err, apierr.ErrTimeout) ||
		errors.Is(err, apierr.ErrAuthFailed) {
		return ExitPipeline
	}

	return ExitGeneral
}

// ExitPipelineOrValidation resolves the overlap between validation and
// pipeline failures: a validation error surfacing from an aborted
// pipeline run counts as a pipeline failure.
func ExitPipelineOrValidation(err error, fallback int) int {
	var perr *pipeline.PipelineError
	if errors.As(err, &perr) {
		return ExitPipeline
	}
	return fallback
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// Cobra doesn't expose typed errors, so string matching is the only reliable approach.
var cobraUsageErrorPatterns = []string{
	"required flag",             // Missing required flag
	"unknown flag",              // Flag doesn't exist
	"unknown shorthand",         // Short flag doesn't exist
	"flag needs an argument",    // Flag provided without value
	"invalid argument",          // Invalid flag value type
	"if any flags in the group", // Mutually exclusive flag violation
	"accepts ",                  // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",         // Too few arguments
	"requires at most",          // Too many arguments
	"unknown command",           // Subcommand doesn't exist
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
