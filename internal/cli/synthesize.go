package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Shubhankar1/VBVA/internal/config"
	"github.com/Shubhankar1/VBVA/internal/pipeline"
	"github.com/Shubhankar1/VBVA/internal/render"
)

// Environment variables locating the lip-sync engine.
const (
	EnvInferenceDir = "VBVA_WAV2LIP_DIR"
	EnvCheckpoint   = "VBVA_WAV2LIP_CHECKPOINT"
)

// supportedAudioFormats lists audio input formats the pipeline accepts.
var supportedAudioFormats = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
}

// supportedAudioFormatsList returns a sorted, comma-separated list for
// error messages.
func supportedAudioFormatsList() string {
	formats := make([]string, 0, len(supportedAudioFormats))
	for ext := range supportedAudioFormats {
		formats = append(formats, strings.TrimPrefix(ext, "."))
	}
	slices.Sort(formats)
	return strings.Join(formats, ", ")
}

// SynthesizeCmd creates the synthesize command.
// The env parameter provides injectable dependencies for testing.
func SynthesizeCmd(env *Env) *cobra.Command {
	var (
		text       string
		audioPath  string
		avatarName string
		output     string
		workers    int
		maxSegment time.Duration
	)

	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Synthesize a lip-synced avatar video",
		Long: `Synthesize a lip-synced avatar video from text or an audio file.

With --text the text is first turned into speech via the OpenAI TTS API.
With --audio an existing speech file is used directly.

Long audio is split into segments, rendered in parallel, and recombined
into one continuous video. Completed requests are cached; repeating an
identical request returns the stored video without rendering.`,
		Example: `  vbva synthesize --text "Welcome to our hotel" --avatar hotel
  vbva synthesize --audio greeting.mp3 --avatar general -o greeting.mp4
  vbva synthesize --audio long-briefing.mp3 --workers 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynthesize(cmd, env, synthesizeOptions{
				text:       text,
				audioPath:  audioPath,
				avatarName: avatarName,
				output:     output,
				workers:    workers,
				maxSegment: maxSegment,
			})
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "Text to speak (synthesized via TTS)")
	cmd.Flags().StringVarP(&audioPath, "audio", "a", "", "Existing speech audio file")
	cmd.Flags().StringVar(&avatarName, "avatar", "general", "Avatar: general, hotel, airport, sales")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output video path (default: generated name in output-dir)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel render workers (default: 6)")
	cmd.Flags().DurationVar(&maxSegment, "max-segment", 0, "Preferred segment length (default: 12s)")

	return cmd
}

type synthesizeOptions struct {
	text       string
	audioPath  string
	avatarName string
	output     string
	workers    int
	maxSegment time.Duration
}

// runSynthesize executes the synthesis pipeline.
// Validation order: input flags -> input file -> engine setup -> avatar -> TTS -> pipeline.
func runSynthesize(cmd *cobra.Command, env *Env, opts synthesizeOptions) error {
	ctx := cmd.Context()

	// === VALIDATION (fail-fast) ===

	// 1. Exactly one input source.
	if opts.text == "" && opts.audioPath == "" {
		return ErrNoInput
	}
	if opts.text != "" && opts.audioPath != "" {
		return ErrConflictingInput
	}

	// 2. Audio input exists and has a supported format.
	if opts.audioPath != "" {
		if _, err := os.Stat(opts.audioPath); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", ErrFileNotFound, opts.audioPath)
			}
			return fmt.Errorf("cannot access input file: %w", err)
		}
		ext := strings.ToLower(filepath.Ext(opts.audioPath))
		if !supportedAudioFormats[ext] {
			return fmt.Errorf("unsupported format %q (supported: %s): %w",
				ext, supportedAudioFormatsList(), ErrUnsupportedFormat)
		}
	}

	// 3. Load config (missing config is fine, a broken one is a warning).
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
	}
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	if err := config.ValidDir(outputDir); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(outputDir, ".vbva-cache")
	}

	// 4. Render engine configured.
	inferenceDir := env.Getenv(EnvInferenceDir)
	checkpoint := env.Getenv(EnvCheckpoint)
	if inferenceDir == "" || checkpoint == "" {
		return ErrRenderEngineMissing
	}

	// 5. FFmpeg available.
	ffmpegPath, err := env.FFmpegResolver.Resolve()
	if err != nil {
		return err
	}
	ffprobePath, err := env.FFmpegResolver.ResolveProbe()
	if err != nil {
		return err
	}

	// 6. Avatar.
	assetsDir := cfg.AssetsDir
	if assetsDir == "" {
		assetsDir = "assets"
	}
	registry, err := env.AvatarFactory.NewRegistry(assetsDir)
	if err != nil {
		return err
	}
	av, err := registry.Resolve(opts.avatarName)
	if err != nil {
		return err
	}

	// === INPUT AUDIO ===

	audioPath := opts.audioPath
	if opts.text != "" {
		apiKey := env.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return ErrAPIKeyMissing
		}
		synth, err := env.TTSFactory.NewSynthesizer(apiKey, filepath.Join(outputDir, "audio"))
		if err != nil {
			return err
		}
		speech, err := synth.Synthesize(ctx, opts.text, av.Voice)
		if err != nil {
			return err
		}
		audioPath = speech.Path
	}

	// === PIPELINE ===

	workers := opts.workers
	if workers == 0 {
		workers = cfg.Workers
	}

	p, release, err := env.PipelineFactory.New(PipelineParams{
		FFmpegPath:     ffmpegPath,
		FFprobePath:    ffprobePath,
		OutputDir:      outputDir,
		CacheDir:       cacheDir,
		InferenceDir:   inferenceDir,
		CheckpointPath: checkpoint,
		Workers:        workers,
		MaxSegment:     opts.maxSegment,
	})
	if err != nil {
		return err
	}
	defer release()

	res, err := p.Synthesize(ctx, pipeline.Request{
		AudioPath: audioPath,
		FaceAsset: av.FaceAsset,
		Params:    render.DefaultParams(),
	})
	if err != nil {
		return err
	}

	// === OUTPUT ===

	finalPath := res.OutputPath
	if opts.output != "" {
		// Copy rather than move so the cached artifact stays valid.
		finalPath = config.ResolveOutputPath(opts.output, cfg.OutputDir, filepath.Base(res.OutputPath))
		if err := copyFile(res.OutputPath, finalPath); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, finalPath)
	if res.Stats.CacheHit {
		fmt.Fprintf(env.Stderr, "cache hit (avatar %s)\n", av.Name)
	} else {
		fmt.Fprintf(env.Stderr, "rendered %s via %s strategy (%d segment(s), fallback=%v) in %s\n",
			av.Name, res.Stats.Strategy, res.Stats.Segments, res.Stats.FallbackUsed,
			res.Stats.Took.Round(time.Millisecond))
	}
	return nil
}

// copyFile copies src to dst, creating parent directories.
func copyFile(src, dst string) error {
	if src == dst {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}

	in, err := os.Open(src) // #nosec G304 -- src is a pipeline artifact
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst) // #nosec G304 -- dst resolved from user flags
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
