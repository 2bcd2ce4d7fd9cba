package render

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Shubhankar1/VBVA/internal/media"
)

// faceVideoSide is the square edge length face videos are scaled to
// before inference.
const faceVideoSide = 480

// ExecRenderer renders segments by invoking the Wav2Lip inference
// process. Still-image face assets are first expanded into a video of
// the audio's length, since the inference process consumes video input.
type ExecRenderer struct {
	pythonPath     string
	inferenceDir   string
	checkpointPath string
	ffmpegPath     string
	prober         media.Prober
	outputDir      string
	log            zerolog.Logger

	cmd     commandRunner
	stat    fileStatter
	tempDir tempDirCreator
}

var _ Renderer = (*ExecRenderer)(nil)

// ExecRendererOption configures an ExecRenderer.
type ExecRendererOption func(*ExecRenderer)

// WithPythonPath sets the python interpreter used for inference.
func WithPythonPath(path string) ExecRendererOption {
	return func(r *ExecRenderer) {
		if path != "" {
			r.pythonPath = path
		}
	}
}

// WithOutputDir sets the directory rendered segments are written to.
func WithOutputDir(dir string) ExecRendererOption {
	return func(r *ExecRenderer) {
		if dir != "" {
			r.outputDir = dir
		}
	}
}

// WithExecLogger sets the structured logger.
func WithExecLogger(log zerolog.Logger) ExecRendererOption {
	return func(r *ExecRenderer) { r.log = log }
}

// WithExecCommandRunner sets the command runner (for testing).
func WithExecCommandRunner(c commandRunner) ExecRendererOption {
	return func(r *ExecRenderer) { r.cmd = c }
}

// WithExecFileStatter sets the file statter (for testing).
func WithExecFileStatter(s fileStatter) ExecRendererOption {
	return func(r *ExecRenderer) { r.stat = s }
}

// WithExecTempDir sets the temp directory creator (for testing).
func WithExecTempDir(t tempDirCreator) ExecRendererOption {
	return func(r *ExecRenderer) { r.tempDir = t }
}

// NewExecRenderer creates an ExecRenderer. inferenceDir is the
// directory containing the inference script, checkpointPath the model
// weights.
func NewExecRenderer(inferenceDir, checkpointPath, ffmpegPath string, prober media.Prober, opts ...ExecRendererOption) (*ExecRenderer, error) {
	if inferenceDir == "" {
		return nil, fmt.Errorf("inferenceDir cannot be empty")
	}
	if checkpointPath == "" {
		return nil, fmt.Errorf("checkpointPath cannot be empty")
	}
	if ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpegPath cannot be empty")
	}
	if prober == nil {
		return nil, fmt.Errorf("prober cannot be nil")
	}

	r := &ExecRenderer{
		pythonPath:     "python3",
		inferenceDir:   inferenceDir,
		checkpointPath: checkpointPath,
		ffmpegPath:     ffmpegPath,
		prober:         prober,
		outputDir:      "",
		log:            zerolog.Nop(),
		cmd:            osCommandRunner{},
		stat:           osFileStatter{},
		tempDir:        osTempDirCreator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Render implements Renderer.
func (r *ExecRenderer) Render(ctx context.Context, faceAsset, audioPath string, params Params) (string, error) {
	params.normalize()

	face := faceAsset
	if isStillImage(faceAsset) {
		built, err := r.buildFaceVideo(ctx, faceAsset, audioPath)
		if err != nil {
			return "", err
		}
		face = built
	}

	outDir := r.outputDir
	if outDir == "" {
		dir, err := r.tempDir.MkdirTemp("", "vbva-render-*")
		if err != nil {
			return "", fmt.Errorf("create render directory: %w", err)
		}
		outDir = dir
	}
	outPath := filepath.Join(outDir, fmt.Sprintf("rendered_%s.mp4", uuid.NewString()))

	args := []string{
		filepath.Join(r.inferenceDir, "inference.py"),
		"--checkpoint_path", r.checkpointPath,
		"--face", face,
		"--audio", audioPath,
		"--outfile", outPath,
		"--fps", strconv.Itoa(params.FPS),
		"--resize_factor", strconv.Itoa(params.ResizeFactor),
		"--wav2lip_batch_size", strconv.Itoa(params.BatchSize),
		"--nosmooth",
		"--pads", "0", "2", "0", "0",
	}

	r.log.Debug().
		Str("audio", audioPath).
		Str("face", face).
		Int("fps", params.FPS).
		Msg("starting inference")

	output, err := r.cmd.CombinedOutput(ctx, r.pythonPath, args)
	if err != nil {
		if ctx.Err() != nil {
			// Keep the cause in the chain so callers can tell a lapsed
			// attempt deadline from an aborted dispatch.
			return "", fmt.Errorf("%w: %w", ErrRenderTimeout, ctx.Err())
		}
		return "", fmt.Errorf("%w: inference: %v\nOutput: %s",
			ErrRender, err, tail(string(output), 500))
	}

	info, err := r.stat.Stat(outPath)
	if err != nil {
		return "", fmt.Errorf("%w: inference produced no output at %s", ErrRender, outPath)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("%w: inference produced an empty file at %s", ErrRender, outPath)
	}
	return outPath, nil
}

// buildFaceVideo expands a still image into a video matching the audio
// segment's length, scaled square for the face detector.
func (r *ExecRenderer) buildFaceVideo(ctx context.Context, imagePath, audioPath string) (string, error) {
	dur, err := r.prober.Probe(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("probe audio for face video: %w", err)
	}

	dir, err := r.tempDir.MkdirTemp("", "vbva-face-*")
	if err != nil {
		return "", fmt.Errorf("create face video directory: %w", err)
	}
	outPath := filepath.Join(dir, fmt.Sprintf("face_%s.mp4", uuid.NewString()))

	args := []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-t", fmt.Sprintf("%.3f", dur.Seconds()),
		"-vf", fmt.Sprintf("scale=%d:%d", faceVideoSide, faceVideoSide),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
		outPath,
	}

	output, err := r.cmd.CombinedOutput(ctx, r.ffmpegPath, args)
	if err != nil {
		return "", fmt.Errorf("%w: build face video: %v\nOutput: %s",
			ErrRender, err, tail(string(output), 500))
	}
	return outPath, nil
}

// isStillImage reports whether the face asset is a still image rather
// than a video.
func isStillImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}

// tail returns at most the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
