package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// ProbeCmd creates the probe command.
// The env parameter provides injectable dependencies for testing.
func ProbeCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <media-file>",
		Short: "Print the duration of a media file",
		Long: `Print the duration of an audio or video file.

Uses ffprobe when available, falling back to parsing ffmpeg output.`,
		Example: `  vbva probe greeting.mp3
  vbva probe output.mp4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, env, args[0])
		},
	}
}

func runProbe(cmd *cobra.Command, env *Env, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("cannot access file: %w", err)
	}

	ffmpegPath, err := env.FFmpegResolver.Resolve()
	if err != nil {
		return err
	}
	ffprobePath, err := env.FFmpegResolver.ResolveProbe()
	if err != nil {
		return err
	}

	prober, err := env.ProberFactory.NewProber(ffmpegPath, ffprobePath)
	if err != nil {
		return err
	}
	dur, err := prober.Probe(cmd.Context(), path)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), dur.Round(time.Millisecond))
	return nil
}
