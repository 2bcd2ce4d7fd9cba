package cli

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Shubhankar1/VBVA/internal/config"
)

// validConfigKeys lists all supported configuration keys.
var validConfigKeys = []string{
	config.KeyOutputDir,
	config.KeyCacheDir,
	config.KeyAssetsDir,
	config.KeyWorkers,
}

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage persistent configuration settings.

Configuration is stored in ~/.config/vbva/config.
Settings can also be overridden via environment variables.

Supported settings:
  output-dir    Directory for rendered videos (env: VBVA_OUTPUT_DIR)
  cache-dir     Directory for the artifact cache (env: VBVA_CACHE_DIR)
  assets-dir    Directory holding avatar face assets (env: VBVA_ASSETS_DIR)
  workers       Parallel render workers (env: VBVA_WORKERS)`,
		Example: `  vbva config set output-dir ~/Videos/vbva
  vbva config get output-dir
  vbva config list`,
	}

	cmd.AddCommand(configSetCmd(env))
	cmd.AddCommand(configGetCmd(env))
	cmd.AddCommand(configListCmd(env))

	return cmd
}

// configSetCmd creates the "config set" subcommand.
func configSetCmd(_ *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

Directory keys are created if they don't exist.`,
		Example: `  vbva config set output-dir ~/Videos/vbva
  vbva config set workers 8`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1])
		},
	}
}

// configGetCmd creates the "config get" subcommand.
func configGetCmd(_ *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value.

Prints the value to stdout, or nothing if not set.`,
		Example: `  vbva config get output-dir`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, args[0])
		},
	}
}

// configListCmd creates the "config list" subcommand.
func configListCmd(_ *Env) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List all configuration values",
		Example: `  vbva config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(cmd)
		},
	}
}

func runConfigSet(key, value string) error {
	if !slices.Contains(validConfigKeys, key) {
		return fmt.Errorf("%w: %q (valid: %v)", ErrInvalidConfigKey, key, validConfigKeys)
	}

	switch key {
	case config.KeyWorkers:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("workers must be a positive integer, got %q", value)
		}
	default:
		// Directory keys.
		expanded := config.ExpandPath(value)
		if err := config.ValidDir(expanded); err != nil {
			return err
		}
		value = expanded
	}

	return config.Save(key, value)
}

func runConfigGet(cmd *cobra.Command, key string) error {
	if !slices.Contains(validConfigKeys, key) {
		return fmt.Errorf("%w: %q (valid: %v)", ErrInvalidConfigKey, key, validConfigKeys)
	}

	value, err := config.Get(key)
	if err != nil {
		return err
	}
	if value != "" {
		fmt.Fprintln(cmd.OutOrStdout(), value)
	}
	return nil
}

func runConfigList(cmd *cobra.Command) error {
	data, err := config.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, key := range validConfigKeys {
		if value, ok := data[key]; ok {
			fmt.Fprintf(out, "%s=%s\n", key, value)
		}
	}
	return nil
}
