package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.

var (
	// ErrAPIKeyMissing indicates OPENAI_API_KEY environment variable is not set.
	ErrAPIKeyMissing = errors.New("OPENAI_API_KEY environment variable not set")

	// ErrNoInput indicates neither --text nor --audio was provided.
	ErrNoInput = errors.New("either --text or --audio is required")

	// ErrConflictingInput indicates both --text and --audio were provided.
	ErrConflictingInput = errors.New("--text and --audio are mutually exclusive")

	// ErrFileNotFound indicates the specified input file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrUnsupportedFormat indicates an audio file has an unsupported extension.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrRenderEngineMissing indicates the lip-sync engine location is not configured.
	ErrRenderEngineMissing = errors.New("render engine not configured (set VBVA_WAV2LIP_DIR and VBVA_WAV2LIP_CHECKPOINT)")

	// ErrInvalidConfigKey indicates an unknown configuration key.
	ErrInvalidConfigKey = errors.New("invalid configuration key")
)
