package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/Shubhankar1/VBVA/internal/apierr"
)

// speechCreator is the subset of the OpenAI client the synthesizer uses.
type speechCreator interface {
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAISynthesizer synthesizes speech via the OpenAI TTS API.
type OpenAISynthesizer struct {
	client    speechCreator
	model     openai.SpeechModel
	outputDir string
	retry     apierr.RetryConfig
	log       zerolog.Logger
}

var _ Synthesizer = (*OpenAISynthesizer)(nil)

// OpenAIOption configures an OpenAISynthesizer.
type OpenAIOption func(*OpenAISynthesizer)

// WithSpeechCreator sets the API client (for testing).
func WithSpeechCreator(c speechCreator) OpenAIOption {
	return func(s *OpenAISynthesizer) { s.client = c }
}

// WithModel sets the TTS model.
func WithModel(m openai.SpeechModel) OpenAIOption {
	return func(s *OpenAISynthesizer) { s.model = m }
}

// WithTTSRetryConfig sets the retry budget.
func WithTTSRetryConfig(cfg apierr.RetryConfig) OpenAIOption {
	return func(s *OpenAISynthesizer) { s.retry = cfg }
}

// WithTTSLogger sets the structured logger.
func WithTTSLogger(log zerolog.Logger) OpenAIOption {
	return func(s *OpenAISynthesizer) { s.log = log }
}

// NewOpenAISynthesizer creates a synthesizer writing audio files into
// outputDir.
func NewOpenAISynthesizer(apiKey, outputDir string, opts ...OpenAIOption) (*OpenAISynthesizer, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("outputDir cannot be empty")
	}

	s := &OpenAISynthesizer{
		model:     openai.TTSModel1,
		outputDir: outputDir,
		retry:     apierr.RetryConfig{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second},
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		if apiKey == "" {
			return nil, fmt.Errorf("%w: API key is required", apierr.ErrAuthFailed)
		}
		s.client = openai.NewClient(apiKey)
	}
	return s, nil
}

// Synthesize implements Synthesizer. Transient API failures (rate
// limits, timeouts, server errors) are retried with backoff.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, voice string) (Audio, error) {
	if strings.TrimSpace(text) == "" {
		return Audio{}, fmt.Errorf("%w: empty text", ErrSynthesis)
	}

	req := openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	}
	if voice == "" {
		req.Voice = openai.VoiceAlloy
	}

	path, err := apierr.RetryWithBackoff(ctx, s.retry, func() (string, error) {
		return s.createSpeechFile(ctx, req)
	}, isRetryableError)
	if err != nil {
		return Audio{}, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	s.log.Debug().Str("path", path).Int("chars", len(text)).Msg("speech synthesized")
	return Audio{Path: path, NominalDuration: estimateSpokenDuration(text)}, nil
}

// createSpeechFile performs one API call and streams the audio to disk.
func (s *OpenAISynthesizer) createSpeechFile(ctx context.Context, req openai.CreateSpeechRequest) (string, error) {
	resp, err := s.client.CreateSpeech(ctx, req)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Close()

	if err := os.MkdirAll(s.outputDir, 0o750); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	path := filepath.Join(s.outputDir, fmt.Sprintf("speech_%s.mp3", uuid.NewString()))

	f, err := os.Create(path) // #nosec G304 -- path is built from our own output dir
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	written, err := io.Copy(f, resp)
	closeErr := f.Close()
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write audio: %w", err)
	}
	if closeErr != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close audio file: %w", closeErr)
	}
	if written == 0 {
		_ = os.Remove(path)
		return "", fmt.Errorf("API returned an empty audio stream")
	}
	return path, nil
}

// classifyError maps OpenAI API errors to sentinel errors.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			// A quota failure needs user action; retrying only burns
			// the backoff budget.
			if strings.Contains(apiErr.Message, "quota") ||
				strings.Contains(apiErr.Message, "billing") {
				return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrQuotaExceeded)
			}
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrRateLimit)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrAuthFailed)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrTimeout)
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrBadRequest)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}
	return err
}

// isRetryableError determines if an error is transient and should be retried.
func isRetryableError(err error) bool {
	if errors.Is(err, apierr.ErrRateLimit) || errors.Is(err, apierr.ErrTimeout) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}
