package segment

import (
	"errors"
	"testing"
	"time"
)

func TestLimits_ValidateAudio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dur     time.Duration
		size    int64
		wantErr bool
	}{
		{
			name: "accepts segment above thresholds",
			dur:  4 * time.Second,
			size: 80_000,
		},
		{
			name: "accepts segment exactly at thresholds",
			dur:  DefaultMinDuration,
			size: DefaultMinAudioBytes,
		},
		{
			name:    "rejects short duration",
			dur:     2500 * time.Millisecond,
			size:    80_000,
			wantErr: true,
		},
		{
			name:    "rejects small file",
			dur:     4 * time.Second,
			size:    49_999,
			wantErr: true,
		},
		{
			name:    "rejects zero duration",
			dur:     0,
			size:    80_000,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := DefaultLimits().ValidateAudio(tt.dur, tt.size)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("ValidateAudio() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateAudio() unexpected error: %v", err)
			}
		})
	}
}

func TestLimits_ValidateVideo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dur     time.Duration
		size    int64
		wantErr bool
	}{
		{
			name: "accepts rendered segment above thresholds",
			dur:  4 * time.Second,
			size: 250_000,
		},
		{
			name:    "rejects file below video minimum",
			dur:     4 * time.Second,
			size:    99_999,
			wantErr: true,
		},
		{
			name:    "rejects short duration",
			dur:     time.Second,
			size:    250_000,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := DefaultLimits().ValidateVideo(tt.dur, tt.size)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("ValidateVideo() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateVideo() unexpected error: %v", err)
			}
		})
	}
}

func TestLimits_NormalizeAppliesDefaults(t *testing.T) {
	t.Parallel()

	// Zero-value limits fall back to the defaults instead of accepting
	// everything.
	var l Limits
	if err := l.ValidateAudio(time.Second, 10); !errors.Is(err, ErrValidation) {
		t.Errorf("zero-value Limits accepted a degenerate segment: %v", err)
	}
	if err := l.ValidatePlannedDuration(10 * time.Second); err != nil {
		t.Errorf("zero-value Limits rejected a valid planned duration: %v", err)
	}
}
