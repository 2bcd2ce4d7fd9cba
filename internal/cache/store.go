// Package cache persists fingerprints of completed synthesis requests
// so identical requests reuse the finished artifact.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Entry records one completed synthesis artifact.
type Entry struct {
	Fingerprint  string    `json:"fingerprint"`
	ArtifactPath string    `json:"artifact_path"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store maps request fingerprints to finished artifacts. A miss is a
// normal outcome, never an error.
type Store interface {
	// Get returns the entry for a fingerprint, if one exists and its
	// artifact is still present.
	Get(fingerprint string) (Entry, bool)
	// Put records a finished artifact for a fingerprint, replacing any
	// previous entry.
	Put(fingerprint, artifactPath string) error
}

// FileStore keeps one JSON entry file per fingerprint under a cache
// directory. Entries are never mutated in place, only replaced; eviction
// is left to external cleanup of the directory.
type FileStore struct {
	dir string
	log zerolog.Logger
}

var _ Store = (*FileStore)(nil)

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithStoreLogger sets the structured logger.
func WithStoreLogger(log zerolog.Logger) FileStoreOption {
	return func(s *FileStore) { s.log = log }
}

// NewFileStore creates a FileStore rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache dir cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create cache dir: %v", ErrStore, err)
	}
	s := &FileStore{dir: dir, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get implements Store. A stored entry whose artifact has since been
// deleted counts as a miss and is dropped.
func (s *FileStore) Get(fingerprint string) (Entry, bool) {
	if !validFingerprint(fingerprint) {
		return Entry{}, false
	}
	data, err := os.ReadFile(s.entryPath(fingerprint))
	if err != nil {
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.log.Warn().Str("fingerprint", fingerprint).Err(err).Msg("dropping corrupt cache entry")
		_ = os.Remove(s.entryPath(fingerprint))
		return Entry{}, false
	}
	if entry.Fingerprint != fingerprint {
		return Entry{}, false
	}
	if _, err := os.Stat(entry.ArtifactPath); err != nil {
		s.log.Debug().Str("fingerprint", fingerprint).Msg("cached artifact gone, dropping entry")
		_ = os.Remove(s.entryPath(fingerprint))
		return Entry{}, false
	}
	return entry, true
}

// Put implements Store.
func (s *FileStore) Put(fingerprint, artifactPath string) error {
	if !validFingerprint(fingerprint) {
		return fmt.Errorf("%w: malformed fingerprint %q", ErrStore, fingerprint)
	}
	entry := Entry{
		Fingerprint:  fingerprint,
		ArtifactPath: artifactPath,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode entry: %v", ErrStore, err)
	}

	// Write-then-rename so a concurrent Get never sees a half-written
	// entry.
	tmp := s.entryPath(fingerprint) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write entry: %v", ErrStore, err)
	}
	if err := os.Rename(tmp, s.entryPath(fingerprint)); err != nil {
		return fmt.Errorf("%w: publish entry: %v", ErrStore, err)
	}
	return nil
}

func (s *FileStore) entryPath(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".json")
}

// validFingerprint accepts only lowercase hex digests, so a fingerprint
// can never name a file outside the cache directory.
func validFingerprint(fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	for _, c := range fingerprint {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
