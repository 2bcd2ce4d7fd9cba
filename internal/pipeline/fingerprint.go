package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// fingerprintLen is the length of the hex fingerprint key. Half the
// full digest is plenty for a cache key and keeps file names short.
const fingerprintLen = 32

// Fingerprint derives the cache key for a request: a truncated sha256
// over the audio content, the face asset identifier, and the strategy
// configuration version. Hashing content rather than the path means a
// re-generated file with identical bytes still hits.
func Fingerprint(audioPath, faceAsset, configVersion string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("fingerprint: read audio: %w", err)
	}
	fmt.Fprintf(h, "|face=%s|cfg=%s", faceAsset, configVersion)

	return hex.EncodeToString(h.Sum(nil))[:fingerprintLen], nil
}
