package media

import "errors"

// ErrProbe indicates a media artifact's duration could not be determined
// (unreadable file, corrupt header, zero-length file). Probing never
// substitutes a default duration; callers must treat this as fatal for
// the artifact.
var ErrProbe = errors.New("media probe failed")
