package cache

import "errors"

// ErrStore indicates the cache store itself failed; a miss is never an
// error.
var ErrStore = errors.New("cache store failure")
