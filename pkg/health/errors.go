package health

import "errors"

// ErrCheckTimeout is reported for a check that returned after the run timed out.
var ErrCheckTimeout = errors.New("health: check timeout")
