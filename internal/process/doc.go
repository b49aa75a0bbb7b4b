// Package process terminates the headless Chrome tree left behind by a
// capture session.
package process

import "errors"

// ErrInvalidPID is returned for pids that would target the caller's own
// process group.
var ErrInvalidPID = errors.New("invalid pid")
