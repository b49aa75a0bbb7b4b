package imagefetch

import "errors"

// Sentinel errors for acquisition attempts.
// None of them escape Engine.Acquire; they are recorded per attempt.
var (
	ErrInvalidURL = errors.New("invalid image URL")
	ErrTimeout    = errors.New("image loading timed out")
	ErrFailed     = errors.New("image loading failed")
	ErrCORS       = errors.New("blocked by cross-origin policy")
	ErrOpaque     = errors.New("opaque response")
	ErrTainted    = errors.New("tainted image cannot be exported")
	ErrDecode     = errors.New("image decode failed")
	ErrTooLarge   = errors.New("image payload too large")
)
