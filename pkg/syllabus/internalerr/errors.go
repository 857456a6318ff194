package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrExtraction       = errors.New("extraction failed")
	ErrStorage          = errors.New("storage failed")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrStoreUnavailable = errors.New("store unavailable")
)
