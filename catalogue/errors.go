package catalogue

import "errors"

// Sentinel errors for package catalogue.
var (
	ErrNotFound       = errors.New("track not found")
	ErrDuplicateTrack = errors.New("a track with this folder hash is already registered")
	ErrSchemaMismatch = errors.New("schema version mismatch")
	ErrMissingUserID  = errors.New("user id is required")
)
