package storage

import "errors"

// Sentinel errors for package storage.
var (
	ErrInvalidKey   = errors.New("invalid object key")
	ErrFileTooLarge = errors.New("file exceeds the maximum upload size")
	ErrMissingSize  = errors.New("file size is missing")
	ErrLocked       = errors.New("storage root is locked by another writer")
)
