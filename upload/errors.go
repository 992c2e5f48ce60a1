package upload

import "errors"

// Sentinel errors for package upload.
var (
	ErrIncomplete = errors.New("name, email, track name, master file and project folder are required")
	ErrTooLarge   = errors.New("upload exceeds the maximum total size")
	ErrNoStore    = errors.New("no storage backend configured")
)
