package fingerprint

import (
	"errors"
	"fmt"
)

// Sentinel errors for package fingerprint.
// These errors can be checked with errors.Is() for specific error handling.
var (
	// Input errors
	ErrEmptyInput    = errors.New("fingerprint input contains no files")
	ErrDuplicatePath = errors.New("duplicate relative path in fingerprint input")
	ErrEmptyPath     = errors.New("file has no relative path or name")

	// Source errors
	ErrExpectedFile      = errors.New("expected file, got directory")
	ErrExpectedDirectory = errors.New("expected directory but got file")

	// Digest errors
	ErrDigest = errors.New("digest computation failed")

	// Manifest errors
	ErrManifestMismatch = errors.New("manifest does not match files")
)

// ReadError reports that the content of one input file could not be read.
// The fingerprint is never computed over partial input.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
