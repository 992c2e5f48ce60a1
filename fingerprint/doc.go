// Package fingerprint computes deterministic folder fingerprints.
//
// A fingerprint identifies a set of files (a master audio file plus a project
// folder) by their relative paths and byte content. Files are ordered by
// relative path, their contents are concatenated in that order with no
// separators, and the SHA-256 of the concatenation is encoded as 64 lowercase
// hexadecimal characters. The same set of files always produces the same
// fingerprint regardless of the order the caller supplies them in.
//
// Primary entry points:
//   - Compute: streams files into an incremental digest
//   - ComputeBuffered: reads files concurrently into memory, then hashes
//   - BuildManifest: fingerprint plus per-file digests for later verification
//   - FromDir, FromProject: collect files from the local filesystem
//
// Paths are ordered bytewise by default. Collated gives the locale-aware
// order used by browser clients; it is only deterministic across machines
// when both sides use the same collation tag.
//
// Callers must not pass two files with the same relative path. Such input is
// rejected with ErrDuplicatePath, as is an empty input (ErrEmptyInput).
package fingerprint
