// Package catfs implements a read-only FUSE filesystem over the track
// catalogue.
//
// The root directory holds one directory per certified folder fingerprint.
// Each contains track.json, the catalogue record, and status, the review
// outcome (yes, no or pending). When an on-disk object store is attached,
// objects/ mirrors the uploaded master and project files so reviewers can
// listen to and inspect a submission with ordinary tools.
//
// The main entry point is New, whose result is mounted with Mount.
package catfs
