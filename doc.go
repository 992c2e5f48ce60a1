// Package main provides the hmcert command-line interface.
//
// hmcert certifies human-made music. An artist submits a master recording
// together with the project folder it was produced from; hmcert computes a
// folder fingerprint over the whole submission, stores every file under that
// fingerprint and records the track in a searchable catalogue where reviewers
// mark it as human-made or not.
//
// The main binary supports multiple subcommands:
//   - fingerprint: Compute the folder fingerprint of files and directories
//   - bundle, verify: Pack and check offline review bundles
//   - upload: Fingerprint, store and record a submission
//   - serve: Run the HTTP API used by the web front end
//   - mount: Browse the catalogue as a read-only filesystem
//   - search, tracks, certify: Query and review the catalogue
package main
