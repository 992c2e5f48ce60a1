// Package cmd provides the command-line interface implementation for hmcert.
//
// This package contains all the subcommand implementations for the hmcert CLI tool.
// It uses the Cobra library for command structure and Fang for styling.
//
// The package is organized into the following command groups:
//   - certification: fingerprint, verify, bundle, upload and certify
//   - service: serve, mount, search, tracks and token
//   - utilities: count, seed, config and version
//
// Each command is implemented as a separate file with its own constructor function
// that returns a *cobra.Command. Commands that need configuration load it through
// the persistent --config flag and build their logger and stores from it.
package cmd
