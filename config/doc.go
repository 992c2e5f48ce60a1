// Package config loads, normalizes, and validates hmcert configuration.
//
// Configuration is read from TOML (default ~/.config/hmcert/config.toml).
// Missing values fall back to Default(), paths are expanded, and secrets may
// be supplied through environment variables instead of the file.
package config
