// Package server implements the hmcert HTTP API: presigned uploads, upload
// records, search, artist dashboards and single track lookups, plus
// Prometheus metrics and a health check.
package server
