// Package version provides version information and build metadata for hmcert.
//
// Values come from, in order of preference:
//   - Compile-time variables (Version, Commit, Date) set via -ldflags
//   - Runtime build info from debug.ReadBuildInfo()
//   - Fallback defaults for development builds
//
// Release builds set them with:
//
//	-ldflags "-X github.com/humanmadecert/hmcert/version.Version=v1.0.0 -X github.com/humanmadecert/hmcert/version.Commit=abc123 -X github.com/humanmadecert/hmcert/version.Date=2026-01-01T00:00:00Z"
//
// The version is reported by "hmcert --version", "hmcert version" and in the
// startup log lines of the serve and mount commands.
package version
