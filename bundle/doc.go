// Package bundle packs a certified project into a single zip archive for
// offline review.
//
// A bundle (.hmcz) holds every file of the project under the relative path it
// was fingerprinted with, plus manifest.hmcm: the JSON fingerprint manifest
// listing each file's size and digest and the folder fingerprint. Verify
// recomputes the manifest from the archive content and reports every
// difference, so a reviewer can confirm a bundle is exactly what was
// certified.
package bundle
