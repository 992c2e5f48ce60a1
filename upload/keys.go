package upload

import (
	"path"
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`[\s\p{Zs}\v\x{FEFF}\x{2028}\x{2029}]+`)
	disallowed    = regexp.MustCompile(`[^a-z0-9.@_-]`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// Sanitize reduces free text to a storage-key-safe token: trimmed, lowercased,
// whitespace runs replaced by "_", characters outside [a-z0-9.@_-] dropped and
// repeated underscores collapsed.
func Sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRun.ReplaceAllString(s, "_")
	s = disallowed.ReplaceAllString(s, "")
	return underscoreRun.ReplaceAllString(s, "_")
}

// Prefix returns the storage prefix every object of an upload is placed
// under. It ends in a slash.
func Prefix(email, name, track, hash string) string {
	return "Email_" + Sanitize(email) +
		"_Name_" + Sanitize(name) +
		"_TrackName_" + Sanitize(track) +
		"_hash_" + hash + "/"
}

// MasterKey returns the key of the master file within prefix.
func MasterKey(prefix, masterName string) string {
	return prefix + "master_" + path.Base(masterName)
}

// ProjectKey returns the key of a project file within prefix. relPath is the
// slash-separated path reported for the file, including the folder name.
func ProjectKey(prefix, relPath string) string {
	return prefix + "project/" + strings.TrimPrefix(relPath, "/")
}
