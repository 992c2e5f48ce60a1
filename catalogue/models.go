package catalogue

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Verification is the review outcome of a track.
type Verification string

const (
	VerificationYes     Verification = "yes"
	VerificationNo      Verification = "no"
	VerificationPending Verification = "pending"
)

// ParseVerification maps the free-form stored review value onto a
// Verification. Unknown and empty values are pending.
func ParseVerification(raw string) Verification {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "verified":
		return VerificationYes
	case "false", "no", "ai", "rejected":
		return VerificationNo
	default:
		return VerificationPending
	}
}

// Track is a certified (or pending) upload.
type Track struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	ArtistName   string       `json:"artistName"`
	UserName     string       `json:"userName"`
	Email        string       `json:"email,omitempty"`
	AuthorID     string       `json:"authorId,omitempty"`
	FolderHash   string       `json:"folderHash"`
	TxHash       string       `json:"txHash"`
	Verification Verification `json:"verificationStatus"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// User is a registered artist account.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	ArtistName string `json:"artistname"`
}

// TrackResult is a track as shown in search results, with placeholders for
// missing values.
type TrackResult struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title"`
	TxHash             string       `json:"txHash"`
	FolderHash         string       `json:"folderHash"`
	ArtistName         string       `json:"artistName"`
	UserName           string       `json:"userName"`
	VerificationStatus Verification `json:"verificationStatus"`
}

// SearchResults is the combined result of a catalogue search.
type SearchResults struct {
	Tracks []TrackResult `json:"tracks"`
	Users  []User        `json:"users"`
}

// Placeholders rendered for missing search result values.
const (
	NoTxHash      = "no txHash"
	NoFolderHash  = "no folderHash"
	UnknownArtist = "Unknown Artist"
	UnknownUser   = "Unknown User"
)

func resultFor(t Track) TrackResult {
	return TrackResult{
		ID:                 t.ID,
		Title:              t.Title,
		TxHash:             orDefault(t.TxHash, NoTxHash),
		FolderHash:         orDefault(t.FolderHash, NoFolderHash),
		ArtistName:         orDefault(t.ArtistName, UnknownArtist),
		UserName:           orDefault(t.UserName, UnknownUser),
		VerificationStatus: t.Verification,
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Abbreviate shortens a hash for dashboards as first6...last4. Empty values
// render as "n/a"; values too short to abbreviate are returned unchanged.
func Abbreviate(s string) string {
	if s == "" {
		return "n/a"
	}
	if utf8.RuneCountInString(s) <= 10 {
		return s
	}
	r := []rune(s)
	return string(r[:6]) + "..." + string(r[len(r)-4:])
}
