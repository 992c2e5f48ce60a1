package catalogue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// Search limits.
const (
	MinQueryLength = 2
	TrackLimit     = 10
	UserLimit      = 5
)

// Search looks up tracks by title, folder hash, tx hash, artist or user name
// and users by name, username or artist name. Matching is a case-insensitive
// substring match. Queries shorter than MinQueryLength after trimming return
// empty results. Both lookups run concurrently.
func (s *Store) Search(ctx context.Context, query string) (SearchResults, error) {
	results := SearchResults{Tracks: []TrackResult{}, Users: []User{}}
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return results, nil
	}
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tracks, err := s.queryTracks(gctx,
			`SELECT `+trackColumns+` FROM tracks
             WHERE lower(title) LIKE ?1 ESCAPE '\'
                OR lower(folder_hash) LIKE ?1 ESCAPE '\'
                OR lower(tx_hash) LIKE ?1 ESCAPE '\'
                OR lower(artist_name) LIKE ?1 ESCAPE '\'
                OR lower(user_name) LIKE ?1 ESCAPE '\'
             ORDER BY created_at DESC, rowid DESC
             LIMIT ?2`,
			pattern, TrackLimit,
		)
		if err != nil {
			return fmt.Errorf("search tracks: %w", err)
		}
		for _, t := range tracks {
			results.Tracks = append(results.Tracks, resultFor(t))
		}
		return nil
	})
	g.Go(func() error {
		users, err := s.searchUsers(gctx, pattern)
		if err != nil {
			return fmt.Errorf("search users: %w", err)
		}
		results.Users = append(results.Users, users...)
		return nil
	})
	if err := g.Wait(); err != nil {
		return SearchResults{Tracks: []TrackResult{}, Users: []User{}}, err
	}
	return results, nil
}

func (s *Store) searchUsers(ctx context.Context, pattern string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, username, artist_name FROM users
         WHERE lower(name) LIKE ?1 ESCAPE '\'
            OR lower(username) LIKE ?1 ESCAPE '\'
            OR lower(artist_name) LIKE ?1 ESCAPE '\'
         ORDER BY rowid
         LIMIT ?2`,
		pattern, UserLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u                          User
			name, username, artistName sql.NullString
		)
		if err := rows.Scan(&u.ID, &name, &username, &artistName); err != nil {
			return nil, err
		}
		u.Name, u.Username, u.ArtistName = name.String, username.String, artistName.String
		users = append(users, u)
	}
	return users, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
