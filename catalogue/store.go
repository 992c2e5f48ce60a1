package catalogue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/humanmadecert/hmcert/logging"
)

const trackColumns = "id, title, artist_name, user_name, email, author_id, folder_hash, tx_hash, is_verified, created_at"

// Store persists tracks and users in SQLite.
type Store struct {
	db   *sql.DB
	path string
	log  *zap.Logger
}

// Open initializes or connects to the catalogue database at path.
func Open(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalogue directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, log: logging.OrNop(log)}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// AddTrack inserts a track. A missing ID is generated, a zero CreatedAt is set
// to now and an empty Verification is stored as pending.
func (s *Store) AddTrack(ctx context.Context, t *Track) error {
	if t == nil {
		return errors.New("track is nil")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Verification == "" {
		t.Verification = VerificationPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracks (`+trackColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		nullableString(t.Title),
		nullableString(t.ArtistName),
		nullableString(t.UserName),
		nullableString(t.Email),
		nullableString(t.AuthorID),
		nullableString(t.FolderHash),
		nullableString(t.TxHash),
		string(t.Verification),
		t.CreatedAt.UnixNano(),
	)
	if isConstraint(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateTrack, t.FolderHash)
	}
	if err != nil {
		return fmt.Errorf("insert track: %w", err)
	}
	s.log.Info("track recorded",
		zap.String("id", t.ID),
		zap.String("folder_hash", t.FolderHash),
		zap.String("author_id", t.AuthorID),
	)
	return nil
}

// UpsertUser creates or replaces a user record.
func (s *Store) UpsertUser(ctx context.Context, u User) error {
	if strings.TrimSpace(u.ID) == "" {
		return ErrMissingUserID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, username, artist_name) VALUES (?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             name = excluded.name,
             username = excluded.username,
             artist_name = excluded.artist_name`,
		u.ID,
		nullableString(u.Name),
		nullableString(u.Username),
		nullableString(u.ArtistName),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// TrackByHash returns the track registered under a folder hash.
func (s *Store) TrackByHash(ctx context.Context, hash string) (*Track, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE folder_hash = ?`, hash)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return t, nil
}

// TracksByAuthor lists an author's tracks, newest first.
func (s *Store) TracksByAuthor(ctx context.Context, authorID string) ([]Track, error) {
	return s.queryTracks(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE author_id = ? ORDER BY created_at DESC, rowid DESC`,
		authorID,
	)
}

// AllTracks lists every track, newest first.
func (s *Store) AllTracks(ctx context.Context) ([]Track, error) {
	return s.queryTracks(ctx, `SELECT `+trackColumns+` FROM tracks ORDER BY created_at DESC, rowid DESC`)
}

// SetVerification records a review outcome and, when non-empty, the
// transaction hash of the on-chain certificate.
func (s *Store) SetVerification(ctx context.Context, hash string, status Verification, txHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracks SET is_verified = ?, tx_hash = COALESCE(?, tx_hash) WHERE folder_hash = ?`,
		string(status),
		nullableString(txHash),
		hash,
	)
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	s.log.Info("verification updated", zap.String("folder_hash", hash), zap.String("status", string(status)))
	return nil
}

func (s *Store) queryTracks(ctx context.Context, query string, args ...any) ([]Track, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*Track, error) {
	var (
		id         string
		title      sql.NullString
		artistName sql.NullString
		userName   sql.NullString
		email      sql.NullString
		authorID   sql.NullString
		folderHash sql.NullString
		txHash     sql.NullString
		verified   string
		createdAt  int64
	)
	if err := scanner.Scan(
		&id,
		&title,
		&artistName,
		&userName,
		&email,
		&authorID,
		&folderHash,
		&txHash,
		&verified,
		&createdAt,
	); err != nil {
		return nil, err
	}
	return &Track{
		ID:           id,
		Title:        title.String,
		ArtistName:   artistName.String,
		UserName:     userName.String,
		Email:        email.String,
		AuthorID:     authorID.String,
		FolderHash:   folderHash.String,
		TxHash:       txHash.String,
		Verification: ParseVerification(verified),
		CreatedAt:    time.Unix(0, createdAt).UTC(),
	}, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
