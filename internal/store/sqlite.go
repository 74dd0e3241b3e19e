// ABOUTME: SQLite-backed implementation shared by the account, playlist and audio stores
// ABOUTME: Opens the database with WAL mode and creates the schema on startup

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements AccountStore, PlaylistStore and AudioStore on one
// SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at the given path.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS binds (
			bind_type TEXT NOT NULL,
			bind_id TEXT NOT NULL,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			PRIMARY KEY (bind_type, bind_id)
		);
		CREATE INDEX IF NOT EXISTS idx_binds_account ON binds(account_id);

		CREATE TABLE IF NOT EXISTS playlists (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			owner_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_playlists_owner ON playlists(owner_id);

		CREATE TABLE IF NOT EXISTS playlist_admins (
			playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			PRIMARY KEY (playlist_id, account_id)
		);
		CREATE INDEX IF NOT EXISTS idx_playlist_admins_account ON playlist_admins(account_id);

		CREATE TABLE IF NOT EXISTS audio (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			source TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			artist TEXT NOT NULL DEFAULT '',
			duration INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audio_source ON audio(source);

		CREATE TABLE IF NOT EXISTS playlist_audio (
			playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			audio_id TEXT NOT NULL REFERENCES audio(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			PRIMARY KEY (playlist_id, audio_id)
		);
		CREATE INDEX IF NOT EXISTS idx_playlist_audio_pos ON playlist_audio(playlist_id, position);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
