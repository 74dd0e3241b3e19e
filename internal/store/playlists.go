// ABOUTME: Playlist persistence methods on the SQLite store
// ABOUTME: Implements the PlaylistStore interface including admin set and audio membership

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreatePlaylist creates a playlist with an empty admin set.
func (s *SQLiteStore) CreatePlaylist(ctx context.Context, name, ownerID string) (*Playlist, error) {
	now := time.Now().UTC()
	p := &Playlist{
		ID:        NewID(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playlists (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, p.OwnerID, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("inserting playlist: %w", err)
	}
	s.logger.Info("playlist created", "playlist_id", p.ID, "owner_id", ownerID)
	return p, nil
}

// GetPlaylist returns a playlist with its admin set and track count, or ErrNotFound.
func (s *SQLiteStore) GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	var p Playlist
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT p.id, p.name, p.owner_id, p.created_at,
		        (SELECT COUNT(*) FROM playlist_audio pa WHERE pa.playlist_id = p.id)
		 FROM playlists p WHERE p.id = ?`, id).
		Scan(&p.ID, &p.Name, &p.OwnerID, &createdAt, &p.AudioCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying playlist: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id FROM playlist_admins WHERE playlist_id = ? ORDER BY account_id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying admins: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var admin string
		if err := rows.Scan(&admin); err != nil {
			return nil, fmt.Errorf("scanning admin: %w", err)
		}
		p.Admins = append(p.Admins, admin)
	}
	return &p, rows.Err()
}

const playlistPageQuery = `
	SELECT p.id, p.name, p.owner_id, p.created_at,
	       (SELECT COUNT(*) FROM playlist_audio pa WHERE pa.playlist_id = p.id)
	FROM playlists p
	%s
	ORDER BY p.created_at, p.id
	LIMIT ? OFFSET ?`

// ListPlaylists returns one page of all playlists with the total count.
func (s *SQLiteStore) ListPlaylists(ctx context.Context, offset, limit int) ([]*Playlist, int, error) {
	return s.playlistPage(ctx, "", nil, offset, limit)
}

// ListPlaylistsByOwner returns one page of the owner's playlists with their total count.
func (s *SQLiteStore) ListPlaylistsByOwner(ctx context.Context, ownerID string, offset, limit int) ([]*Playlist, int, error) {
	return s.playlistPage(ctx, "WHERE p.owner_id = ?", []any{ownerID}, offset, limit)
}

// ListPlaylistsByAdmin returns one page of playlists the account administers.
func (s *SQLiteStore) ListPlaylistsByAdmin(ctx context.Context, adminID string, offset, limit int) ([]*Playlist, int, error) {
	where := "WHERE p.id IN (SELECT playlist_id FROM playlist_admins WHERE account_id = ?)"
	return s.playlistPage(ctx, where, []any{adminID}, offset, limit)
}

func (s *SQLiteStore) playlistPage(ctx context.Context, where string, args []any, offset, limit int) ([]*Playlist, int, error) {
	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM playlists p %s`, where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting playlists: %w", err)
	}

	query := fmt.Sprintf(playlistPageQuery, where)
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying playlists: %w", err)
	}
	defer rows.Close()

	var page []*Playlist
	for rows.Next() {
		var p Playlist
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &createdAt, &p.AudioCount); err != nil {
			return nil, 0, fmt.Errorf("scanning playlist: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		page = append(page, &p)
	}
	return page, total, rows.Err()
}

// RenamePlaylist changes a playlist's name and returns the updated playlist.
func (s *SQLiteStore) RenamePlaylist(ctx context.Context, id, name string) (*Playlist, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE playlists SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return nil, fmt.Errorf("renaming playlist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetPlaylist(ctx, id)
}

// DeletePlaylist removes a playlist; admins and audio membership cascade.
func (s *SQLiteStore) DeletePlaylist(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting playlist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddAdmin adds an account to the playlist's admin set (set semantics).
func (s *SQLiteStore) AddAdmin(ctx context.Context, id, accountID string) (*Playlist, error) {
	if err := s.requirePlaylist(ctx, id); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO playlist_admins (playlist_id, account_id) VALUES (?, ?)`,
		id, accountID)
	if err != nil {
		return nil, fmt.Errorf("adding admin: %w", err)
	}
	return s.GetPlaylist(ctx, id)
}

// RemoveAdmin removes an account from the playlist's admin set.
func (s *SQLiteStore) RemoveAdmin(ctx context.Context, id, accountID string) (*Playlist, error) {
	if err := s.requirePlaylist(ctx, id); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM playlist_admins WHERE playlist_id = ? AND account_id = ?`,
		id, accountID)
	if err != nil {
		return nil, fmt.Errorf("removing admin: %w", err)
	}
	return s.GetPlaylist(ctx, id)
}

// AddAudio appends a track to the playlist. Already-present tracks are left alone.
func (s *SQLiteStore) AddAudio(ctx context.Context, id, audioID string) (*Playlist, error) {
	if err := s.requirePlaylist(ctx, id); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO playlist_audio (playlist_id, audio_id, position)
		 VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM playlist_audio WHERE playlist_id = ?))`,
		id, audioID, id)
	if err != nil {
		return nil, fmt.Errorf("adding audio to playlist: %w", err)
	}
	return s.GetPlaylist(ctx, id)
}

// RemoveAudio removes a track from the playlist.
func (s *SQLiteStore) RemoveAudio(ctx context.Context, id, audioID string) (*Playlist, error) {
	if err := s.requirePlaylist(ctx, id); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM playlist_audio WHERE playlist_id = ? AND audio_id = ?`, id, audioID)
	if err != nil {
		return nil, fmt.Errorf("removing audio from playlist: %w", err)
	}
	return s.GetPlaylist(ctx, id)
}

// HasAudio reports whether the playlist contains the track.
func (s *SQLiteStore) HasAudio(ctx context.Context, id, audioID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM playlist_audio WHERE playlist_id = ? AND audio_id = ?`,
		id, audioID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking playlist audio: %w", err)
	}
	return true, nil
}

// ListAudio returns one page of the playlist's tracks in insertion order.
func (s *SQLiteStore) ListAudio(ctx context.Context, id string, offset, limit int) ([]*Audio, int, error) {
	if err := s.requirePlaylist(ctx, id); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM playlist_audio WHERE playlist_id = ?`, id).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting playlist audio: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.owner_id, a.source, a.title, a.artist, a.duration, a.created_at
		 FROM playlist_audio pa
		 JOIN audio a ON a.id = pa.audio_id
		 WHERE pa.playlist_id = ?
		 ORDER BY pa.position
		 LIMIT ? OFFSET ?`, id, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("querying playlist audio: %w", err)
	}
	defer rows.Close()

	var page []*Audio
	for rows.Next() {
		a, err := scanAudio(rows)
		if err != nil {
			return nil, 0, err
		}
		page = append(page, a)
	}
	return page, total, rows.Err()
}

// requirePlaylist returns ErrNotFound unless the playlist exists.
func (s *SQLiteStore) requirePlaylist(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM playlists WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking playlist: %w", err)
	}
	return nil
}
