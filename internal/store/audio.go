// ABOUTME: Audio track persistence methods on the SQLite store
// ABOUTME: Implements the AudioStore interface with source-URI deduplication

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateAudio stores a track. Adding a source that already exists returns the
// existing track unchanged. A missing title yields ErrMissingTitle.
func (s *SQLiteStore) CreateAudio(ctx context.Context, ownerID, source string, meta AudioMeta) (*Audio, error) {
	if existing, err := s.GetAudioBySource(ctx, source); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if meta.Title == "" {
		return nil, ErrMissingTitle
	}

	now := time.Now().UTC()
	a := &Audio{
		ID:        NewID(),
		OwnerID:   ownerID,
		Source:    source,
		Title:     meta.Title,
		Artist:    meta.Artist,
		Duration:  meta.Duration,
		CreatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audio (id, owner_id, source, title, artist, duration, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Source, a.Title, a.Artist, a.Duration, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("inserting audio: %w", err)
	}

	s.logger.Info("audio added", "audio_id", a.ID, "owner_id", ownerID)
	return a, nil
}

// GetAudio returns the track with the given ID, or ErrNotFound.
func (s *SQLiteStore) GetAudio(ctx context.Context, id string) (*Audio, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, source, title, artist, duration, created_at
		 FROM audio WHERE id = ?`, id)
	a, err := scanAudio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// GetAudioBySource finds a track by its source URI, or ErrNotFound.
func (s *SQLiteStore) GetAudioBySource(ctx context.Context, source string) (*Audio, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, source, title, artist, duration, created_at
		 FROM audio WHERE source = ?`, source)
	a, err := scanAudio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// DeleteAudio removes a track; playlist membership rows cascade.
func (s *SQLiteStore) DeleteAudio(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audio WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting audio: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudio(row rowScanner) (*Audio, error) {
	var a Audio
	var createdAt string
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Source, &a.Title, &a.Artist, &a.Duration, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning audio: %w", err)
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &a, nil
}
