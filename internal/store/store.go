// ABOUTME: Store interfaces and data types for tonehoard persistence
// ABOUTME: Defines Account, Playlist, Audio structs and the per-entity store interfaces

package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrAccountExists is returned when registering an identity that already has an account
var ErrAccountExists = errors.New("account already exists")

// ErrBindExists is returned when attaching an identity that is already bound
var ErrBindExists = errors.New("bind already exists")

// ErrMissingTitle is returned when adding audio without a title and none can be derived
var ErrMissingTitle = errors.New("missing title")

// Bind is one external identity attached to an account.
// Type names the platform (e.g. "telegram"), ID is the platform-specific
// identifier stored as a string.
type Bind struct {
	Type string
	ID   string
}

// Account represents a registered user with one or more bound identities
type Account struct {
	ID        string
	Name      string
	Binds     []Bind
	CreatedAt time.Time
}

// Playlist is a named, owned collection of audio references with an admin set
type Playlist struct {
	ID         string
	Name       string
	OwnerID    string
	Admins     []string
	AudioCount int
	CreatedAt  time.Time
}

// IsOwner reports whether the account owns this playlist.
func (p *Playlist) IsOwner(accountID string) bool {
	return p.OwnerID == accountID
}

// CanEdit reports whether the account is the owner or a listed admin.
func (p *Playlist) CanEdit(accountID string) bool {
	if p.OwnerID == accountID {
		return true
	}
	for _, a := range p.Admins {
		if a == accountID {
			return true
		}
	}
	return false
}

// Audio represents a stored track. Source is an opaque URI (a link or a
// platform file reference); it is never fetched by this process.
type Audio struct {
	ID        string
	OwnerID   string
	Source    string
	Title     string
	Artist    string
	Duration  int
	CreatedAt time.Time
}

// AudioMeta carries optional metadata overrides for AddAudio.
type AudioMeta struct {
	Title    string
	Artist   string
	Duration int
}

// AccountStore persists accounts and their identity binds
type AccountStore interface {
	// CreateAccount creates an account with one initial bind.
	// Returns ErrAccountExists if the bind already belongs to an account.
	CreateAccount(ctx context.Context, name string, bind Bind) (*Account, error)

	// GetAccount returns the account with the given ID, or ErrNotFound.
	GetAccount(ctx context.Context, id string) (*Account, error)

	// GetAccountByBind resolves an external identity to its account, or ErrNotFound.
	GetAccountByBind(ctx context.Context, bind Bind) (*Account, error)

	// AddBind attaches another identity to an existing account.
	// Returns ErrBindExists if the identity is already bound anywhere.
	AddBind(ctx context.Context, accountID string, bind Bind) (*Account, error)

	// DeleteAccount removes an account and its binds.
	DeleteAccount(ctx context.Context, id string) error
}

// PlaylistStore persists playlists, their admin sets, and their audio membership
type PlaylistStore interface {
	CreatePlaylist(ctx context.Context, name, ownerID string) (*Playlist, error)
	GetPlaylist(ctx context.Context, id string) (*Playlist, error)

	// Paged listings, each paired with a total count for navigation.
	ListPlaylists(ctx context.Context, offset, limit int) ([]*Playlist, int, error)
	ListPlaylistsByOwner(ctx context.Context, ownerID string, offset, limit int) ([]*Playlist, int, error)
	ListPlaylistsByAdmin(ctx context.Context, adminID string, offset, limit int) ([]*Playlist, int, error)

	RenamePlaylist(ctx context.Context, id, name string) (*Playlist, error)
	DeletePlaylist(ctx context.Context, id string) error

	AddAdmin(ctx context.Context, id, accountID string) (*Playlist, error)
	RemoveAdmin(ctx context.Context, id, accountID string) (*Playlist, error)

	// AddAudio has set semantics: adding an already-present track is a no-op.
	AddAudio(ctx context.Context, id, audioID string) (*Playlist, error)
	RemoveAudio(ctx context.Context, id, audioID string) (*Playlist, error)
	HasAudio(ctx context.Context, id, audioID string) (bool, error)

	// ListAudio returns one page of the playlist's tracks in insertion order,
	// with the playlist's total track count.
	ListAudio(ctx context.Context, id string, offset, limit int) ([]*Audio, int, error)
}

// AudioStore persists audio track metadata
type AudioStore interface {
	// CreateAudio stores a track. A missing title (no override) yields
	// ErrMissingTitle. Adding a source that already exists returns the
	// existing track unchanged.
	CreateAudio(ctx context.Context, ownerID, source string, meta AudioMeta) (*Audio, error)

	GetAudio(ctx context.Context, id string) (*Audio, error)

	// GetAudioBySource finds a track by its source URI, or ErrNotFound.
	GetAudioBySource(ctx context.Context, source string) (*Audio, error)

	DeleteAudio(ctx context.Context, id string) error
}

// NewID returns a fresh 24-character lowercase hex identifier.
// The length matches the bare-identifier grammar accepted by the bot.
func NewID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("store: reading random bytes: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}
