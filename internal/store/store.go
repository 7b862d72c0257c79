package store

import (
	"context"
	"errors"
	"time"

	"github.com/fastpanel/fastpanel/internal/models"
)

// Sentinel errors returned by every Store implementation.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrInvalidReference = errors.New("references a missing record")
	// ErrTokenExpired and ErrTokenUsed reject a registration token redemption.
	ErrTokenExpired = errors.New("registration token expired")
	ErrTokenUsed    = errors.New("registration token already used")
)

// Store is the persistence boundary used by services, the processor and
// the refresher.
type Store interface {
	PlaylistStore
	StreamStore
	SourceStore
	ClientStore
	UserStore
	RegistrationTokenStore
	SettingsStore
}

// PlaylistStore persists refreshable playlists, the master catalog included.
type PlaylistStore interface {
	ListPlaylists(ctx context.Context) ([]models.Playlist, error)
	// ListPlaylistsByStatus returns playlists in any of the given statuses, oldest first.
	ListPlaylistsByStatus(ctx context.Context, statuses ...models.PlaylistStatus) ([]models.Playlist, error)
	GetPlaylist(ctx context.Context, id int64) (*models.Playlist, error)
	// GetMasterPlaylist returns ErrNotFound until the master catalog is created.
	GetMasterPlaylist(ctx context.Context) (*models.Playlist, error)
	// EnsureMasterPlaylist returns the master playlist, creating it when absent.
	EnsureMasterPlaylist(ctx context.Context, ownerID int64) (*models.Playlist, error)
	CreatePlaylist(ctx context.Context, p *models.Playlist) (int64, error)
	SetPlaylistStatus(ctx context.Context, id int64, status models.PlaylistStatus) error
	DeletePlaylist(ctx context.Context, id int64) error
}

// StreamStore persists the rows of the master catalog. Every mutation
// names the owning playlist so caches keyed by playlist can be dropped.
type StreamStore interface {
	ListStreams(ctx context.Context, playlistID int64) ([]models.Stream, error)
	ListStreamURLs(ctx context.Context, playlistID int64) ([]string, error)
	// AddStreams inserts entries, skipping URLs already in the playlist.
	// Returns the number of rows inserted.
	AddStreams(ctx context.Context, playlistID int64, entries []models.StreamEntry) (int64, error)
	// ReplaceStreams atomically swaps the playlist's rows for entries.
	ReplaceStreams(ctx context.Context, playlistID int64, entries []models.StreamEntry) (int64, error)
	UpdateStream(ctx context.Context, playlistID int64, s *models.Stream) error
	UpdateStreamType(ctx context.Context, playlistID, streamID int64, t models.StreamType) error
	DeleteStream(ctx context.Context, playlistID, streamID int64) error
	CountStreamsByType(ctx context.Context, playlistID int64) (map[models.StreamType]int64, error)
}

// SourceStore persists source playlist records; the files live in filestore.
type SourceStore interface {
	ListSourcePlaylists(ctx context.Context) ([]models.SourcePlaylist, error)
	GetSourcePlaylist(ctx context.Context, id int64) (*models.SourcePlaylist, error)
	// CreateSourcePlaylist returns ErrConflict when the name is taken.
	CreateSourcePlaylist(ctx context.Context, sp *models.SourcePlaylist) (int64, error)
	UpdateSourceStreamCount(ctx context.Context, id int64, count int) error
	DeleteSourcePlaylist(ctx context.Context, id int64) error
}

// ClientStore persists clients and their ordered source playlist assignment.
type ClientStore interface {
	// ListClients returns clients of resellerID, or all clients when nil.
	ListClients(ctx context.Context, resellerID *int64) ([]models.Client, error)
	CountClients(ctx context.Context, resellerID *int64) (int64, error)
	// GetClient loads the client with SourcePlaylists in assignment order.
	GetClient(ctx context.Context, id int64) (*models.Client, error)
	GetClientByUsername(ctx context.Context, username string) (*models.Client, error)
	// CreateClient stores c and assigns sourceIDs in order. Returns
	// ErrConflict for a taken username and ErrInvalidReference for an
	// unknown source playlist.
	CreateClient(ctx context.Context, c *models.Client, sourceIDs []int64) (int64, error)
	DeleteClient(ctx context.Context, id int64) error
	UpdateClientPassword(ctx context.Context, id int64, hash string) error
	UpdateClientExpiration(ctx context.Context, id int64, expiration *time.Time) error
	SetClientM3UURL(ctx context.Context, id int64, url string) error
}

// UserStore persists panel operators.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	// ListUsers returns users with the given role, or all when role is nil,
	// oldest first.
	ListUsers(ctx context.Context, role *models.Role) ([]models.User, error)
	// CreateUser returns ErrConflict when the username or email is taken.
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	// UpdateUser sets the username and, when passwordHash is not empty,
	// the password.
	UpdateUser(ctx context.Context, id int64, username, passwordHash string) error
	DeleteUser(ctx context.Context, id int64) error
}

// RegistrationTokenStore persists single-use self-registration tokens.
type RegistrationTokenStore interface {
	CreateRegistrationToken(ctx context.Context, t *models.RegistrationToken) (int64, error)
	GetRegistrationToken(ctx context.Context, token string) (*models.RegistrationToken, error)
	// RedeemRegistrationToken creates u with the token's role and creator
	// and marks the token used, atomically. Returns ErrNotFound,
	// ErrTokenExpired, ErrTokenUsed or ErrConflict.
	RedeemRegistrationToken(ctx context.Context, token string, u *models.User, now time.Time) (int64, error)
}

// SettingsStore persists panel-wide key/value settings.
type SettingsStore interface {
	GetSettings(ctx context.Context) (map[string]string, error)
	// UpsertSettings writes every pair in a single transaction.
	UpsertSettings(ctx context.Context, values map[string]string) error
}
