// package services implements the provider adapters for the migration service.
//
// Spotify is the source provider, Tidal the target. Both are wrapped behind
// capability interfaces so the engine and HTTP layer never touch provider
// wire formats directly.
package services

import (
	"context"

	"github.com/hazelvane/beatmigrate/internal/models"
)

// SourceProvider mints authenticated source sessions from OAuth authorization codes.
type SourceProvider interface {
	// AuthURL returns the provider's authorization URL for user login.
	AuthURL(state string) string

	// Connect exchanges an authorization code for an authenticated session.
	Connect(ctx context.Context, code string) (SourceSession, error)
}

// SourceSession is an authenticated connection to the source provider's
// library endpoints. Paginated listings loop internally until the provider
// reports no next page.
type SourceSession interface {
	// Profile retrieves the authenticated user's profile.
	Profile(ctx context.Context) (*UserProfile, error)

	// Playlists retrieves all of the user's playlists, following pagination.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// PlaylistTracks retrieves every track of one playlist, following pagination.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// LikedTracks retrieves one page of the user's saved tracks.
	LikedTracks(ctx context.Context, limit, offset int) (*LikedTracksPage, error)

	// TopTracks retrieves the user's top tracks for a time range.
	TopTracks(ctx context.Context, timeRange string, limit int) ([]models.Track, error)

	// TopArtists retrieves the user's top artists for a time range.
	TopArtists(ctx context.Context, timeRange string, limit int) ([]Artist, error)

	// RecentlyPlayed retrieves the user's recently played tracks.
	RecentlyPlayed(ctx context.Context, limit int) ([]models.Track, error)

	// LibraryStats retrieves headline counts for the user's library.
	LibraryStats(ctx context.Context) (*LibraryStats, error)
}

// TargetProvider runs the target provider's device-authorization login flow.
type TargetProvider interface {
	// StartDeviceLogin requests a device authorization and returns the codes
	// the user needs to complete login in a browser.
	StartDeviceLogin(ctx context.Context) (*DeviceLogin, error)

	// WaitForLogin blocks polling the token endpoint until the user approves,
	// the authorization expires, or ctx is cancelled.
	WaitForLogin(ctx context.Context, login *DeviceLogin) (TargetSession, error)
}

// TargetSession is an authenticated connection to the target provider. The
// migration engine borrows sessions from the registry, it never owns them.
type TargetSession interface {
	// User returns a summary of the logged-in user.
	User() UserSummary

	// Playlists retrieves all of the user's playlists.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// Playlist retrieves one playlist by ID.
	Playlist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// PlaylistTracks retrieves every track of one playlist.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// SearchTracks searches the track category, returning at most limit
	// candidates in the provider's own relevance order.
	SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error)

	// CreatePlaylist creates an empty playlist owned by the user.
	CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error)

	// AddTracks appends tracks to a playlist in one call.
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error

	// DeletePlaylist removes a playlist.
	DeletePlaylist(ctx context.Context, playlistID string) error

	// AddToFavorites adds a single track to the user's favorites collection.
	AddToFavorites(ctx context.Context, trackID string) error
}

// UserProfile is the source provider's view of the authenticated user.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Image       string `json:"image"`
	Country     string `json:"country"`
	Product     string `json:"product"` // premium, free, etc.
	Followers   int    `json:"followers"`
}

// UserSummary identifies the target provider's logged-in user.
type UserSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Artist is an artist entry for the top-artists insight.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Image      string   `json:"image,omitempty"`
	Popularity int      `json:"popularity"`
	Followers  int      `json:"followers"`
}

// LikedTracksPage is one page of the user's saved tracks.
type LikedTracksPage struct {
	Tracks  []models.Track `json:"tracks"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

// LibraryStats holds headline counts for the source library.
type LibraryStats struct {
	SavedTracks     int `json:"saved_tracks"`
	Playlists       int `json:"playlists"`
	SavedAlbums     int `json:"saved_albums"`
	FollowedArtists int `json:"followed_artists"`
}

// DeviceLogin holds the codes of an in-flight device authorization.
type DeviceLogin struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	ExpiresIn       int // seconds
	Interval        int // polling interval, seconds
}
