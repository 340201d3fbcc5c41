// Spotify API implementation of [SourceProvider] and [SourceSession]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hazelvane/beatmigrate/internal/models"
	"github.com/hazelvane/beatmigrate/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// spotifyScope covers playlists, the saved library, and the dashboard insights.
const spotifyScope = "playlist-read-private playlist-read-collaborative user-top-read " +
	"user-read-recently-played user-library-read user-read-private user-follow-read"

type spotifyFollowers struct {
	Total int `json:"total"`
}

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type spotifyUser struct {
	ID          string           `json:"id"`
	DisplayName string           `json:"display_name"`
	Email       string           `json:"email"`
	Country     string           `json:"country"`
	Product     string           `json:"product"`
	Followers   spotifyFollowers `json:"followers"`
	Images      []spotifyImage   `json:"images"`
}

type spotifyArtist struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Genres     []string         `json:"genres"`
	Images     []spotifyImage   `json:"images"`
	Popularity int              `json:"popularity"`
	Followers  spotifyFollowers `json:"followers"`
}

type spotifyAlbum struct {
	Name   string         `json:"name"`
	Images []spotifyImage `json:"images"`
}

type spotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []spotifyArtist `json:"artists"`
	Album      spotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
}

type spotifyOwner struct {
	DisplayName string `json:"display_name"`
}

type spotifySimplePlaylist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Owner  spotifyOwner `json:"owner"`
	Images []spotifyImage `json:"images"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

// page is the provider's generic paginated envelope. Next is nil on the last page.
type spotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

type spotifyPlaylistItem struct {
	AddedAt string        `json:"added_at"`
	Track   *spotifyTrack `json:"track"`
}

type spotifySavedItem struct {
	AddedAt string       `json:"added_at"`
	Track   spotifyTrack `json:"track"`
}

type spotifyPlayedItem struct {
	PlayedAt string       `json:"played_at"`
	Track    spotifyTrack `json:"track"`
}

// SpotifyService implements [SourceProvider]. It holds the OAuth2 application
// config and mints one [SourceSession] per authorization code.
type SpotifyService struct {
	config  *oauth2.Config
	baseURL string
}

// SpotifyOpt overrides service defaults, used by tests to point at a fake server.
type SpotifyOpt func(*SpotifyService)

// WithSpotifyBaseURL overrides the API base URL.
func WithSpotifyBaseURL(baseURL string) SpotifyOpt {
	return func(s *SpotifyService) { s.baseURL = baseURL }
}

// NewSpotifyService creates a Spotify provider from application credentials.
func NewSpotifyService(cfg shared.SpotifyConfig, opts ...SpotifyOpt) (*SpotifyService, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:5000/callback"
	}

	svc := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes:       strings.Fields(spotifyScope),
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
		baseURL: spotifyBaseURL,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Connect exchanges an authorization code for an authenticated session.
func (s *SpotifyService) Connect(ctx context.Context, code string) (SourceSession, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", shared.ErrAuthFailed, err)
	}

	return &spotifySession{
		baseURL:    s.baseURL,
		httpClient: s.config.Client(ctx, token),
	}, nil
}

// ConnectToken builds a session from an existing access token, used by the CLI
// after a stored login.
func (s *SpotifyService) ConnectToken(ctx context.Context, token *oauth2.Token) SourceSession {
	return &spotifySession{
		baseURL:    s.baseURL,
		httpClient: s.config.Client(ctx, token),
	}
}

// spotifySession implements [SourceSession] over the Spotify Web API.
type spotifySession struct {
	baseURL    string
	httpClient *http.Client
}

// doRequest performs an authenticated GET against the API and decodes the JSON response.
func (s *spotifySession) doRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: spotify status %d", shared.ErrProviderRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (s *spotifySession) Profile(ctx context.Context) (*UserProfile, error) {
	var user spotifyUser
	if err := s.doRequest(ctx, "/me", &user); err != nil {
		return nil, err
	}

	displayName := user.DisplayName
	if displayName == "" {
		displayName = user.ID
	}

	return &UserProfile{
		ID:          user.ID,
		DisplayName: displayName,
		Email:       user.Email,
		Image:       firstImage(user.Images),
		Country:     user.Country,
		Product:     user.Product,
		Followers:   user.Followers.Total,
	}, nil
}

func (s *spotifySession) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	limit, offset := 50, 0

	for {
		var page spotifyPage[spotifySimplePlaylist]
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)
		if err := s.doRequest(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, p := range page.Items {
			playlists = append(playlists, models.Playlist{
				ID:          p.ID,
				Name:        p.Name,
				TracksTotal: p.Tracks.Total,
				Image:       firstImage(p.Images),
				Owner:       p.Owner.DisplayName,
			})
		}

		if page.Next == nil {
			break
		}
		offset += limit
	}

	return playlists, nil
}

func (s *spotifySession) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	var tracks []models.Track
	limit, offset := 100, 0

	for {
		var page spotifyPage[spotifyPlaylistItem]
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), limit, offset)
		if err := s.doRequest(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			// Local files and removed tracks come back with a null track.
			if item.Track == nil {
				continue
			}
			tracks = append(tracks, convertSpotifyTrack(*item.Track))
		}

		if page.Next == nil {
			break
		}
		offset += limit
	}

	return tracks, nil
}

func (s *spotifySession) LikedTracks(ctx context.Context, limit, offset int) (*LikedTracksPage, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 50 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var page spotifyPage[spotifySavedItem]
	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, item := range page.Items {
		track := convertSpotifyTrack(item.Track)
		track.AddedAt = item.AddedAt
		tracks = append(tracks, track)
	}

	return &LikedTracksPage{
		Tracks:  tracks,
		Total:   page.Total,
		Limit:   limit,
		Offset:  offset,
		HasMore: page.Next != nil,
	}, nil
}

func (s *spotifySession) TopTracks(ctx context.Context, timeRange string, limit int) ([]models.Track, error) {
	timeRange, limit = insightParams(timeRange, limit)

	var page spotifyPage[spotifyTrack]
	endpoint := fmt.Sprintf("/me/top/tracks?limit=%d&time_range=%s", limit, url.QueryEscape(timeRange))
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, t := range page.Items {
		track := convertSpotifyTrack(t)
		track.Popularity = t.Popularity
		tracks = append(tracks, track)
	}

	return tracks, nil
}

func (s *spotifySession) TopArtists(ctx context.Context, timeRange string, limit int) ([]Artist, error) {
	timeRange, limit = insightParams(timeRange, limit)

	var page spotifyPage[spotifyArtist]
	endpoint := fmt.Sprintf("/me/top/artists?limit=%d&time_range=%s", limit, url.QueryEscape(timeRange))
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}

	artists := make([]Artist, 0, len(page.Items))
	for _, a := range page.Items {
		genres := a.Genres
		if genres == nil {
			genres = []string{}
		}
		artists = append(artists, Artist{
			ID:         a.ID,
			Name:       a.Name,
			Genres:     genres,
			Image:      firstImage(a.Images),
			Popularity: a.Popularity,
			Followers:  a.Followers.Total,
		})
	}

	return artists, nil
}

func (s *spotifySession) RecentlyPlayed(ctx context.Context, limit int) ([]models.Track, error) {
	if limit <= 0 {
		limit = 20
	}

	var page spotifyPage[spotifyPlayedItem]
	endpoint := fmt.Sprintf("/me/player/recently-played?limit=%d", limit)
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, item := range page.Items {
		track := convertSpotifyTrack(item.Track)
		track.PlayedAt = item.PlayedAt
		tracks = append(tracks, track)
	}

	return tracks, nil
}

// LibraryStats fetches one-item pages just for their total counts. A failing
// count degrades to zero rather than failing the whole call.
func (s *spotifySession) LibraryStats(ctx context.Context) (*LibraryStats, error) {
	stats := &LibraryStats{}

	var saved spotifyPage[json.RawMessage]
	if err := s.doRequest(ctx, "/me/tracks?limit=1", &saved); err == nil {
		stats.SavedTracks = saved.Total
	}

	var playlists spotifyPage[json.RawMessage]
	if err := s.doRequest(ctx, "/me/playlists?limit=1", &playlists); err == nil {
		stats.Playlists = playlists.Total
	}

	var albums spotifyPage[json.RawMessage]
	if err := s.doRequest(ctx, "/me/albums?limit=1", &albums); err == nil {
		stats.SavedAlbums = albums.Total
	}

	var followed struct {
		Artists struct {
			Total int `json:"total"`
		} `json:"artists"`
	}
	if err := s.doRequest(ctx, "/me/following?type=artist&limit=1", &followed); err == nil {
		stats.FollowedArtists = followed.Artists.Total
	}

	return stats, nil
}

// convertSpotifyTrack maps a provider track onto the neutral wire shape,
// joining artist names the way the frontend expects.
func convertSpotifyTrack(t spotifyTrack) models.Track {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}

	return models.Track{
		ID:         t.ID,
		Name:       t.Name,
		Artist:     strings.Join(names, ", "),
		Artists:    names,
		Album:      t.Album.Name,
		DurationMS: t.DurationMS,
		Image:      firstImage(t.Album.Images),
	}
}

func firstImage(images []spotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

func insightParams(timeRange string, limit int) (string, int) {
	switch timeRange {
	case "short_term", "medium_term", "long_term":
	default:
		timeRange = "medium_term"
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	return timeRange, limit
}
