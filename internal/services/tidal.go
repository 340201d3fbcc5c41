// Tidal API implementation of [TargetProvider] and [TargetSession]
//
// Login uses the OAuth2 device authorization grant: the backend shows a
// verification URL + user code and polls the token endpoint while the user
// approves on another device.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hazelvane/beatmigrate/internal/models"
	"github.com/hazelvane/beatmigrate/internal/shared"
	"golang.org/x/oauth2"
)

const (
	tidalDeviceAuthURL = "https://auth.tidal.com/v1/oauth2/device_authorization"
	tidalTokenURL      = "https://auth.tidal.com/v1/oauth2/token"
	tidalBaseURL       = "https://api.tidal.com/v1"
	tidalImageURL      = "https://resources.tidal.com/images"

	tidalScope = "r_usr w_usr"
)

type tidalArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type tidalAlbum struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Cover string `json:"cover"`
}

type tidalTrack struct {
	ID       int64       `json:"id"`
	Title    string      `json:"title"`
	Duration int         `json:"duration"` // seconds
	Artist   tidalArtist `json:"artist"`
	Album    tidalAlbum  `json:"album"`
}

type tidalPlaylist struct {
	UUID          string `json:"uuid"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	NumberOfTracks int   `json:"numberOfTracks"`
	SquareImage   string `json:"squareImage"`
	Image         string `json:"image"`
}

type tidalPage[T any] struct {
	Items              []T `json:"items"`
	TotalNumberOfItems int `json:"totalNumberOfItems"`
	Limit              int `json:"limit"`
	Offset             int `json:"offset"`
}

type tidalSessionInfo struct {
	SessionID   string `json:"sessionId"`
	UserID      int64  `json:"userId"`
	CountryCode string `json:"countryCode"`
}

type tidalUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// TidalService implements [TargetProvider] over the device authorization grant.
type TidalService struct {
	config  *oauth2.Config
	baseURL string
}

// TidalOpt overrides service defaults, used by tests to point at a fake server.
type TidalOpt func(*TidalService)

// WithTidalBaseURL overrides the API base URL.
func WithTidalBaseURL(baseURL string) TidalOpt {
	return func(t *TidalService) { t.baseURL = baseURL }
}

// WithTidalAuthURLs overrides the device-authorization and token endpoints.
func WithTidalAuthURLs(deviceAuthURL, tokenURL string) TidalOpt {
	return func(t *TidalService) {
		t.config.Endpoint.DeviceAuthURL = deviceAuthURL
		t.config.Endpoint.TokenURL = tokenURL
	}
}

// NewTidalService creates a Tidal provider from application credentials.
func NewTidalService(cfg shared.TidalConfig, opts ...TidalOpt) *TidalService {
	svc := &TidalService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       strings.Fields(tidalScope),
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: tidalDeviceAuthURL,
				TokenURL:      tidalTokenURL,
			},
		},
		baseURL: tidalBaseURL,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

// StartDeviceLogin requests a device authorization from the provider.
func (t *TidalService) StartDeviceLogin(ctx context.Context) (*DeviceLogin, error) {
	resp, err := t.config.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: device authorization: %v", shared.ErrProviderRequest, err)
	}

	verificationURI := resp.VerificationURIComplete
	if verificationURI == "" {
		verificationURI = resp.VerificationURI
	}
	if verificationURI != "" && !strings.HasPrefix(verificationURI, "http") {
		verificationURI = "https://" + verificationURI
	}

	expiresIn := int(time.Until(resp.Expiry).Seconds())
	if expiresIn <= 0 {
		expiresIn = 300
	}

	interval := int(resp.Interval)
	if interval <= 0 {
		interval = 2
	}

	return &DeviceLogin{
		DeviceCode:      resp.DeviceCode,
		UserCode:        resp.UserCode,
		VerificationURI: verificationURI,
		ExpiresIn:       expiresIn,
		Interval:        interval,
	}, nil
}

// WaitForLogin polls the token endpoint until the user approves or the
// authorization expires, then resolves the session's user and country.
func (t *TidalService) WaitForLogin(ctx context.Context, login *DeviceLogin) (TargetSession, error) {
	auth := &oauth2.DeviceAuthResponse{
		DeviceCode: login.DeviceCode,
		Expiry:     time.Now().Add(time.Duration(login.ExpiresIn) * time.Second),
		Interval:   int64(login.Interval),
	}

	token, err := t.config.DeviceAccessToken(ctx, auth)
	if err != nil {
		return nil, fmt.Errorf("%w: device token: %v", shared.ErrAuthFailed, err)
	}

	// The session outlives the polling context.
	session := &tidalSession{
		baseURL:    t.baseURL,
		httpClient: t.config.Client(context.Background(), token),
	}

	var info tidalSessionInfo
	if err := session.doRequest(ctx, http.MethodGet, "/sessions", nil, "", &info); err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	session.userID = info.UserID
	session.countryCode = info.CountryCode
	if session.countryCode == "" {
		session.countryCode = "US"
	}

	var user tidalUser
	endpoint := fmt.Sprintf("/users/%d", info.UserID)
	if err := session.doRequest(ctx, http.MethodGet, endpoint, nil, "", &user); err == nil {
		session.userName = user.Username
		if session.userName == "" {
			session.userName = strings.TrimSpace(user.FirstName + " " + user.LastName)
		}
	}
	if session.userName == "" {
		session.userName = strconv.FormatInt(info.UserID, 10)
	}

	return session, nil
}

// tidalSession implements [TargetSession].
type tidalSession struct {
	baseURL     string
	httpClient  *http.Client
	userID      int64
	userName    string
	countryCode string
}

func (s *tidalSession) User() UserSummary {
	return UserSummary{ID: strconv.FormatInt(s.userID, 10), Name: s.userName}
}

// doRequest performs one API call. Form values are sent urlencoded; etag, when
// present, rides in If-None-Match as the playlist write endpoints require.
func (s *tidalSession) doRequest(ctx context.Context, method, endpoint string, form url.Values, etag string, result any) error {
	apiURL := s.baseURL + endpoint
	if s.countryCode != "" {
		sep := "?"
		if strings.Contains(apiURL, "?") {
			sep = "&"
		}
		apiURL += sep + "countryCode=" + url.QueryEscape(s.countryCode)
	}

	var req *http.Request
	var err error
	if form != nil {
		req, err = http.NewRequestWithContext(ctx, method, apiURL, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, apiURL, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			UserMessage string `json:"userMessage"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.UserMessage != "" {
			return fmt.Errorf("%w: tidal status %d: %s", shared.ErrProviderRequest, resp.StatusCode, errResp.UserMessage)
		}
		return fmt.Errorf("%w: tidal status %d", shared.ErrProviderRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// playlistEtag fetches a playlist solely for the ETag the write endpoints demand.
func (s *tidalSession) playlistEtag(ctx context.Context, playlistID string) (string, error) {
	apiURL := fmt.Sprintf("%s/playlists/%s?countryCode=%s", s.baseURL, url.PathEscape(playlistID), url.QueryEscape(s.countryCode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: tidal status %d", shared.ErrProviderRequest, resp.StatusCode)
	}

	return resp.Header.Get("ETag"), nil
}

func (s *tidalSession) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	limit, offset := 50, 0

	for {
		var page tidalPage[tidalPlaylist]
		endpoint := fmt.Sprintf("/users/%d/playlists?limit=%d&offset=%d", s.userID, limit, offset)
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, "", &page); err != nil {
			return nil, err
		}

		for _, p := range page.Items {
			playlists = append(playlists, convertTidalPlaylist(p))
		}

		offset += limit
		if offset >= page.TotalNumberOfItems || len(page.Items) == 0 {
			break
		}
	}

	return playlists, nil
}

func (s *tidalSession) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	var p tidalPlaylist
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, "", &p); err != nil {
		return nil, err
	}

	playlist := convertTidalPlaylist(p)
	return &playlist, nil
}

func (s *tidalSession) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	var tracks []models.Track
	limit, offset := 100, 0

	for {
		var page tidalPage[tidalTrack]
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), limit, offset)
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, "", &page); err != nil {
			return nil, err
		}

		for _, t := range page.Items {
			tracks = append(tracks, convertTidalTrack(t))
		}

		offset += limit
		if offset >= page.TotalNumberOfItems || len(page.Items) == 0 {
			break
		}
	}

	return tracks, nil
}

func (s *tidalSession) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if limit <= 0 {
		limit = 5
	}

	var page tidalPage[tidalTrack]
	endpoint := fmt.Sprintf("/search/tracks?query=%s&limit=%d", url.QueryEscape(query), limit)
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, "", &page); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, t := range page.Items {
		tracks = append(tracks, convertTidalTrack(t))
	}

	return tracks, nil
}

func (s *tidalSession) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	form := url.Values{}
	form.Set("title", name)
	form.Set("description", description)

	var p tidalPlaylist
	endpoint := fmt.Sprintf("/users/%d/playlists", s.userID)
	if err := s.doRequest(ctx, http.MethodPost, endpoint, form, "", &p); err != nil {
		return nil, err
	}

	playlist := convertTidalPlaylist(p)
	return &playlist, nil
}

func (s *tidalSession) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	etag, err := s.playlistEtag(ctx, playlistID)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("trackIds", strings.Join(trackIDs, ","))
	form.Set("onArtifactNotFound", "FAIL")
	form.Set("onDupes", "SKIP")

	endpoint := fmt.Sprintf("/playlists/%s/items", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodPost, endpoint, form, etag, nil)
}

func (s *tidalSession) DeletePlaylist(ctx context.Context, playlistID string) error {
	etag, err := s.playlistEtag(ctx, playlistID)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodDelete, endpoint, nil, etag, nil)
}

func (s *tidalSession) AddToFavorites(ctx context.Context, trackID string) error {
	form := url.Values{}
	form.Set("trackIds", trackID)

	endpoint := fmt.Sprintf("/users/%d/favorites/tracks", s.userID)
	return s.doRequest(ctx, http.MethodPost, endpoint, form, "", nil)
}

func convertTidalPlaylist(p tidalPlaylist) models.Playlist {
	return models.Playlist{
		ID:          p.UUID,
		Name:        p.Title,
		Description: p.Description,
		TracksTotal: p.NumberOfTracks,
		Image:       tidalCoverURL(p.SquareImage, p.Image),
	}
}

func convertTidalTrack(t tidalTrack) models.Track {
	track := models.Track{
		ID:         strconv.FormatInt(t.ID, 10),
		Name:       t.Title,
		Artist:     t.Artist.Name,
		Album:      t.Album.Title,
		DurationMS: t.Duration * 1000,
		Image:      tidalCoverURL(t.Album.Cover),
	}

	if track.Artist == "" {
		track.Artist = "Unknown"
	}
	if track.Album == "" {
		track.Album = "Unknown"
	}

	return track
}

// tidalCoverURL builds a resources image URL from the first non-empty cover id.
func tidalCoverURL(coverIDs ...string) string {
	for _, id := range coverIDs {
		if id == "" {
			continue
		}
		return fmt.Sprintf("%s/%s/320x320.jpg", tidalImageURL, strings.ReplaceAll(id, "-", "/"))
	}
	return ""
}
