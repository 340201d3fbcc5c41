package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazelvane/beatmigrate/internal/models"
	"github.com/hazelvane/beatmigrate/internal/services"
	"github.com/hazelvane/beatmigrate/internal/sessions"
	"github.com/hazelvane/beatmigrate/internal/shared"
)

// mockSource implements [services.SourceProvider] with a canned session.
type mockSource struct {
	connectErr error
	session    *mockSourceSession
}

func (m *mockSource) AuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + state
}

func (m *mockSource) Connect(ctx context.Context, code string) (services.SourceSession, error) {
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	return m.session, nil
}

type mockSourceSession struct {
	profile        *services.UserProfile
	playlists      []models.Playlist
	playlistTracks map[string][]models.Track
	stats          *services.LibraryStats

	playlistCalls int
	statsCalls    int
}

func (m *mockSourceSession) Profile(ctx context.Context) (*services.UserProfile, error) {
	if m.profile == nil {
		return nil, fmt.Errorf("%w: no profile", shared.ErrProviderRequest)
	}
	return m.profile, nil
}

func (m *mockSourceSession) Playlists(ctx context.Context) ([]models.Playlist, error) {
	m.playlistCalls++
	return m.playlists, nil
}

func (m *mockSourceSession) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	tracks, ok := m.playlistTracks[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return tracks, nil
}

func (m *mockSourceSession) LikedTracks(ctx context.Context, limit, offset int) (*services.LikedTracksPage, error) {
	return &services.LikedTracksPage{Tracks: []models.Track{}, Limit: limit, Offset: offset}, nil
}

func (m *mockSourceSession) TopTracks(ctx context.Context, timeRange string, limit int) ([]models.Track, error) {
	return []models.Track{}, nil
}

func (m *mockSourceSession) TopArtists(ctx context.Context, timeRange string, limit int) ([]services.Artist, error) {
	return []services.Artist{}, nil
}

func (m *mockSourceSession) RecentlyPlayed(ctx context.Context, limit int) ([]models.Track, error) {
	return []models.Track{}, nil
}

func (m *mockSourceSession) LibraryStats(ctx context.Context) (*services.LibraryStats, error) {
	m.statsCalls++
	if m.stats == nil {
		return &services.LibraryStats{}, nil
	}
	return m.stats, nil
}

// mockTargetProvider hands the registry an already-approved session.
type mockTargetProvider struct {
	session *mockTarget
}

func (m *mockTargetProvider) StartDeviceLogin(ctx context.Context) (*services.DeviceLogin, error) {
	return &services.DeviceLogin{
		DeviceCode:      "dev-1",
		UserCode:        "ABC12",
		VerificationURI: "https://link.example.com",
		ExpiresIn:       300,
		Interval:        1,
	}, nil
}

func (m *mockTargetProvider) WaitForLogin(ctx context.Context, login *services.DeviceLogin) (services.TargetSession, error) {
	return m.session, nil
}

// mockTarget implements [services.TargetSession] in memory.
type mockTarget struct {
	searchResults  map[string][]models.Track
	playlists      map[string]*models.Playlist
	playlistTracks map[string][]models.Track
	addedTracks    map[string][]string
	deleted        []string
	favorites      []string
	searchCalls    int
	nextID         int
}

func newMockTarget() *mockTarget {
	return &mockTarget{
		searchResults:  map[string][]models.Track{},
		playlists:      map[string]*models.Playlist{},
		playlistTracks: map[string][]models.Track{},
		addedTracks:    map[string][]string{},
	}
}

func (m *mockTarget) User() services.UserSummary {
	return services.UserSummary{ID: "42", Name: "Casey"}
}

func (m *mockTarget) Playlists(ctx context.Context) ([]models.Playlist, error) {
	playlists := []models.Playlist{}
	for _, p := range m.playlists {
		playlists = append(playlists, *p)
	}
	return playlists, nil
}

func (m *mockTarget) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	p, ok := m.playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return p, nil
}

func (m *mockTarget) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	tracks, ok := m.playlistTracks[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return tracks, nil
}

func (m *mockTarget) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	m.searchCalls++
	for needle, tracks := range m.searchResults {
		if strings.Contains(query, needle) {
			return tracks, nil
		}
	}
	return []models.Track{}, nil
}

func (m *mockTarget) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	m.nextID++
	id := fmt.Sprintf("pl-%d", m.nextID)
	playlist := &models.Playlist{ID: id, Name: name, Description: description}
	m.playlists[id] = playlist
	m.playlistTracks[id] = []models.Track{}
	return playlist, nil
}

func (m *mockTarget) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if _, ok := m.playlists[playlistID]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	m.addedTracks[playlistID] = append(m.addedTracks[playlistID], trackIDs...)
	for _, id := range trackIDs {
		m.playlistTracks[playlistID] = append(m.playlistTracks[playlistID], models.Track{ID: id})
	}
	return nil
}

func (m *mockTarget) DeletePlaylist(ctx context.Context, playlistID string) error {
	m.deleted = append(m.deleted, playlistID)
	delete(m.playlists, playlistID)
	return nil
}

func (m *mockTarget) AddToFavorites(ctx context.Context, trackID string) error {
	m.favorites = append(m.favorites, trackID)
	return nil
}

// testEnv bundles the running API with its fakes and an authenticated Tidal
// session id.
type testEnv struct {
	server    *httptest.Server
	source    *mockSource
	target    *mockTarget
	cfg       *shared.Config
	sessionID string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	cfg := shared.DefaultConfig()
	cfg.Limits.SearchRate = 1000

	source := &mockSource{session: &mockSourceSession{
		profile: &services.UserProfile{ID: "sp-user", DisplayName: "Casey", Email: "casey@example.com"},
	}}
	target := newMockTarget()

	logger := shared.NewLogger(io.Discard)
	registry := sessions.NewRegistry(&mockTargetProvider{session: target}, time.Minute, logger)
	t.Cleanup(registry.Close)

	api := NewAPI(cfg, db, source, registry, logger)
	server := httptest.NewServer(api.Router())
	t.Cleanup(server.Close)

	env := &testEnv{server: server, source: source, target: target, cfg: cfg}
	env.sessionID = env.authenticateTidal(t)
	return env
}

// authenticateTidal runs the device login through the HTTP surface and polls
// until the background wait completes.
func (e *testEnv) authenticateTidal(t *testing.T) string {
	t.Helper()

	status, body := e.post(t, "/tidal/login", map[string]any{})
	if status != http.StatusOK {
		t.Fatalf("failed to start login: status %d: %v", status, body)
	}
	sessionID, _ := body["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("expected session id, got %v", body)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, body = e.post(t, "/tidal/check_auth", map[string]any{"session_id": sessionID})
		if status == http.StatusOK && body["authenticated"] == true {
			return sessionID
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("session never authenticated: %v", body)
	return ""
}

func (e *testEnv) post(t *testing.T, path string, payload any) (int, map[string]any) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to post %s: %v", path, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && err != io.EOF {
		t.Fatalf("failed to decode %s response: %v", path, err)
	}
	return resp.StatusCode, body
}

// postList is post for endpoints that answer with a JSON array.
func (e *testEnv) postList(t *testing.T, path string, payload any) (int, []any) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to post %s: %v", path, err)
	}
	defer resp.Body.Close()

	var body []any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && err != io.EOF {
		t.Fatalf("failed to decode %s response: %v", path, err)
	}
	return resp.StatusCode, body
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()

	client := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("failed to get %s: %v", path, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestHealthAndStats(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/db/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["status"] != "healthy" || body["database"] != "connected" {
		t.Errorf("unexpected health body: %v", body)
	}

	resp, body = env.get(t, "/db/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if _, ok := body["users"]; !ok {
		t.Errorf("expected users count in stats: %v", body)
	}
}

func TestLoginAndCallback(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.get(t, "/login")
	authURL, _ := body["auth_url"].(string)
	if !strings.Contains(authURL, "state=") {
		t.Errorf("expected auth url with state, got %v", body)
	}

	resp, _ := env.get(t, "/callback?code=abc123")
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	location := resp.Header.Get("Location")
	if !strings.HasSuffix(location, "?code=abc123") {
		t.Errorf("expected code forwarded to frontend, got %s", location)
	}
}

func TestCurrentUser(t *testing.T) {
	env := newTestEnv(t)

	t.Run("requires code", func(t *testing.T) {
		status, body := env.post(t, "/user/me", map[string]any{})
		if status != http.StatusBadRequest || body["error"] != "Authorization code required" {
			t.Errorf("unexpected response: %d %v", status, body)
		}
	})

	t.Run("returns user with usage", func(t *testing.T) {
		status, body := env.post(t, "/user/me", map[string]any{"code": "good"})
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d: %v", status, body)
		}
		if body["display_name"] != "Casey" {
			t.Errorf("unexpected user: %v", body)
		}
		usage, _ := body["usage"].(map[string]any)
		if usage == nil || usage["migrations_limit"] == nil {
			t.Errorf("expected usage block: %v", body)
		}
	})

	t.Run("failed exchange maps to auth error", func(t *testing.T) {
		env := newTestEnv(t)
		env.source.connectErr = fmt.Errorf("%w: bad code", shared.ErrAuthFailed)

		status, _ := env.post(t, "/user/me", map[string]any{"code": "bad"})
		if status != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", status)
		}
	})
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodOptions, env.server.URL+"/migrate_tracks", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed preflight: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected preflight 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS headers on preflight")
	}
}

func TestTidalCheckAuth(t *testing.T) {
	env := newTestEnv(t)

	t.Run("unknown session is a 200 with error", func(t *testing.T) {
		status, body := env.post(t, "/tidal/check_auth", map[string]any{"session_id": "nope"})
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if body["authenticated"] != false || body["error"] != "Invalid session" {
			t.Errorf("unexpected body: %v", body)
		}
	})

	t.Run("authenticated session returns the user", func(t *testing.T) {
		status, body := env.post(t, "/tidal/check_auth", map[string]any{"session_id": env.sessionID})
		if status != http.StatusOK || body["authenticated"] != true {
			t.Fatalf("unexpected body: %d %v", status, body)
		}
		user, _ := body["user"].(map[string]any)
		if user["id"] != "42" || user["name"] != "Casey" {
			t.Errorf("unexpected user: %v", user)
		}
	})
}

func TestTidalPlaylistEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("create with tracks", func(t *testing.T) {
		status, body := env.post(t, "/tidal/create_playlist", map[string]any{
			"session_id": env.sessionID,
			"name":       "Party",
			"track_ids":  []string{"1", "2"},
		})
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d: %v", status, body)
		}
		if body["success"] != true || body["name"] != "Party" {
			t.Errorf("unexpected body: %v", body)
		}
		if body["tracks_added"] != float64(2) {
			t.Errorf("expected 2 tracks added, got %v", body["tracks_added"])
		}
	})

	t.Run("create requires name", func(t *testing.T) {
		status, body := env.post(t, "/tidal/create_playlist", map[string]any{"session_id": env.sessionID})
		if status != http.StatusBadRequest || body["error"] != "Playlist name required" {
			t.Errorf("unexpected response: %d %v", status, body)
		}
	})

	t.Run("delete", func(t *testing.T) {
		playlist, _ := env.target.CreatePlaylist(context.Background(), "Doomed", "")

		status, body := env.post(t, "/tidal/delete_playlist", map[string]any{
			"session_id":  env.sessionID,
			"playlist_id": playlist.ID,
		})
		if status != http.StatusOK || body["message"] != "Playlist deleted successfully" {
			t.Errorf("unexpected response: %d %v", status, body)
		}
	})

	t.Run("search requires query", func(t *testing.T) {
		status, body := env.post(t, "/tidal/search", map[string]any{"session_id": env.sessionID})
		if status != http.StatusBadRequest || body["error"] != "Query required" {
			t.Errorf("unexpected response: %d %v", status, body)
		}
	})

	t.Run("rejects missing session", func(t *testing.T) {
		status, body := env.post(t, "/tidal/playlists", map[string]any{"session_id": "stale"})
		if status != http.StatusBadRequest || body["error"] != "Invalid session" {
			t.Errorf("unexpected response: %d %v", status, body)
		}
	})
}

func TestTidalMergePlaylists(t *testing.T) {
	env := newTestEnv(t)

	t.Run("validations", func(t *testing.T) {
		status, body := env.post(t, "/tidal/merge_playlists", map[string]any{
			"session_id": env.sessionID, "source_playlist_id": "a",
		})
		if status != http.StatusBadRequest || body["error"] != "Both source and target playlist IDs required" {
			t.Errorf("unexpected response: %d %v", status, body)
		}

		status, body = env.post(t, "/tidal/merge_playlists", map[string]any{
			"session_id": env.sessionID, "source_playlist_id": "a", "target_playlist_id": "a",
		})
		if status != http.StatusBadRequest || body["error"] != "Cannot merge a playlist with itself" {
			t.Errorf("unexpected response: %d %v", status, body)
		}
	})

	t.Run("merges and deletes the source", func(t *testing.T) {
		src, _ := env.target.CreatePlaylist(context.Background(), "Src", "")
		dst, _ := env.target.CreatePlaylist(context.Background(), "Dst", "")
		env.target.AddTracks(context.Background(), src.ID, []string{"1", "2", "3"})
		env.target.AddTracks(context.Background(), dst.ID, []string{"2"})

		status, body := env.post(t, "/tidal/merge_playlists", map[string]any{
			"session_id":         env.sessionID,
			"source_playlist_id": src.ID,
			"target_playlist_id": dst.ID,
		})
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d: %v", status, body)
		}
		if body["message"] != "Merged 2 tracks into target playlist" {
			t.Errorf("unexpected message: %v", body["message"])
		}
		if body["tracks_added"] != float64(2) || body["tracks_skipped"] != float64(1) {
			t.Errorf("unexpected counts: %v", body)
		}
		if body["source_deleted"] != true {
			t.Errorf("expected source deleted: %v", body)
		}
	})
}

func TestMigrateTracks(t *testing.T) {
	tracks := []map[string]string{
		{"name": "Found Song", "artist": "Known"},
		{"name": "Lost Song", "artist": "Ghost"},
	}

	t.Run("validation order", func(t *testing.T) {
		env := newTestEnv(t)

		status, body := env.post(t, "/migrate_tracks", map[string]any{})
		if status != http.StatusBadRequest || body["error"] != "Spotify authorization required" {
			t.Errorf("unexpected response: %d %v", status, body)
		}

		status, body = env.post(t, "/migrate_tracks", map[string]any{"spotify_code": "c"})
		if status != http.StatusBadRequest || body["error"] != "Tidal authorization required" {
			t.Errorf("unexpected response: %d %v", status, body)
		}

		status, body = env.post(t, "/migrate_tracks", map[string]any{
			"spotify_code": "c", "tidal_session_id": env.sessionID,
		})
		if status != http.StatusBadRequest || body["error"] != "No tracks provided" {
			t.Errorf("unexpected response: %d %v", status, body)
		}
	})

	t.Run("migrates into a new playlist", func(t *testing.T) {
		env := newTestEnv(t)
		env.target.searchResults["Found Song"] = []models.Track{{ID: "900", Name: "Found Song"}}

		status, body := env.post(t, "/migrate_tracks", map[string]any{
			"spotify_code":     "c",
			"tidal_session_id": env.sessionID,
			"tracks":           tracks,
			"playlist_name":    "Mix",
		})
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d: %v", status, body)
		}
		if body["success"] != true || body["playlist_name"] != "Mix" {
			t.Errorf("unexpected body: %v", body)
		}
		if body["total_tracks"] != float64(2) || body["migrated"] != float64(1) || body["not_found"] != float64(1) {
			t.Errorf("unexpected counts: %v", body)
		}
		notFound, _ := body["not_found_tracks"].([]any)
		if len(notFound) != 1 {
			t.Fatalf("expected 1 unmatched track, got %v", body["not_found_tracks"])
		}
		if body["playlist_id"] == nil {
			t.Error("expected playlist id for new playlist")
		}

		// The attempt lands in the user's history.
		status, history := env.postList(t, "/user/history", map[string]any{"code": "c"})
		if status != http.StatusOK {
			t.Fatalf("expected 200 history, got %d", status)
		}
		if len(history) != 1 {
			t.Errorf("expected 1 history entry, got %v", history)
		}
	})

	t.Run("favorites destination has no playlist id", func(t *testing.T) {
		env := newTestEnv(t)
		env.target.searchResults["Found Song"] = []models.Track{{ID: "900"}}

		status, body := env.post(t, "/migrate_tracks", map[string]any{
			"spotify_code":     "c",
			"tidal_session_id": env.sessionID,
			"tracks":           tracks,
			"add_to_favorites": true,
		})
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d: %v", status, body)
		}
		if body["playlist_id"] != nil {
			t.Errorf("expected null playlist id, got %v", body["playlist_id"])
		}
		if body["playlist_name"] != "Favorites" {
			t.Errorf("unexpected playlist name: %v", body["playlist_name"])
		}
		if len(env.target.favorites) != 1 {
			t.Errorf("expected 1 favorite added, got %v", env.target.favorites)
		}
	})

	t.Run("user lookup failure never blocks the migration", func(t *testing.T) {
		env := newTestEnv(t)
		env.source.connectErr = fmt.Errorf("%w: expired", shared.ErrAuthFailed)
		env.target.searchResults["Found Song"] = []models.Track{{ID: "900"}}

		status, body := env.post(t, "/migrate_tracks", map[string]any{
			"spotify_code":     "c",
			"tidal_session_id": env.sessionID,
			"tracks":           tracks,
		})
		if status != http.StatusOK || body["success"] != true {
			t.Errorf("unexpected response: %d %v", status, body)
		}
	})

	t.Run("daily limit returns 429 before any provider call", func(t *testing.T) {
		env := newTestEnv(t)
		env.cfg.Limits.MigrationsPerDay = 1
		env.target.searchResults["Found Song"] = []models.Track{{ID: "900"}}

		status, _ := env.post(t, "/migrate_tracks", map[string]any{
			"spotify_code": "c", "tidal_session_id": env.sessionID, "tracks": tracks,
		})
		if status != http.StatusOK {
			t.Fatalf("expected first migration to pass, got %d", status)
		}

		searchesBefore := env.target.searchCalls
		status, body := env.post(t, "/migrate_tracks", map[string]any{
			"spotify_code": "c", "tidal_session_id": env.sessionID, "tracks": tracks,
		})
		if status != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d: %v", status, body)
		}
		if body["error"] != "Daily migration limit reached" {
			t.Errorf("unexpected error: %v", body)
		}
		if body["limit"] != float64(1) {
			t.Errorf("expected limit echoed, got %v", body["limit"])
		}
		if env.target.searchCalls != searchesBefore {
			t.Errorf("expected no provider calls after limit, got %d new searches",
				env.target.searchCalls-searchesBefore)
		}
	})
}

func TestMigratePlaylist(t *testing.T) {
	sourceTracks := []models.Track{
		{ID: "s1", Name: "Collab", Artist: "Main, Feature", Artists: []string{"Main", "Feature"}},
		{ID: "s2", Name: "Gone", Artist: "Nobody", Artists: []string{"Nobody"}},
	}

	t.Run("requires playlist id", func(t *testing.T) {
		env := newTestEnv(t)
		status, body := env.post(t, "/migrate_playlist", map[string]any{
			"spotify_code": "c", "tidal_session_id": env.sessionID,
		})
		if status != http.StatusBadRequest || body["error"] != "Playlist ID required" {
			t.Errorf("unexpected response: %d %v", status, body)
		}
	})

	t.Run("requires a working source login", func(t *testing.T) {
		env := newTestEnv(t)
		env.source.connectErr = fmt.Errorf("%w: expired", shared.ErrAuthFailed)

		status, _ := env.post(t, "/migrate_playlist", map[string]any{
			"spotify_code": "c", "tidal_session_id": env.sessionID, "playlist_id": "src",
		})
		if status != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", status)
		}
	})

	t.Run("searches on the primary artist only", func(t *testing.T) {
		env := newTestEnv(t)
		env.source.session.playlistTracks = map[string][]models.Track{"src": sourceTracks}
		// Matches "Collab Main", never "Collab Main, Feature".
		env.target.searchResults["Collab Main"] = []models.Track{{ID: "700"}}

		status, body := env.post(t, "/migrate_playlist", map[string]any{
			"spotify_code":     "c",
			"tidal_session_id": env.sessionID,
			"playlist_id":      "src",
		})
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d: %v", status, body)
		}
		if body["playlist_name"] != "Migrated Playlist" {
			t.Errorf("expected default name, got %v", body["playlist_name"])
		}
		if body["migrated"] != float64(1) || body["not_found"] != float64(1) {
			t.Errorf("unexpected counts: %v", body)
		}
	})
}

func TestSpotifyProxies(t *testing.T) {
	t.Run("fetch playlists is cached per user", func(t *testing.T) {
		env := newTestEnv(t)
		env.source.session.playlists = []models.Playlist{{ID: "pl-1", Name: "Road Trip"}}

		for i := 0; i < 2; i++ {
			status, _ := env.postList(t, "/fetch_playlists", map[string]any{"code": "c"})
			if status != http.StatusOK {
				t.Fatalf("expected 200, got %d", status)
			}
		}
		if env.source.session.playlistCalls != 1 {
			t.Errorf("expected second read served from cache, provider called %d times",
				env.source.session.playlistCalls)
		}
	})

	t.Run("library stats read through the cache", func(t *testing.T) {
		env := newTestEnv(t)
		env.source.session.stats = &services.LibraryStats{SavedTracks: 12}

		status, body := env.post(t, "/library_stats", map[string]any{"code": "c"})
		if status != http.StatusOK || body["saved_tracks"] != float64(12) {
			t.Fatalf("unexpected response: %d %v", status, body)
		}

		env.post(t, "/library_stats", map[string]any{"code": "c"})
		if env.source.session.statsCalls != 1 {
			t.Errorf("expected cached second read, provider called %d times", env.source.session.statsCalls)
		}
	})

	t.Run("playlist tracks require a playlist id", func(t *testing.T) {
		env := newTestEnv(t)
		status, _ := env.post(t, "/playlist_tracks", map[string]any{"code": "c"})
		if status != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", status)
		}
	})
}
