package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazelvane/beatmigrate/internal/shared"
)

// newTidalSession wires a session straight to a fake server, skipping the
// device grant.
func newTidalSession(t *testing.T, handler http.Handler) *tidalSession {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &tidalSession{
		baseURL:     server.URL,
		httpClient:  server.Client(),
		userID:      7,
		userName:    "Casey",
		countryCode: "US",
	}
}

func TestTidalDeviceLogin(t *testing.T) {
	t.Run("maps authorization response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"device_code":      "dev-1",
				"user_code":        "ABC12",
				"verification_uri": "link.tidal.com",
				"expires_in":       300,
				"interval":         2,
			})
		}))
		defer server.Close()

		svc := NewTidalService(shared.TidalConfig{ClientID: "id", ClientSecret: "secret"},
			WithTidalAuthURLs(server.URL, server.URL+"/token"))

		login, err := svc.StartDeviceLogin(context.Background())
		if err != nil {
			t.Fatalf("failed to start device login: %v", err)
		}
		if login.DeviceCode != "dev-1" || login.UserCode != "ABC12" {
			t.Errorf("unexpected login: %+v", login)
		}
		if login.VerificationURI != "https://link.tidal.com" {
			t.Errorf("expected https scheme prepended, got %s", login.VerificationURI)
		}
		if login.ExpiresIn <= 0 || login.Interval <= 0 {
			t.Errorf("expected positive timing fields: %+v", login)
		}
	})

	t.Run("surfaces authorization errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		svc := NewTidalService(shared.TidalConfig{ClientID: "id"},
			WithTidalAuthURLs(server.URL, server.URL+"/token"))

		if _, err := svc.StartDeviceLogin(context.Background()); err == nil {
			t.Fatal("expected error for failed authorization")
		}
	})
}

func TestTidalWaitForLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/token"):
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "tok-1",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		case strings.HasPrefix(r.URL.Path, "/sessions"):
			json.NewEncoder(w).Encode(map[string]any{
				"sessionId":   "sess-1",
				"userId":      42,
				"countryCode": "NO",
			})
		case strings.HasPrefix(r.URL.Path, "/users/42"):
			json.NewEncoder(w).Encode(map[string]any{
				"id":        42,
				"firstName": "Casey",
				"lastName":  "Quinn",
			})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	svc := NewTidalService(shared.TidalConfig{ClientID: "id", ClientSecret: "secret"},
		WithTidalBaseURL(server.URL),
		WithTidalAuthURLs(server.URL+"/device", server.URL+"/token"))

	session, err := svc.WaitForLogin(context.Background(), &DeviceLogin{
		DeviceCode: "dev-1",
		ExpiresIn:  60,
		Interval:   1,
	})
	if err != nil {
		t.Fatalf("failed to wait for login: %v", err)
	}

	user := session.User()
	if user.ID != "42" {
		t.Errorf("expected user id 42, got %s", user.ID)
	}
	if user.Name != "Casey Quinn" {
		t.Errorf("expected name from profile, got %s", user.Name)
	}
}

func TestTidalSearchTracks(t *testing.T) {
	session := newTidalSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("expected default limit 5, got %s", got)
		}
		if got := r.URL.Query().Get("countryCode"); got != "US" {
			t.Errorf("expected country code on request, got %s", got)
		}
		if got := r.URL.Query().Get("query"); got != "song artist" {
			t.Errorf("unexpected query: %s", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"id": 123, "title": "Song", "duration": 200,
					"artist": map[string]any{"id": 1, "name": "Artist"},
					"album":  map[string]any{"title": "Album", "cover": "ab-cd-ef"}},
				{"id": 456, "title": "Bare", "duration": 90},
			},
			"totalNumberOfItems": 2,
		})
	}))

	tracks, err := session.SearchTracks(context.Background(), "song artist", 0)
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}
	if tracks[0].ID != "123" {
		t.Errorf("expected numeric id as string, got %s", tracks[0].ID)
	}
	if tracks[0].DurationMS != 200000 {
		t.Errorf("expected duration in ms, got %d", tracks[0].DurationMS)
	}
	if !strings.Contains(tracks[0].Image, "ab/cd/ef") {
		t.Errorf("expected cover id in image path, got %s", tracks[0].Image)
	}
	if tracks[1].Artist != "Unknown" || tracks[1].Album != "Unknown" {
		t.Errorf("expected unknown fallbacks, got %+v", tracks[1])
	}
}

func TestTidalPlaylists(t *testing.T) {
	var offsets []string
	session := newTidalSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/users/7/playlists") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		offsets = append(offsets, r.URL.Query().Get("offset"))

		items := []map[string]any{
			{"uuid": "pl-" + r.URL.Query().Get("offset"), "title": "Mix", "numberOfTracks": 4},
		}
		itemsJSON, _ := json.Marshal(items)
		fmt.Fprintf(w, `{"items": %s, "totalNumberOfItems": 51}`, itemsJSON)
	}))

	playlists, err := session.Playlists(context.Background())
	if err != nil {
		t.Fatalf("failed to fetch playlists: %v", err)
	}
	if len(offsets) != 2 || offsets[1] != "50" {
		t.Errorf("expected two pages ending at offset 50, got %v", offsets)
	}
	if len(playlists) != 2 {
		t.Errorf("expected 2 playlists, got %d", len(playlists))
	}
	if playlists[0].ID != "pl-0" || playlists[0].TracksTotal != 4 {
		t.Errorf("unexpected playlist: %+v", playlists[0])
	}
}

func TestTidalCreatePlaylist(t *testing.T) {
	session := newTidalSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, "/users/7/playlists") {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if r.PostForm.Get("title") != "New Mix" || r.PostForm.Get("description") != "From elsewhere" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"uuid": "pl-new", "title": "New Mix", "description": "From elsewhere",
		})
	}))

	playlist, err := session.CreatePlaylist(context.Background(), "New Mix", "From elsewhere")
	if err != nil {
		t.Fatalf("failed to create playlist: %v", err)
	}
	if playlist.ID != "pl-new" || playlist.Name != "New Mix" {
		t.Errorf("unexpected playlist: %+v", playlist)
	}
}

func TestTidalAddTracks(t *testing.T) {
	t.Run("carries etag from playlist fetch", func(t *testing.T) {
		var addRequest *http.Request
		var addForm string
		session := newTidalSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/playlists/pl-1"):
				w.Header().Set("ETag", "etag-9")
				fmt.Fprint(w, `{"uuid": "pl-1"}`)
			case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/playlists/pl-1/items"):
				addRequest = r
				if err := r.ParseForm(); err == nil {
					addForm = r.PostForm.Get("trackIds")
				}
				fmt.Fprint(w, `{}`)
			default:
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
		}))

		if err := session.AddTracks(context.Background(), "pl-1", []string{"1", "2", "3"}); err != nil {
			t.Fatalf("failed to add tracks: %v", err)
		}
		if addRequest == nil {
			t.Fatal("expected add request")
		}
		if got := addRequest.Header.Get("If-None-Match"); got != "etag-9" {
			t.Errorf("expected etag header, got %q", got)
		}
		if addForm != "1,2,3" {
			t.Errorf("expected comma joined ids, got %q", addForm)
		}
	})

	t.Run("no tracks means no request", func(t *testing.T) {
		session := newTidalSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}))

		if err := session.AddTracks(context.Background(), "pl-1", nil); err != nil {
			t.Fatalf("expected no-op, got %v", err)
		}
	})
}

func TestTidalDeletePlaylist(t *testing.T) {
	var deleted bool
	session := newTidalSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("ETag", "etag-1")
			fmt.Fprint(w, `{"uuid": "pl-1"}`)
		case http.MethodDelete:
			if got := r.Header.Get("If-None-Match"); got != "etag-1" {
				t.Errorf("expected etag header, got %q", got)
			}
			deleted = true
			w.WriteHeader(http.StatusOK)
		}
	}))

	if err := session.DeletePlaylist(context.Background(), "pl-1"); err != nil {
		t.Fatalf("failed to delete playlist: %v", err)
	}
	if !deleted {
		t.Error("expected delete request")
	}
}

func TestTidalAddToFavorites(t *testing.T) {
	session := newTidalSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, "/users/7/favorites/tracks") {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("trackIds"); got != "99" {
			t.Errorf("unexpected form value: %s", got)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := session.AddToFavorites(context.Background(), "99"); err != nil {
		t.Fatalf("failed to add favorite: %v", err)
	}
}

func TestTidalErrorMessages(t *testing.T) {
	session := newTidalSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"userMessage": "Playlist not found"}`)
	}))

	_, err := session.Playlist(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Playlist not found") {
		t.Errorf("expected provider message in error, got %v", err)
	}
}
