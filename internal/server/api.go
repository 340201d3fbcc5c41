package server

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/hazelvane/beatmigrate/internal/models"
	"github.com/hazelvane/beatmigrate/internal/quota"
	"github.com/hazelvane/beatmigrate/internal/repositories"
	"github.com/hazelvane/beatmigrate/internal/services"
	"github.com/hazelvane/beatmigrate/internal/sessions"
	"github.com/hazelvane/beatmigrate/internal/shared"
	"github.com/hazelvane/beatmigrate/internal/tasks"
)

// API holds the dependencies behind every endpoint and registers the routes.
type API struct {
	cfg      *shared.Config
	logger   *log.Logger
	db       *sql.DB
	source   services.SourceProvider
	registry *sessions.Registry
	gate     *quota.Gate
	engine   *tasks.Engine
	users    *repositories.UserRepository
	ledger   *repositories.MigrationRepository
	activity *repositories.ActivityRepository
	cache    *repositories.CacheRepository
}

// NewAPI wires the API from its collaborators.
func NewAPI(cfg *shared.Config, db *sql.DB, source services.SourceProvider, registry *sessions.Registry, logger *log.Logger) *API {
	return &API{
		cfg:      cfg,
		logger:   logger.With("component", "api"),
		db:       db,
		source:   source,
		registry: registry,
		gate:     quota.NewGate(db, logger),
		engine:   tasks.NewEngine(cfg.Limits.SearchRate, logger),
		users:    repositories.NewUserRepository(db),
		ledger:   repositories.NewMigrationRepository(db),
		activity: repositories.NewActivityRepository(db),
		cache:    repositories.NewCacheRepository(db),
	}
}

// Router builds the service router with logging and CORS applied to every route.
func (a *API) Router() *BasicRouter {
	router := NewBasicRouter()
	router.Use(RequestLogger(a.logger), CORS(a.cfg.Server.FrontendURL))

	router.Handle(http.MethodGet, "/db/health", http.HandlerFunc(a.handleHealth))
	router.Handle(http.MethodGet, "/db/stats", http.HandlerFunc(a.handleStats))

	router.Handle(http.MethodGet, "/login", http.HandlerFunc(a.handleLogin))
	router.Handle(http.MethodGet, "/callback", http.HandlerFunc(a.handleCallback))
	router.Handle(http.MethodPost, "/user/me", http.HandlerFunc(a.handleCurrentUser))
	router.Handle(http.MethodPost, "/user/history", http.HandlerFunc(a.handleUserHistory))

	router.Handle(http.MethodPost, "/fetch_playlists", http.HandlerFunc(a.handleFetchPlaylists))
	router.Handle(http.MethodPost, "/playlist_tracks", http.HandlerFunc(a.handlePlaylistTracks))
	router.Handle(http.MethodPost, "/liked_songs", http.HandlerFunc(a.handleLikedSongs))
	router.Handle(http.MethodPost, "/user_profile", http.HandlerFunc(a.handleUserProfile))
	router.Handle(http.MethodPost, "/top_tracks", http.HandlerFunc(a.handleTopTracks))
	router.Handle(http.MethodPost, "/top_artists", http.HandlerFunc(a.handleTopArtists))
	router.Handle(http.MethodPost, "/recently_played", http.HandlerFunc(a.handleRecentlyPlayed))
	router.Handle(http.MethodPost, "/library_stats", http.HandlerFunc(a.handleLibraryStats))

	router.Handle(http.MethodPost, "/tidal/login", http.HandlerFunc(a.handleTidalLogin))
	router.Handle(http.MethodPost, "/tidal/check_auth", http.HandlerFunc(a.handleTidalCheckAuth))
	router.Handle(http.MethodPost, "/tidal/playlists", http.HandlerFunc(a.handleTidalPlaylists))
	router.Handle(http.MethodPost, "/tidal/playlist_tracks", http.HandlerFunc(a.handleTidalPlaylistTracks))
	router.Handle(http.MethodPost, "/tidal/delete_playlist", http.HandlerFunc(a.handleTidalDeletePlaylist))
	router.Handle(http.MethodPost, "/tidal/merge_playlists", http.HandlerFunc(a.handleTidalMergePlaylists))
	router.Handle(http.MethodPost, "/tidal/search", http.HandlerFunc(a.handleTidalSearch))
	router.Handle(http.MethodPost, "/tidal/create_playlist", http.HandlerFunc(a.handleTidalCreatePlaylist))

	router.Handle(http.MethodPost, "/migrate_tracks", http.HandlerFunc(a.handleMigrateTracks))
	router.Handle(http.MethodPost, "/migrate_playlist", http.HandlerFunc(a.handleMigratePlaylist))

	return router
}

// identify exchanges a Spotify authorization code and resolves the internal
// user record for it, creating the user on first login.
func (a *API) identify(ctx context.Context, code string) (*models.User, services.SourceSession, error) {
	session, err := a.source.Connect(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	profile, err := session.Profile(ctx)
	if err != nil {
		return nil, nil, err
	}

	displayName := profile.DisplayName
	if displayName == "" {
		displayName = profile.ID
	}

	user, isNew, err := a.users.GetOrCreate("spotify", profile.ID, profile.Email, displayName, profile.Image)
	if err != nil {
		return nil, nil, err
	}

	if isNew {
		if err := a.activity.Log(user.ID(), "signup", map[string]any{"provider": "spotify"}, true); err != nil {
			a.logger.Warn("failed to log signup", "error", err)
		}
	}

	return user, session, nil
}
