package server

import (
	"net/http"

	"github.com/hazelvane/beatmigrate/internal/models"
	"github.com/hazelvane/beatmigrate/internal/quota"
	"github.com/hazelvane/beatmigrate/internal/tasks"
)

// nullable maps an absent ID to JSON null rather than an empty string.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// capRefs bounds the reported unmatched tracks to the ledger's cap.
func capRefs(refs []models.TrackRef) []models.TrackRef {
	if refs == nil {
		return []models.TrackRef{}
	}
	if len(refs) > models.NotFoundCap {
		return refs[:models.NotFoundCap]
	}
	return refs
}

// checkQuota reserves one migration attempt. Writes the 429 response and
// returns false when the user is over the daily limit.
func (a *API) checkQuota(w http.ResponseWriter, userID string) bool {
	allowed, _, err := a.gate.CheckAndReserve(userID, quota.ActionMigration, a.cfg.Limits.MigrationsPerDay)
	if err != nil {
		// Quota accounting failures never block a migration.
		a.logger.Warn("quota check failed", "user_id", userID, "error", err)
		return true
	}
	if !allowed {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": "Daily migration limit reached",
			"limit": a.cfg.Limits.MigrationsPerDay,
		})
		return false
	}
	return true
}

// recordMigration writes the ledger entry and usage counters for a finished
// attempt. Best effort; the outcome already returned to the caller wins.
func (a *API) recordMigration(userID string, outcome *tasks.Outcome, sourcePlaylistID, sourcePlaylistName string) {
	if userID == "" {
		return
	}

	record := models.NewMigrationRecord(0, userID)
	record.SetSourcePlaylistID(sourcePlaylistID)
	record.SetSourcePlaylistName(sourcePlaylistName)
	tasks.CompleteRecord(record, outcome)

	if err := a.ledger.Create(record); err != nil {
		a.logger.Error("failed to record migration", "user_id", userID, "error", err)
	}

	if outcome.Status == models.MigrationCompleted {
		if err := a.gate.Commit(userID, quota.ActionMigration, outcome.TotalRequested); err != nil {
			a.logger.Warn("failed to commit usage", "user_id", userID, "error", err)
		}
	}

	if err := a.activity.Log(userID, "migration", map[string]any{
		"type":      outcome.MigrationType,
		"total":     outcome.TotalRequested,
		"migrated":  outcome.Migrated,
		"not_found": len(outcome.NotFound),
	}, outcome.Status == models.MigrationCompleted); err != nil {
		a.logger.Warn("failed to log migration activity", "user_id", userID, "error", err)
	}
}

func (a *API) handleMigrateTracks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SpotifyCode      string            `json:"spotify_code"`
		TidalSessionID   string            `json:"tidal_session_id"`
		Tracks           []models.TrackRef `json:"tracks"`
		PlaylistName     string            `json:"playlist_name"`
		TargetPlaylistID string            `json:"target_playlist_id"`
		AddToFavorites   bool              `json:"add_to_favorites"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if req.SpotifyCode == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Spotify authorization required")
		return
	}

	target, err := a.registry.Resolve(req.TidalSessionID)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Tidal authorization required")
		return
	}

	if len(req.Tracks) == 0 {
		writeErrorMessage(w, http.StatusBadRequest, "No tracks provided")
		return
	}

	// User resolution is best effort: a failed lookup skips tracking but
	// never blocks the migration itself.
	var userID string
	if user, _, err := a.identify(r.Context(), req.SpotifyCode); err != nil {
		a.logger.Warn("failed to resolve user for migration", "error", err)
	} else {
		userID = user.ID()
		if !a.checkQuota(w, userID) {
			return
		}
	}

	dest := tasks.DestinationFromRequest(req.AddToFavorites, req.TargetPlaylistID, req.PlaylistName)

	outcome, err := a.engine.Migrate(r.Context(), target, req.Tracks, dest, nil)
	a.recordMigration(userID, outcome, "", "")
	if err != nil {
		writeErrorMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"playlist_id":      nullable(outcome.PlaylistID),
		"playlist_name":    outcome.PlaylistName,
		"total_tracks":     outcome.TotalRequested,
		"migrated":         outcome.Migrated,
		"not_found":        len(outcome.NotFound),
		"not_found_tracks": capRefs(outcome.NotFound),
	})
}

func (a *API) handleMigratePlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SpotifyCode    string `json:"spotify_code"`
		TidalSessionID string `json:"tidal_session_id"`
		PlaylistID     string `json:"playlist_id"`
		PlaylistName   string `json:"playlist_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if req.SpotifyCode == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Spotify authorization required")
		return
	}

	target, err := a.registry.Resolve(req.TidalSessionID)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Tidal authorization required")
		return
	}

	if req.PlaylistID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Playlist ID required")
		return
	}

	user, source, err := a.identify(r.Context(), req.SpotifyCode)
	if err != nil {
		writeError(w, err)
		return
	}
	if !a.checkQuota(w, user.ID()) {
		return
	}

	sourceTracks, err := source.PlaylistTracks(r.Context(), req.PlaylistID)
	if err != nil {
		writeError(w, err)
		return
	}

	refs := make([]models.TrackRef, 0, len(sourceTracks))
	for _, track := range sourceTracks {
		ref := track.Ref()
		// Match on the primary artist only; full credit lists drown out
		// search relevance.
		if len(track.Artists) > 0 {
			ref.Artist = track.Artists[0]
		}
		refs = append(refs, ref)
	}

	name := req.PlaylistName
	if name == "" {
		name = "Migrated Playlist"
	}
	dest := tasks.NewPlaylist{Name: name, Description: "Migrated from Spotify"}

	outcome, err := a.engine.Migrate(r.Context(), target, refs, dest, nil)
	outcome.MigrationType = models.MigrationTypePlaylist
	a.recordMigration(user.ID(), outcome, req.PlaylistID, req.PlaylistName)
	if err != nil {
		writeErrorMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"playlist_id":      nullable(outcome.PlaylistID),
		"playlist_name":    outcome.PlaylistName,
		"total_tracks":     outcome.TotalRequested,
		"migrated":         outcome.Migrated,
		"not_found":        len(outcome.NotFound),
		"not_found_tracks": capRefs(outcome.NotFound),
	})
}
