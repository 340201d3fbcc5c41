package server

import (
	"fmt"
	"net/http"

	"github.com/hazelvane/beatmigrate/internal/services"
	"github.com/hazelvane/beatmigrate/internal/sessions"
)

// resolveSession looks up an authenticated Tidal session, writing the legacy
// 400 "Invalid session" response when the lookup fails.
func (a *API) resolveSession(w http.ResponseWriter, sessionID string) (services.TargetSession, bool) {
	if sessionID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid session")
		return nil, false
	}

	target, err := a.registry.Resolve(sessionID)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid session")
		return nil, false
	}
	return target, true
}

func (a *API) handleTidalLogin(w http.ResponseWriter, r *http.Request) {
	result, err := a.registry.Start(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"verification_uri": result.VerificationURI,
		"user_code":        result.UserCode,
		"session_id":       result.SessionID,
		"expires_in":       result.ExpiresIn,
	})
}

func (a *API) handleTidalCheckAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := a.registry.Poll(req.SessionID)
	if err != nil {
		// Unknown and expired sessions report unauthenticated, not an HTTP
		// error; pollers restart the login flow on this signal.
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": false,
			"error":         "Invalid session",
		})
		return
	}

	switch result.Status {
	case sessions.StatusAuthenticated:
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"user": map[string]any{
				"id":   result.User.ID,
				"name": result.User.Name,
			},
		})
	case sessions.StatusFailed:
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": false,
			"error":         result.Err.Error(),
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
	}
}

func (a *API) handleTidalPlaylists(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	target, ok := a.resolveSession(w, req.SessionID)
	if !ok {
		return
	}

	playlists, err := target.Playlists(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (a *API) handleTidalPlaylistTracks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID  string `json:"session_id"`
		PlaylistID string `json:"playlist_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	target, ok := a.resolveSession(w, req.SessionID)
	if !ok {
		return
	}
	if req.PlaylistID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Playlist ID required")
		return
	}

	tracks, err := target.PlaylistTracks(r.Context(), req.PlaylistID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (a *API) handleTidalDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID  string `json:"session_id"`
		PlaylistID string `json:"playlist_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	target, ok := a.resolveSession(w, req.SessionID)
	if !ok {
		return
	}
	if req.PlaylistID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Playlist ID required")
		return
	}

	if err := target.DeletePlaylist(r.Context(), req.PlaylistID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Playlist deleted successfully",
	})
}

func (a *API) handleTidalMergePlaylists(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID        string `json:"session_id"`
		SourcePlaylistID string `json:"source_playlist_id"`
		TargetPlaylistID string `json:"target_playlist_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	target, ok := a.resolveSession(w, req.SessionID)
	if !ok {
		return
	}
	if req.SourcePlaylistID == "" || req.TargetPlaylistID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Both source and target playlist IDs required")
		return
	}
	if req.SourcePlaylistID == req.TargetPlaylistID {
		writeErrorMessage(w, http.StatusBadRequest, "Cannot merge a playlist with itself")
		return
	}

	result, err := a.engine.Merge(r.Context(), target, req.SourcePlaylistID, req.TargetPlaylistID, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        fmt.Sprintf("Merged %d tracks into target playlist", result.TracksAdded),
		"tracks_added":   result.TracksAdded,
		"tracks_skipped": result.TracksSkipped,
		"source_deleted": result.SourceDeleted,
	})
}

func (a *API) handleTidalSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Query     string `json:"query"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	target, ok := a.resolveSession(w, req.SessionID)
	if !ok {
		return
	}
	if req.Query == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Query required")
		return
	}

	tracks, err := target.SearchTracks(r.Context(), req.Query, 5)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (a *API) handleTidalCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID   string   `json:"session_id"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		TrackIDs    []string `json:"track_ids"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	target, ok := a.resolveSession(w, req.SessionID)
	if !ok {
		return
	}
	if req.Name == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Playlist name required")
		return
	}

	playlist, err := target.CreatePlaylist(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	if len(req.TrackIDs) > 0 {
		if err := target.AddTracks(r.Context(), playlist.ID, req.TrackIDs); err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"playlist_id":  playlist.ID,
		"name":         playlist.Name,
		"tracks_added": len(req.TrackIDs),
	})
}
