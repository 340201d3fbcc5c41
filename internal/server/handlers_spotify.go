package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hazelvane/beatmigrate/internal/repositories"
)

const (
	defaultTimeRange    = "medium_term"
	defaultInsightLimit = 20
)

// cachedInsight returns a fresh cached snapshot for a field, if one exists.
func (a *API) cachedInsight(userID, field string, maxAgeHours int) (json.RawMessage, bool) {
	if maxAgeHours <= 0 {
		return nil, false
	}

	payload, fetchedAt, err := a.cache.GetInsight(userID, field)
	if err != nil {
		a.logger.Warn("failed to read insight cache", "field", field, "error", err)
		return nil, false
	}
	if fetchedAt.IsZero() || time.Since(fetchedAt) > time.Duration(maxAgeHours)*time.Hour {
		return nil, false
	}

	return payload, true
}

// storeInsight snapshots a response payload. Best effort.
func (a *API) storeInsight(userID, field string, payload any) {
	if err := a.cache.PutInsight(userID, field, payload); err != nil {
		a.logger.Warn("failed to write insight cache", "field", field, "error", err)
	}
}

func (a *API) handleFetchPlaylists(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Authorization code required")
		return
	}

	user, session, err := a.identify(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	if cached, ok := a.cachedInsight(user.ID(), repositories.InsightPlaylists, a.cfg.Cache.PlaylistsHours); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	playlists, err := session.Playlists(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	a.storeInsight(user.ID(), repositories.InsightPlaylists, playlists)
	writeJSON(w, http.StatusOK, playlists)
}

func (a *API) handlePlaylistTracks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code       string `json:"code"`
		PlaylistID string `json:"playlist_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PlaylistID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "playlist_id is required")
		return
	}
	if req.Code == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Authorization code required")
		return
	}

	session, err := a.source.Connect(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	tracks, err := session.PlaylistTracks(r.Context(), req.PlaylistID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (a *API) handleLikedSongs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code   string `json:"code"`
		Limit  int    `json:"limit"`
		Offset int    `json:"offset"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Authorization code required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = 50
	}

	session, err := a.source.Connect(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := session.LikedTracks(r.Context(), req.Limit, req.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Authorization code required")
		return
	}

	session, err := a.source.Connect(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := session.Profile(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) handleTopTracks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code      string `json:"code"`
		TimeRange string `json:"time_range"`
		Limit     int    `json:"limit"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Authorization code required")
		return
	}
	if req.TimeRange == "" {
		req.TimeRange = defaultTimeRange
	}
	if req.Limit <= 0 {
		req.Limit = defaultInsightLimit
	}

	user, session, err := a.identify(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	// Only the dashboard's default view is cached; custom ranges go straight
	// to the provider.
	cacheable := req.TimeRange == defaultTimeRange && req.Limit == defaultInsightLimit
	if cacheable {
		if cached, ok := a.cachedInsight(user.ID(), repositories.InsightTopTracks, a.cfg.Cache.TopTracksHours); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	tracks, err := session.TopTracks(r.Context(), req.TimeRange, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	if cacheable {
		a.storeInsight(user.ID(), repositories.InsightTopTracks, tracks)
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (a *API) handleTopArtists(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code      string `json:"code"`
		TimeRange string `json:"time_range"`
		Limit     int    `json:"limit"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Authorization code required")
		return
	}
	if req.TimeRange == "" {
		req.TimeRange = defaultTimeRange
	}
	if req.Limit <= 0 {
		req.Limit = defaultInsightLimit
	}

	user, session, err := a.identify(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	cacheable := req.TimeRange == defaultTimeRange && req.Limit == defaultInsightLimit
	if cacheable {
		if cached, ok := a.cachedInsight(user.ID(), repositories.InsightTopArtists, a.cfg.Cache.TopTracksHours); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	artists, err := session.TopArtists(r.Context(), req.TimeRange, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	if cacheable {
		a.storeInsight(user.ID(), repositories.InsightTopArtists, artists)
	}
	writeJSON(w, http.StatusOK, artists)
}

func (a *API) handleRecentlyPlayed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code  string `json:"code"`
		Limit int    `json:"limit"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Authorization code required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultInsightLimit
	}

	user, session, err := a.identify(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	cacheable := req.Limit == defaultInsightLimit
	if cacheable {
		if cached, ok := a.cachedInsight(user.ID(), repositories.InsightRecentTracks, a.cfg.Cache.TopTracksHours); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	tracks, err := session.RecentlyPlayed(r.Context(), req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	if cacheable {
		a.storeInsight(user.ID(), repositories.InsightRecentTracks, tracks)
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (a *API) handleLibraryStats(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Authorization code required")
		return
	}

	user, session, err := a.identify(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	if cached, ok := a.cachedInsight(user.ID(), repositories.InsightLibraryStats, a.cfg.Cache.LibraryStatsHours); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	stats, err := session.LibraryStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	a.storeInsight(user.ID(), repositories.InsightLibraryStats, stats)
	writeJSON(w, http.StatusOK, stats)
}
