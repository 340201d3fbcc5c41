package server

import (
	"fmt"
	"net/http"

	"github.com/hazelvane/beatmigrate/internal/quota"
	"github.com/hazelvane/beatmigrate/internal/repositories"
	"github.com/hazelvane/beatmigrate/internal/shared"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"database": "connected",
	})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := repositories.Stats(a.db)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"auth_url": a.source.AuthURL(shared.GenerateID()),
	})
}

// handleCallback bounces the provider redirect to the frontend, which owns
// the authorization code from here on.
func (a *API) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	redirect := fmt.Sprintf("%s?code=%s", a.cfg.Server.FrontendRedirect, code)
	http.Redirect(w, r, redirect, http.StatusFound)
}

func (a *API) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
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

	user, _, err := a.identify(r.Context(), req.Code)
	if err != nil {
		writeErrorMessage(w, http.StatusUnauthorized, "Could not authenticate user")
		return
	}

	if err := a.activity.Log(user.ID(), "login", map[string]any{"provider": "spotify"}, true); err != nil {
		a.logger.Warn("failed to log login", "error", err)
	}

	migrationsToday, err := a.gate.Usage(user.ID(), quota.ActionMigration)
	if err != nil {
		a.logger.Warn("failed to read usage", "error", err)
	}

	body := user.ToDict()
	body["usage"] = map[string]any{
		"migrations_today": migrationsToday,
		"migrations_limit": a.cfg.Limits.MigrationsPerDay,
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *API) handleUserHistory(w http.ResponseWriter, r *http.Request) {
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
		req.Limit = 20
	}

	user, _, err := a.identify(r.Context(), req.Code)
	if err != nil {
		writeErrorMessage(w, http.StatusUnauthorized, "Could not authenticate user")
		return
	}

	records, err := a.ledger.ListForUser(user.ID(), req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	history := make([]map[string]any, 0, len(records))
	for _, record := range records {
		history = append(history, record.ToDict())
	}
	writeJSON(w, http.StatusOK, history)
}
