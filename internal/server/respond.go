package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hazelvane/beatmigrate/internal/shared"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeErrorMessage writes the {"error": msg} envelope every failure uses.
func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// writeError maps sentinel errors to status codes. Provider and unknown
// failures surface their message with a 500, matching the frontend contract.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidRequest), errors.Is(err, shared.ErrSessionNotFound):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrAuthRequired), errors.Is(err, shared.ErrAuthFailed):
		writeErrorMessage(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, shared.ErrQuotaExceeded):
		writeErrorMessage(w, http.StatusTooManyRequests, err.Error())
	default:
		writeErrorMessage(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody parses a JSON request body into dst. An empty body is an error;
// every POST endpoint requires one.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
