package server

import (
	"fmt"
	"net/http"
	"sync"
)

// AuthCode is the outcome of one authorization redirect.
type AuthCode struct {
	Code string
	Err  error
}

// AuthCallback captures the authorization code from the provider's redirect
// during a CLI login. The code exchange itself belongs to the provider
// adapter; this handler only validates state and relays the code.
// Implements [Handler] for registration with a [Router].
type AuthCallback struct {
	state      string
	resultChan chan AuthCode
	once       sync.Once
	mu         sync.Mutex
	handled    bool
}

// NewAuthCallback creates a callback handler expecting the given state token.
// The state token should be cryptographically random for CSRF protection.
func NewAuthCallback(state string) *AuthCallback {
	return &AuthCallback{
		state:      state,
		resultChan: make(chan AuthCode, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthCallback) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP validates the state parameter and relays the authorization code.
// Only the first callback is processed; replays get a 400.
func (h *AuthCallback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.handled {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.handled = true
	h.mu.Unlock()

	if state := r.URL.Query().Get("state"); state != h.state {
		h.send(AuthCode{Err: fmt.Errorf("invalid state parameter")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		h.send(AuthCode{Err: fmt.Errorf("authorization failed: %s - %s", errParam, errDesc)})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.send(AuthCode{Code: code})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Authorization Successful</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4rem;">
  <h1>Authorization successful</h1>
  <p>You can close this window and return to the terminal.</p>
</body>
</html>
`)
}

func (h *AuthCallback) send(result AuthCode) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the channel carrying the single callback outcome.
// The channel receives exactly one value and is then closed.
func (h *AuthCallback) Result() <-chan AuthCode {
	return h.resultChan
}
