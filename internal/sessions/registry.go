// package sessions tracks in-flight and completed Tidal device-authorization
// sessions.
//
// The registry owns the only reference to each live provider session; callers
// borrow sessions through Resolve. State is process-local and deliberately not
// durable: a restart invalidates every session and pollers see session-not-found.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hazelvane/beatmigrate/internal/services"
	"github.com/hazelvane/beatmigrate/internal/shared"
)

// Status is the three-way authorization state of a session.
type Status int

const (
	StatusPending Status = iota
	StatusAuthenticated
	StatusFailed
)

// StartResult carries the codes a caller needs to complete login in a browser.
type StartResult struct {
	SessionID       string
	VerificationURI string
	UserCode        string
	ExpiresIn       int
}

// PollResult is one observation of a session's authorization state.
type PollResult struct {
	Status Status
	User   services.UserSummary // valid when Status is StatusAuthenticated
	Err    error                // set when Status is StatusFailed
}

type session struct {
	id        string
	createdAt time.Time
	status    Status
	target    services.TargetSession
	err       error
}

// Registry maps opaque session IDs to live target-provider sessions. Safe for
// concurrent use; evicts sessions after a TTL so abandoned logins don't
// accumulate for the life of the process.
type Registry struct {
	provider services.TargetProvider
	ttl      time.Duration
	logger   *log.Logger

	mu       sync.Mutex
	sessions map[string]*session

	done chan struct{}
	once sync.Once
}

// NewRegistry creates a registry and starts its eviction janitor.
func NewRegistry(provider services.TargetProvider, ttl time.Duration, logger *log.Logger) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	r := &Registry{
		provider: provider,
		ttl:      ttl,
		logger:   logger.With("component", "sessions"),
		sessions: make(map[string]*session),
		done:     make(chan struct{}),
	}

	go r.janitor()
	return r
}

// Start begins a device-authorization flow. The provider-side wait runs in a
// background goroutine; callers observe completion through Poll.
func (r *Registry) Start(ctx context.Context) (*StartResult, error) {
	login, err := r.provider.StartDeviceLogin(ctx)
	if err != nil {
		return nil, err
	}

	s := &session{
		id:        shared.GenerateID(),
		createdAt: time.Now(),
		status:    StatusPending,
	}

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	r.logger.Info("device login started", "session_id", s.id, "user_code", login.UserCode)

	// The wait outlives the HTTP request that triggered it, bounded by the
	// authorization's own expiry.
	go r.await(s.id, login)

	return &StartResult{
		SessionID:       s.id,
		VerificationURI: login.VerificationURI,
		UserCode:        login.UserCode,
		ExpiresIn:       login.ExpiresIn,
	}, nil
}

func (r *Registry) await(id string, login *services.DeviceLogin) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(login.ExpiresIn)*time.Second)
	defer cancel()

	target, err := r.provider.WaitForLogin(ctx, login)

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		// Evicted while waiting; drop the result.
		return
	}

	if err != nil {
		s.status = StatusFailed
		s.err = err
		r.logger.Warn("device login failed", "session_id", id, "err", err)
		return
	}

	s.status = StatusAuthenticated
	s.target = target
	r.logger.Info("device login completed", "session_id", id, "user", target.User().ID)
}

// Poll reports the session's authorization state. Unknown IDs return
// [shared.ErrSessionNotFound]; polling is idempotent and never advances state.
func (r *Registry) Poll(id string) (PollResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return PollResult{}, shared.ErrSessionNotFound
	}

	result := PollResult{Status: s.status}
	switch s.status {
	case StatusAuthenticated:
		result.User = s.target.User()
	case StatusFailed:
		result.Err = s.err
	}

	return result, nil
}

// Resolve returns the live provider session for an authenticated login.
// Pending, failed, evicted, and unknown sessions all resolve to
// [shared.ErrSessionNotFound]: callers cannot distinguish them and should
// restart login.
func (r *Registry) Resolve(id string) (services.TargetSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.status != StatusAuthenticated {
		return nil, shared.ErrSessionNotFound
	}

	return s.target, nil
}

// Len reports how many sessions the registry currently holds.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops the eviction janitor. Idempotent.
func (r *Registry) Close() {
	r.once.Do(func() { close(r.done) })
}

func (r *Registry) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case now := <-ticker.C:
			r.evictExpired(now)
		}
	}
}

func (r *Registry) evictExpired(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if now.Sub(s.createdAt) > r.ttl {
			delete(r.sessions, id)
			r.logger.Debug("session evicted", "session_id", id)
		}
	}
}
