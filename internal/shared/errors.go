package shared

import "fmt"

var (
	// Request validation errors
	ErrInvalidRequest  = fmt.Errorf("invalid request")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication and session errors
	ErrAuthRequired    = fmt.Errorf("authorization required")
	ErrAuthFailed      = fmt.Errorf("authentication failed")
	ErrSessionNotFound = fmt.Errorf("invalid session")

	// Quota errors
	ErrQuotaExceeded = fmt.Errorf("daily limit reached")

	// Provider and service errors
	ErrProviderRequest    = fmt.Errorf("provider request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")

	// Persistence errors
	ErrPersistence = fmt.Errorf("persistence failed")
)
