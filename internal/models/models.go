// package models defines the data model for the playlist migration web service
package models

import (
	"time"
)

// Model defines the base interface for all persistent models in the migration service.
// Implementations include User and MigrationRecord.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// TrackRef identifies a track by its textual metadata. Before migration the
// identity is (name, artist); ProviderTrackID is filled by a successful match
// on the target provider.
type TrackRef struct {
	Name            string `json:"name"`
	Artist          string `json:"artist"`
	Album           string `json:"album"`
	ProviderTrackID string `json:"provider_track_id,omitempty"`
}

// Track represents a music track from either provider, in the wire shape the
// frontend consumes.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artist     string   `json:"artist"`
	Artists    []string `json:"artists,omitempty"`
	Album      string   `json:"album"`
	DurationMS int      `json:"duration_ms"`
	Image      string   `json:"image,omitempty"`
	AddedAt    string   `json:"added_at,omitempty"`
	PlayedAt   string   `json:"played_at,omitempty"`
	Popularity int      `json:"popularity,omitempty"`
}

// Ref strips a track down to its migration identity.
func (t Track) Ref() TrackRef {
	return TrackRef{Name: t.Name, Artist: t.Artist, Album: t.Album}
}

// Playlist represents a playlist summary from either provider.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TracksTotal int    `json:"tracks_total"`
	Image       string `json:"image,omitempty"`
	Owner       string `json:"owner,omitempty"`
}
