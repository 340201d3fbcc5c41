package models

import (
	"fmt"
	"time"
)

// Migration statuses.
const (
	MigrationPending    = "pending"
	MigrationInProgress = "in_progress"
	MigrationCompleted  = "completed"
	MigrationFailed     = "failed"
)

// Migration types.
const (
	MigrationTypePlaylist         = "playlist"
	MigrationTypeNewPlaylist      = "new_playlist"
	MigrationTypeExistingPlaylist = "existing_playlist"
	MigrationTypeFavorites        = "favorites"
	MigrationTypeMerge            = "merge"
)

// NotFoundCap bounds how many unmatched tracks a migration record reports.
// This is a reporting cap, not a processing cap.
const NotFoundCap = 10

// MigrationRecord is one row of the migration ledger. Immutable after the
// attempt completes and the record is persisted.
type MigrationRecord struct {
	id                 string
	sequence           int
	userID             string
	sourceProvider     string
	targetProvider     string
	sourcePlaylistID   string
	sourcePlaylistName string
	targetPlaylistID   string
	targetPlaylistName string
	migrationType      string
	totalTracks        int
	migratedTracks     int
	skippedTracks      int
	notFoundTracks     []TrackRef
	status             string
	errorMessage       string
	createdAt          time.Time
	updatedAt          time.Time
	completedAt        *time.Time
}

// NewMigrationRecord creates a pending spotify→tidal ledger record.
func NewMigrationRecord(sequence int, userID string) *MigrationRecord {
	now := time.Now().UTC()
	return &MigrationRecord{
		sequence:       sequence,
		userID:         userID,
		sourceProvider: "spotify",
		targetProvider: "tidal",
		status:         MigrationPending,
		createdAt:      now,
		updatedAt:      now,
	}
}

func (m *MigrationRecord) ID() string                 { return m.id }
func (m *MigrationRecord) Sequence() int              { return m.sequence }
func (m *MigrationRecord) UserID() string             { return m.userID }
func (m *MigrationRecord) SourceProvider() string     { return m.sourceProvider }
func (m *MigrationRecord) TargetProvider() string     { return m.targetProvider }
func (m *MigrationRecord) SourcePlaylistID() string   { return m.sourcePlaylistID }
func (m *MigrationRecord) SourcePlaylistName() string { return m.sourcePlaylistName }
func (m *MigrationRecord) TargetPlaylistID() string   { return m.targetPlaylistID }
func (m *MigrationRecord) TargetPlaylistName() string { return m.targetPlaylistName }
func (m *MigrationRecord) MigrationType() string      { return m.migrationType }
func (m *MigrationRecord) TotalTracks() int           { return m.totalTracks }
func (m *MigrationRecord) MigratedTracks() int        { return m.migratedTracks }
func (m *MigrationRecord) SkippedTracks() int         { return m.skippedTracks }
func (m *MigrationRecord) NotFoundTracks() []TrackRef { return m.notFoundTracks }
func (m *MigrationRecord) Status() string             { return m.status }
func (m *MigrationRecord) ErrorMessage() string       { return m.errorMessage }
func (m *MigrationRecord) CreatedAt() time.Time       { return m.createdAt }
func (m *MigrationRecord) UpdatedAt() time.Time       { return m.updatedAt }
func (m *MigrationRecord) CompletedAt() *time.Time    { return m.completedAt }

func (m *MigrationRecord) SetID(id string)                   { m.id = id }
func (m *MigrationRecord) SetSequence(sequence int)          { m.sequence = sequence }
func (m *MigrationRecord) SetSourceProvider(p string)        { m.sourceProvider = p }
func (m *MigrationRecord) SetTargetProvider(p string)        { m.targetProvider = p }
func (m *MigrationRecord) SetSourcePlaylistID(id string)     { m.sourcePlaylistID = id }
func (m *MigrationRecord) SetSourcePlaylistName(name string) { m.sourcePlaylistName = name }
func (m *MigrationRecord) SetTargetPlaylistID(id string)     { m.targetPlaylistID = id }
func (m *MigrationRecord) SetTargetPlaylistName(name string) { m.targetPlaylistName = name }
func (m *MigrationRecord) SetMigrationType(t string)         { m.migrationType = t }
func (m *MigrationRecord) SetTotalTracks(n int)              { m.totalTracks = n }
func (m *MigrationRecord) SetMigratedTracks(n int)           { m.migratedTracks = n }
func (m *MigrationRecord) SetSkippedTracks(n int)            { m.skippedTracks = n }
func (m *MigrationRecord) SetStatus(s string)                { m.status = s }
func (m *MigrationRecord) SetErrorMessage(msg string)        { m.errorMessage = msg }
func (m *MigrationRecord) SetCreatedAt(t time.Time)          { m.createdAt = t }
func (m *MigrationRecord) SetUpdatedAt(t time.Time)          { m.updatedAt = t }
func (m *MigrationRecord) SetCompletedAt(t *time.Time)       { m.completedAt = t }

// SetNotFoundTracks stores the unmatched tracks, truncated to [NotFoundCap]
// in discovery order.
func (m *MigrationRecord) SetNotFoundTracks(tracks []TrackRef) {
	if len(tracks) > NotFoundCap {
		tracks = tracks[:NotFoundCap]
	}
	m.notFoundTracks = tracks
}

// Validate checks the record's data.
func (m *MigrationRecord) Validate() error {
	if m.userID == "" {
		return fmt.Errorf("user ID is required")
	}
	switch m.status {
	case MigrationPending, MigrationInProgress, MigrationCompleted, MigrationFailed:
	default:
		return fmt.Errorf("unknown status: %s", m.status)
	}
	if m.totalTracks < 0 || m.migratedTracks < 0 || m.skippedTracks < 0 {
		return fmt.Errorf("track counts must be non-negative")
	}
	return nil
}

// ToDict returns the record's wire representation mirroring the frontend contract.
func (m *MigrationRecord) ToDict() map[string]any {
	var completed any
	if m.completedAt != nil {
		completed = m.completedAt.Format(time.RFC3339)
	}

	return map[string]any{
		"id":                   m.id,
		"source_provider":      m.sourceProvider,
		"target_provider":      m.targetProvider,
		"source_playlist_name": m.sourcePlaylistName,
		"target_playlist_name": m.targetPlaylistName,
		"migration_type":       m.migrationType,
		"total_tracks":         m.totalTracks,
		"migrated_tracks":      m.migratedTracks,
		"skipped_tracks":       m.skippedTracks,
		"status":               m.status,
		"created_at":           m.createdAt.Format(time.RFC3339),
		"completed_at":         completed,
	}
}
