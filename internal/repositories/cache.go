package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Insight cache fields. Each maps to a JSON column plus a fetched-at column
// on the spotify_cache table.
const (
	InsightLibraryStats = "library_stats"
	InsightTopTracks    = "top_tracks"
	InsightTopArtists   = "top_artists"
	InsightRecentTracks = "recent_tracks"
	InsightPlaylists    = "playlists"
)

var insightFields = map[string]bool{
	InsightLibraryStats: true,
	InsightTopTracks:    true,
	InsightTopArtists:   true,
	InsightRecentTracks: true,
	InsightPlaylists:    true,
}

// CacheRepository stores per-user JSON snapshots of dashboard insights.
// Staleness is the caller's decision; this layer only records fetch times.
type CacheRepository struct {
	db *sql.DB
}

// NewCacheRepository creates a new [CacheRepository] with the given database connection
func NewCacheRepository(db *sql.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// GetInsight returns the cached snapshot and when it was fetched. A zero
// fetch time means the field has never been populated.
func (r *CacheRepository) GetInsight(userID, field string) (json.RawMessage, time.Time, error) {
	if !insightFields[field] {
		return nil, time.Time{}, fmt.Errorf("unknown insight field: %s", field)
	}

	// Column names come from the whitelist above, never from input.
	query := fmt.Sprintf(`SELECT %s, %s_fetched_at FROM spotify_cache WHERE user_id = ?`, field, field)

	var (
		payload   string
		fetchedAt sql.NullTime
	)
	err := r.db.QueryRow(query, userID).Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read cache: %w", err)
	}

	if !fetchedAt.Valid {
		return nil, time.Time{}, nil
	}
	return json.RawMessage(payload), fetchedAt.Time, nil
}

// PutInsight stores a snapshot for a field and stamps its fetch time.
func (r *CacheRepository) PutInsight(userID, field string, payload any) error {
	if !insightFields[field] {
		return fmt.Errorf("unknown insight field: %s", field)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	now := time.Now().UTC()
	query := fmt.Sprintf(`
		INSERT INTO spotify_cache (user_id, %s, %s_fetched_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			%s = excluded.%s,
			%s_fetched_at = excluded.%s_fetched_at,
			updated_at = excluded.updated_at
	`, field, field, field, field, field, field)

	_, err = r.db.Exec(query, userID, string(data), now, now)
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}

	return nil
}
