package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazelvane/beatmigrate/internal/shared"
)

// ActivityRepository appends user activity events. Logging is best effort;
// callers treat failures as non-fatal.
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new [ActivityRepository] with the given database connection
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Log records an activity event for a user with optional structured details.
func (r *ActivityRepository) Log(userID, action string, details map[string]any, success bool) error {
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO user_activities (id, user_id, action, details, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, shared.GenerateID(), userID, action, string(detailsJSON), success, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}

	return nil
}

// ActivityEntry is one logged event in wire form.
type ActivityEntry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	Success   bool           `json:"success"`
	CreatedAt string         `json:"created_at"`
}

// Recent returns the user's most recent activity events, newest first.
func (r *ActivityRepository) Recent(userID string, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, action, details, success, created_at
		FROM user_activities
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	entries := []ActivityEntry{}
	for rows.Next() {
		var (
			entry       ActivityEntry
			detailsJSON string
			createdAt   time.Time
		)
		if err := rows.Scan(&entry.ID, &entry.Action, &detailsJSON, &entry.Success, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if err := json.Unmarshal([]byte(detailsJSON), &entry.Details); err != nil {
			entry.Details = map[string]any{}
		}
		entry.CreatedAt = createdAt.Format(time.RFC3339)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}

	return entries, nil
}
