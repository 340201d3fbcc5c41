package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazelvane/beatmigrate/internal/models"
	"github.com/hazelvane/beatmigrate/internal/shared"
)

// MigrationRepository persists migration ledger records. Records are written
// once after an attempt finishes and never updated afterwards.
type MigrationRepository struct {
	db *sql.DB
}

// NewMigrationRepository creates a new [MigrationRepository] with the given database connection
func NewMigrationRepository(db *sql.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

// Create inserts a ledger record with generated ID and sequence.
func (r *MigrationRepository) Create(record *models.MigrationRecord) error {
	sequence, err := NextSequence(r.db, "migrations")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	record.SetSequence(sequence)
	record.SetID(shared.GenerateID())

	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	notFound := record.NotFoundTracks()
	if notFound == nil {
		notFound = []models.TrackRef{}
	}
	notFoundJSON, err := json.Marshal(notFound)
	if err != nil {
		return fmt.Errorf("failed to marshal not found tracks: %w", err)
	}

	query := `
		INSERT INTO migrations (
			id, sequence, user_id, source_provider, target_provider,
			source_playlist_id, source_playlist_name, target_playlist_id, target_playlist_name,
			migration_type, total_tracks, migrated_tracks, skipped_tracks, not_found_tracks,
			status, error_message, created_at, completed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		record.ID(), record.Sequence(), record.UserID(),
		record.SourceProvider(), record.TargetProvider(),
		record.SourcePlaylistID(), record.SourcePlaylistName(),
		record.TargetPlaylistID(), record.TargetPlaylistName(),
		record.MigrationType(), record.TotalTracks(), record.MigratedTracks(),
		record.SkippedTracks(), string(notFoundJSON),
		record.Status(), record.ErrorMessage(), record.CreatedAt(), record.CompletedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert migration record: %w", err)
	}

	return nil
}

// Get retrieves a ledger record by ID
func (r *MigrationRepository) Get(id string) (*models.MigrationRecord, error) {
	query := selectMigration + ` WHERE id = ?`

	rows, err := r.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query migration: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("migration not found: %s", id)
	}
	return scanMigration(rows)
}

// ListForUser returns the user's most recent ledger records, newest first.
func (r *MigrationRepository) ListForUser(userID string, limit int) ([]*models.MigrationRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := selectMigration + ` WHERE user_id = ? ORDER BY sequence DESC LIMIT ?`

	rows, err := r.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var records []*models.MigrationRecord
	for rows.Next() {
		record, err := scanMigration(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate migrations: %w", err)
	}

	return records, nil
}

const selectMigration = `
	SELECT id, sequence, user_id, source_provider, target_provider,
		source_playlist_id, source_playlist_name, target_playlist_id, target_playlist_name,
		migration_type, total_tracks, migrated_tracks, skipped_tracks, not_found_tracks,
		status, error_message, created_at, completed_at
	FROM migrations
`

func scanMigration(rows *sql.Rows) (*models.MigrationRecord, error) {
	var (
		id, userID                             string
		sequence                               int
		sourceProvider, targetProvider         string
		sourcePlaylistID, sourcePlaylistName   sql.NullString
		targetPlaylistID, targetPlaylistName   sql.NullString
		migrationType, errorMessage            sql.NullString
		totalTracks, migratedTracks, skipped   int
		notFoundJSON, status                   string
		createdAt                              time.Time
		completedAt                            sql.NullTime
	)

	err := rows.Scan(&id, &sequence, &userID, &sourceProvider, &targetProvider,
		&sourcePlaylistID, &sourcePlaylistName, &targetPlaylistID, &targetPlaylistName,
		&migrationType, &totalTracks, &migratedTracks, &skipped, &notFoundJSON,
		&status, &errorMessage, &createdAt, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migration: %w", err)
	}

	record := models.NewMigrationRecord(sequence, userID)
	record.SetID(id)
	record.SetSourceProvider(sourceProvider)
	record.SetTargetProvider(targetProvider)
	record.SetSourcePlaylistID(sourcePlaylistID.String)
	record.SetSourcePlaylistName(sourcePlaylistName.String)
	record.SetTargetPlaylistID(targetPlaylistID.String)
	record.SetTargetPlaylistName(targetPlaylistName.String)
	record.SetMigrationType(migrationType.String)
	record.SetTotalTracks(totalTracks)
	record.SetMigratedTracks(migratedTracks)
	record.SetSkippedTracks(skipped)
	record.SetStatus(status)
	record.SetErrorMessage(errorMessage.String)
	record.SetCreatedAt(createdAt)
	if completedAt.Valid {
		record.SetCompletedAt(&completedAt.Time)
	}

	var notFound []models.TrackRef
	if err := json.Unmarshal([]byte(notFoundJSON), &notFound); err != nil {
		return nil, fmt.Errorf("failed to unmarshal not found tracks: %w", err)
	}
	record.SetNotFoundTracks(notFound)

	return record, nil
}
