// package tasks implements the migration engine: matching source tracks
// against the target catalog and delivering them to a destination.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/hazelvane/beatmigrate/internal/models"
	"github.com/hazelvane/beatmigrate/internal/services"
)

// DefaultPlaylistName names new playlists when the caller doesn't.
const DefaultPlaylistName = "Migrated Songs"

// Destination is where matched tracks end up. Exactly one concrete variant
// is chosen before a migration starts.
type Destination interface {
	isDestination()

	// MigrationType returns the ledger's migration_type value for this destination.
	MigrationType() string
}

// NewPlaylist delivers matches into a freshly created playlist.
type NewPlaylist struct {
	Name        string
	Description string
}

// ExistingPlaylist delivers matches into a playlist the user already owns.
type ExistingPlaylist struct {
	ID string
}

// Favorites delivers matches into the user's favorites collection.
type Favorites struct{}

func (NewPlaylist) isDestination()      {}
func (ExistingPlaylist) isDestination() {}
func (Favorites) isDestination()        {}

func (NewPlaylist) MigrationType() string      { return models.MigrationTypeNewPlaylist }
func (ExistingPlaylist) MigrationType() string { return models.MigrationTypeExistingPlaylist }
func (Favorites) MigrationType() string        { return models.MigrationTypeFavorites }

// DestinationFromRequest resolves the wire-level destination fields into one
// variant. When multiple are set, favorites wins over an existing playlist,
// which wins over creating a new one.
func DestinationFromRequest(favorites bool, targetPlaylistID, playlistName string) Destination {
	switch {
	case favorites:
		return Favorites{}
	case targetPlaylistID != "":
		return ExistingPlaylist{ID: targetPlaylistID}
	default:
		if playlistName == "" {
			playlistName = DefaultPlaylistName
		}
		return NewPlaylist{Name: playlistName, Description: "Migrated from Spotify"}
	}
}

// Outcome summarizes a finished migration attempt. Migrated plus the length
// of NotFound always equals TotalRequested.
type Outcome struct {
	PlaylistID     string
	PlaylistName   string
	MigrationType  string
	TotalRequested int
	Migrated       int
	NotFound       []models.TrackRef
	Status         string
	ErrorMessage   string
}

// Engine matches tracks on the target provider and delivers them to a
// destination. Searches are paced by a shared rate limiter so concurrent
// migrations stay inside the provider's limits.
type Engine struct {
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewEngine creates an engine pacing searches at searchRate per second.
func NewEngine(searchRate float64, logger *log.Logger) *Engine {
	if searchRate <= 0 {
		searchRate = 5
	}
	return &Engine{
		limiter: rate.NewLimiter(rate.Limit(searchRate), 1),
		logger:  logger,
	}
}

// Migrate matches each track against the target catalog and delivers the
// matches to dest. Per-track search failures count as not found and never
// abort the run; a delivery failure fails the whole attempt. The returned
// Outcome is non-nil either way so callers can record the ledger entry.
func (e *Engine) Migrate(ctx context.Context, target services.TargetSession, tracks []models.TrackRef, dest Destination, progress chan<- ProgressUpdate) (*Outcome, error) {
	outcome := &Outcome{
		MigrationType:  dest.MigrationType(),
		TotalRequested: len(tracks),
		Status:         models.MigrationCompleted,
	}

	matched := make([]string, 0, len(tracks))
	for i, track := range tracks {
		sendProgress(progress, ProgressUpdate{
			Phase:     PhaseSearching,
			Current:   i + 1,
			Total:     len(tracks),
			TrackName: track.Name,
		})

		id, err := e.findTrack(ctx, target, track)
		if err != nil {
			if ctx.Err() != nil {
				outcome.Status = models.MigrationFailed
				outcome.ErrorMessage = ctx.Err().Error()
				return outcome, ctx.Err()
			}
			e.logger.Warn("track search failed", "name", track.Name, "artist", track.Artist, "error", err)
			outcome.NotFound = append(outcome.NotFound, track)
			continue
		}
		if id == "" {
			outcome.NotFound = append(outcome.NotFound, track)
			continue
		}
		matched = append(matched, id)
	}

	if err := e.deliver(ctx, target, matched, dest, outcome, progress); err != nil {
		outcome.Status = models.MigrationFailed
		outcome.ErrorMessage = err.Error()
		return outcome, err
	}

	sendProgress(progress, ProgressUpdate{Phase: PhaseDone, Current: len(tracks), Total: len(tracks)})
	return outcome, nil
}

// findTrack searches the target catalog for one track. An empty ID with a
// nil error means no candidate matched.
func (e *Engine) findTrack(ctx context.Context, target services.TargetSession, track models.TrackRef) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}

	query := fmt.Sprintf("%s %s", track.Name, track.Artist)
	results, err := target.SearchTracks(ctx, query, 1)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}
	return results[0].ID, nil
}

func (e *Engine) deliver(ctx context.Context, target services.TargetSession, trackIDs []string, dest Destination, outcome *Outcome, progress chan<- ProgressUpdate) error {
	switch d := dest.(type) {
	case Favorites:
		// Each add stands alone. A failed favorite is logged but the track
		// still counts as migrated, matching the longstanding wire contract.
		for i, id := range trackIDs {
			sendProgress(progress, ProgressUpdate{Phase: PhaseAdding, Current: i + 1, Total: len(trackIDs)})
			if err := target.AddToFavorites(ctx, id); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Warn("failed to add favorite", "track_id", id, "error", err)
			}
		}
		outcome.Migrated = len(trackIDs)
		outcome.PlaylistName = "Favorites"
		return nil

	case ExistingPlaylist:
		playlist, err := target.Playlist(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("failed to load target playlist: %w", err)
		}
		outcome.PlaylistID = playlist.ID
		outcome.PlaylistName = playlist.Name

		if len(trackIDs) > 0 {
			sendProgress(progress, ProgressUpdate{Phase: PhaseAdding, Current: 0, Total: len(trackIDs)})
			if err := target.AddTracks(ctx, playlist.ID, trackIDs); err != nil {
				return fmt.Errorf("failed to add tracks: %w", err)
			}
		}
		outcome.Migrated = len(trackIDs)
		return nil

	case NewPlaylist:
		sendProgress(progress, ProgressUpdate{Phase: PhaseCreating, Total: len(trackIDs)})
		playlist, err := target.CreatePlaylist(ctx, d.Name, d.Description)
		if err != nil {
			return fmt.Errorf("failed to create playlist: %w", err)
		}
		outcome.PlaylistID = playlist.ID
		outcome.PlaylistName = playlist.Name

		if len(trackIDs) > 0 {
			sendProgress(progress, ProgressUpdate{Phase: PhaseAdding, Current: 0, Total: len(trackIDs)})
			if err := target.AddTracks(ctx, playlist.ID, trackIDs); err != nil {
				return fmt.Errorf("failed to add tracks: %w", err)
			}
		}
		outcome.Migrated = len(trackIDs)
		return nil

	default:
		return fmt.Errorf("unknown destination type %T", dest)
	}
}

// CompleteRecord fills a ledger record from a finished outcome.
func CompleteRecord(record *models.MigrationRecord, outcome *Outcome) {
	now := time.Now().UTC()
	record.SetMigrationType(outcome.MigrationType)
	record.SetTargetPlaylistID(outcome.PlaylistID)
	record.SetTargetPlaylistName(outcome.PlaylistName)
	record.SetTotalTracks(outcome.TotalRequested)
	record.SetMigratedTracks(outcome.Migrated)
	record.SetSkippedTracks(len(outcome.NotFound))
	record.SetNotFoundTracks(outcome.NotFound)
	record.SetStatus(outcome.Status)
	record.SetErrorMessage(outcome.ErrorMessage)
	record.SetCompletedAt(&now)
}
