package tasks

import (
	"context"
	"fmt"

	"github.com/hazelvane/beatmigrate/internal/services"
)

// MergeResult summarizes a playlist merge.
type MergeResult struct {
	TracksAdded   int  `json:"tracks_added"`
	TracksSkipped int  `json:"tracks_skipped"`
	SourceDeleted bool `json:"source_deleted"`
}

// Merge moves the tracks of one target-provider playlist into another, then
// deletes the source. Tracks already present in the destination are skipped.
// Individual add failures are tolerated; the source playlist is only deleted
// after all adds have been attempted.
func (e *Engine) Merge(ctx context.Context, target services.TargetSession, sourcePlaylistID, targetPlaylistID string, progress chan<- ProgressUpdate) (*MergeResult, error) {
	sourceTracks, err := target.PlaylistTracks(ctx, sourcePlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source playlist: %w", err)
	}

	targetTracks, err := target.PlaylistTracks(ctx, targetPlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target playlist: %w", err)
	}

	existing := make(map[string]bool, len(targetTracks))
	for _, track := range targetTracks {
		existing[track.ID] = true
	}

	result := &MergeResult{}
	for i, track := range sourceTracks {
		sendProgress(progress, ProgressUpdate{
			Phase:     PhaseMerging,
			Current:   i + 1,
			Total:     len(sourceTracks),
			TrackName: track.Name,
		})

		if existing[track.ID] {
			result.TracksSkipped++
			continue
		}
		if err := target.AddTracks(ctx, targetPlaylistID, []string{track.ID}); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			e.logger.Warn("failed to move track", "track_id", track.ID, "error", err)
			result.TracksSkipped++
			continue
		}
		existing[track.ID] = true
		result.TracksAdded++
	}

	if err := target.DeletePlaylist(ctx, sourcePlaylistID); err != nil {
		e.logger.Warn("failed to delete source playlist", "playlist_id", sourcePlaylistID, "error", err)
	} else {
		result.SourceDeleted = true
	}

	sendProgress(progress, ProgressUpdate{Phase: PhaseDone, Current: len(sourceTracks), Total: len(sourceTracks)})
	return result, nil
}
