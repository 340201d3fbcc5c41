package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/hazelvane/beatmigrate/internal/models"
	"github.com/hazelvane/beatmigrate/internal/tasks"
	"github.com/hazelvane/beatmigrate/internal/ui"
)

func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Copy a Spotify playlist to Tidal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "playlist-id",
				Usage:    "Spotify playlist ID to migrate",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Name for the Tidal playlist",
			},
			&cli.BoolFlag{
				Name:  "favorites",
				Usage: "Add matched tracks to favorites instead of a playlist",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print the result",
			},
		},
		Action: r.Migrate,
	}
}

// Migrate copies one playlist end to end: Spotify login, Tidal device login,
// then the matching and delivery run with a live progress view.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	source, err := r.spotifyLogin(ctx)
	if err != nil {
		return err
	}

	target, err := r.tidalLogin(ctx)
	if err != nil {
		return err
	}

	playlistID := cmd.String("playlist-id")
	sourceTracks, err := source.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return err
	}

	refs := make([]models.TrackRef, 0, len(sourceTracks))
	for _, track := range sourceTracks {
		ref := track.Ref()
		if len(track.Artists) > 0 {
			ref.Artist = track.Artists[0]
		}
		refs = append(refs, ref)
	}

	dest := tasks.DestinationFromRequest(cmd.Bool("favorites"), "", cmd.String("name"))

	progress := make(chan tasks.ProgressUpdate, 16)
	program := tea.NewProgram(ui.NewMigrateModel(progress))

	var outcome *tasks.Outcome
	var migrateErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		outcome, migrateErr = r.engine.Migrate(ctx, target, refs, dest, progress)
		close(progress)
	}()

	if _, err := program.Run(); err != nil {
		return err
	}
	<-done
	if migrateErr != nil {
		return migrateErr
	}

	return r.writeJSON(map[string]any{
		"playlist_id":      outcome.PlaylistID,
		"playlist_name":    outcome.PlaylistName,
		"total_tracks":     outcome.TotalRequested,
		"migrated":         outcome.Migrated,
		"not_found":        len(outcome.NotFound),
		"not_found_tracks": outcome.NotFound,
	}, cmd.Bool("pretty"))
}
