package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hazelvane/beatmigrate/internal/server"
	"github.com/hazelvane/beatmigrate/internal/services"
	"github.com/hazelvane/beatmigrate/internal/shared"
)

func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify operations",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authenticate with Spotify using OAuth2",
				Action: r.SpotifyLogin,
			},
			{
				Name:  "playlists",
				Usage: "List Spotify playlists",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.SpotifyPlaylists,
			},
			{
				Name:  "liked",
				Usage: "List liked songs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of tracks to return",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.SpotifyLiked,
			},
		},
	}
}

// spotifyLogin runs the browser OAuth flow on a temporary local server bound
// to the configured redirect URI and returns the authenticated session.
func (r *Runner) spotifyLogin(ctx context.Context) (services.SourceSession, error) {
	if err := r.requireSpotify(); err != nil {
		return nil, err
	}

	redirect, err := url.Parse(r.config.Credentials.Spotify.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("%w: bad redirect URI: %v", shared.ErrInvalidConfig, err)
	}

	state := shared.GenerateID()
	callback := server.NewAuthCallback(state)

	router := server.NewBasicRouter()
	router.Handler(callback)

	srv := &http.Server{Addr: redirect.Host, Handler: router}
	go srv.ListenAndServe()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	r.writePlainln("Open this URL in your browser to log in:")
	r.writePlain("%s\n", r.spotify.AuthURL(state))

	var result server.AuthCode
	select {
	case result = <-callback.Result():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if result.Err != nil {
		return nil, result.Err
	}

	return r.spotify.Connect(ctx, result.Code)
}

// SpotifyLogin authenticates and prints the user's profile.
func (r *Runner) SpotifyLogin(ctx context.Context, cmd *cli.Command) error {
	session, err := r.spotifyLogin(ctx)
	if err != nil {
		return err
	}

	profile, err := session.Profile(ctx)
	if err != nil {
		return err
	}

	return r.writePlainln("Logged in as %s (%s)", profile.DisplayName, profile.ID)
}

// SpotifyPlaylists lists the user's playlists.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	session, err := r.spotifyLogin(ctx)
	if err != nil {
		return err
	}

	playlists, err := session.Playlists(ctx)
	if err != nil {
		return err
	}

	return r.writeJSON(playlists, cmd.Bool("pretty"))
}

// SpotifyLiked lists the user's saved tracks.
func (r *Runner) SpotifyLiked(ctx context.Context, cmd *cli.Command) error {
	session, err := r.spotifyLogin(ctx)
	if err != nil {
		return err
	}

	page, err := session.LikedTracks(ctx, int(cmd.Int("limit")), 0)
	if err != nil {
		return err
	}

	return r.writeJSON(page, cmd.Bool("pretty"))
}
