package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/hazelvane/beatmigrate/internal/services"
	"github.com/hazelvane/beatmigrate/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config.toml, using defaults", "error", err)
		}
	}

	var spotifyService *services.SpotifyService
	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		if svc, err := services.NewSpotifyService(config.Credentials.Spotify); err == nil {
			spotifyService = svc
		} else {
			logger.Warn("spotify service unavailable", "error", err)
		}
	}

	tidalService := services.NewTidalService(config.Credentials.Tidal)

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Spotify: spotifyService,
		Tidal:   tidalService,
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "beatmigrate",
		Usage:    "Migrate playlists and liked songs from Spotify to Tidal",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
