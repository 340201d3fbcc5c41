package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Limits      LimitsConfig      `toml:"limits"`
	Sessions    SessionsConfig    `toml:"sessions"`
	Cache       CacheConfig       `toml:"cache"`
}

// CredentialsConfig contains provider-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Tidal   TidalConfig   `toml:"tidal"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// TidalConfig contains Tidal API credentials for the device authorization flow.
type TidalConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	FrontendURL      string `toml:"frontend_url"`
	FrontendRedirect string `toml:"frontend_redirect"`
}

// LimitsConfig contains the per-user daily quota limits.
type LimitsConfig struct {
	MigrationsPerDay int     `toml:"migrations_per_day"`
	FetchLikedPerDay int     `toml:"fetch_liked_per_day"`
	SearchRate       float64 `toml:"search_rate"` // target-provider searches per second
}

// SessionsConfig contains device-authorization session settings.
type SessionsConfig struct {
	TTLMinutes int `toml:"ttl_minutes"`
}

// CacheConfig contains staleness windows for the insight cache, in hours.
type CacheConfig struct {
	LibraryStatsHours int `toml:"library_stats_hours"`
	TopTracksHours    int `toml:"top_tracks_hours"`
	PlaylistsHours    int `toml:"playlists_hours"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path,
// then applies environment variable overrides for credentials.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded
// example config, with environment variable overrides applied.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnv overrides credentials and deployment settings from the environment.
// Secrets belong in the environment on hosted deployments, not in config.toml.
func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"SPOTIFY_CLIENT_ID":     &c.Credentials.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": &c.Credentials.Spotify.ClientSecret,
		"SPOTIFY_REDIRECT_URI":  &c.Credentials.Spotify.RedirectURI,
		"TIDAL_CLIENT_ID":       &c.Credentials.Tidal.ClientID,
		"TIDAL_CLIENT_SECRET":   &c.Credentials.Tidal.ClientSecret,
		"DATABASE_PATH":         &c.Database.Path,
		"FRONTEND_URL":          &c.Server.FrontendURL,
		"FRONTEND_REDIRECT":     &c.Server.FrontendRedirect,
	}

	for key, target := range overrides {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
}

// Validate checks that the configuration carries enough to start the server.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	return nil
}
