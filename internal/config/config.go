// Package config loads application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Duration bounds for configurable pomodoro phases.
const (
	MinPhaseSeconds = 60
	MaxPhaseSeconds = 4 * 60 * 60
)

// Defaults.
const (
	DefaultAddr         = "127.0.0.1:8080"
	DefaultRedirectURI  = "http://127.0.0.1:8080/callback"
	DefaultDataDir      = "data"
	DefaultWorkSeconds  = 25 * 60
	DefaultBreakSeconds = 5 * 60
	DefaultPollInterval = 5 * time.Second
	DefaultHideDelay    = 3 * time.Second
)

// ErrMissingCredentials is returned when SPOTIFY_ID or SPOTIFY_SECRET is not set.
var ErrMissingCredentials = errors.New("missing SPOTIFY_ID or SPOTIFY_SECRET environment variable")

// ErrDurationOutOfRange is returned for a configured phase duration outside
// the accepted range. The caller keeps its previous (or default) value.
var ErrDurationOutOfRange = fmt.Errorf("phase duration out of range [%d, %d] seconds", MinPhaseSeconds, MaxPhaseSeconds)

// Config holds the full application configuration.
type Config struct {
	Addr        string
	RedirectURI string
	DataDir     string
	DatabaseURL string // optional; file store is used when empty

	SpotifyID     string
	SpotifySecret string

	WorkSeconds  int
	BreakSeconds int

	LogPath  string
	LogLevel string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// Load reads configuration from the environment, consulting a .env file if
// present. Returns ErrMissingCredentials if the Spotify app credentials are
// not set. Out-of-range configured durations fall back to the defaults.
func Load() (*Config, error) {
	// godotenv will not override variables already set in the environment.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:          getEnv("DRIFT_ADDR", DefaultAddr),
		RedirectURI:   getEnv("DRIFT_REDIRECT_URI", DefaultRedirectURI),
		DataDir:       getEnv("DRIFT_DATA_DIR", DefaultDataDir),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SpotifyID:     os.Getenv("SPOTIFY_ID"),
		SpotifySecret: os.Getenv("SPOTIFY_SECRET"),
		WorkSeconds:   getEnvInt("DRIFT_WORK_SECONDS", DefaultWorkSeconds),
		BreakSeconds:  getEnvInt("DRIFT_BREAK_SECONDS", DefaultBreakSeconds),
		LogPath:       os.Getenv("DRIFT_LOG_PATH"),
		LogLevel:      getEnv("DRIFT_LOG_LEVEL", "info"),
	}

	if cfg.SpotifyID == "" || cfg.SpotifySecret == "" {
		return nil, ErrMissingCredentials
	}

	if err := ValidateDuration(cfg.WorkSeconds); err != nil {
		cfg.WorkSeconds = DefaultWorkSeconds
	}
	if err := ValidateDuration(cfg.BreakSeconds); err != nil {
		cfg.BreakSeconds = DefaultBreakSeconds
	}

	return cfg, nil
}

// ValidateDuration checks a phase duration in seconds against the accepted
// range. Returns ErrDurationOutOfRange when it falls outside.
func ValidateDuration(seconds int) error {
	if seconds < MinPhaseSeconds || seconds > MaxPhaseSeconds {
		return ErrDurationOutOfRange
	}
	return nil
}
