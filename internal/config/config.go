// Package config loads application configuration from an optional YAML file,
// a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingCredentials is returned when SPOTIFY_ID or SPOTIFY_SECRET is not set.
	ErrMissingCredentials = errors.New("missing SPOTIFY_ID or SPOTIFY_SECRET")

	// ErrMissingGenAIKey is returned when GOOGLE_GENAI_API_KEY is not set.
	ErrMissingGenAIKey = errors.New("missing GOOGLE_GENAI_API_KEY")

	// ErrInvalidConfig wraps every other validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Session storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Spotify SpotifyConfig `yaml:"spotify"`
	GenAI   GenAIConfig   `yaml:"genai"`
	LastFM  LastFMConfig  `yaml:"lastfm"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

// SpotifyConfig holds Spotify OAuth credentials and top-items query settings.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	TopLimit     int    `yaml:"top_limit"`
	TimeRange    string `yaml:"time_range"`
}

// GenAIConfig holds Gemini API settings.
type GenAIConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	RPS     float64       `yaml:"rps"`
}

// LastFMConfig holds the optional Last.fm key used for genre enrichment.
type LastFMConfig struct {
	APIKey string `yaml:"api_key"`
}

// SessionConfig holds session storage settings.
type SessionConfig struct {
	Driver        string        `yaml:"driver"`
	DatabaseURL   string        `yaml:"database_url"`
	EncryptionKey string        `yaml:"encryption_key"`
	TTL           time.Duration `yaml:"ttl"`
	CleanupSpec   string        `yaml:"cleanup_spec"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               "127.0.0.1:8080",
			RateLimitPerMinute: 20,
		},
		Spotify: SpotifyConfig{
			RedirectURL: "http://127.0.0.1:8080/auth/callback",
			TopLimit:    10,
			TimeRange:   "medium_term",
		},
		GenAI: GenAIConfig{
			Model:   "gemini-2.0-flash",
			Timeout: 30 * time.Second,
			RPS:     1,
		},
		Session: SessionConfig{
			Driver:      DriverMemory,
			TTL:         24 * time.Hour,
			CleanupSpec: "@every 1h",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			FilePath:   "logs/music-personality.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads config from a YAML file (if it exists), then from .env and the
// environment. Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	c.Server.Addr = getEnv("ADDR", c.Server.Addr)
	c.Server.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.Server.RateLimitPerMinute)

	c.Spotify.ClientID = getEnv("SPOTIFY_ID", c.Spotify.ClientID)
	c.Spotify.ClientSecret = getEnv("SPOTIFY_SECRET", c.Spotify.ClientSecret)
	c.Spotify.RedirectURL = getEnv("SPOTIFY_REDIRECT_URL", c.Spotify.RedirectURL)
	c.Spotify.TopLimit = getEnvInt("TOP_LIMIT", c.Spotify.TopLimit)
	c.Spotify.TimeRange = getEnv("TIME_RANGE", c.Spotify.TimeRange)

	c.GenAI.APIKey = getEnv("GOOGLE_GENAI_API_KEY", c.GenAI.APIKey)
	c.GenAI.Model = getEnv("GENAI_MODEL", c.GenAI.Model)
	c.GenAI.BaseURL = getEnv("GENAI_BASE_URL", c.GenAI.BaseURL)
	c.GenAI.Timeout = getEnvDuration("GENAI_TIMEOUT", c.GenAI.Timeout)
	c.GenAI.RPS = getEnvFloat("GENAI_RPS", c.GenAI.RPS)

	c.LastFM.APIKey = getEnv("LASTFM_API_KEY", c.LastFM.APIKey)

	c.Session.Driver = getEnv("SESSION_DRIVER", c.Session.Driver)
	c.Session.DatabaseURL = getEnv("DATABASE_URL", c.Session.DatabaseURL)
	c.Session.EncryptionKey = getEnv("SESSION_KEY", c.Session.EncryptionKey)
	c.Session.TTL = getEnvDuration("SESSION_TTL", c.Session.TTL)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Logging.Output = getEnv("LOG_OUTPUT", c.Logging.Output)
	c.Logging.FilePath = getEnv("LOG_FILE", c.Logging.FilePath)
}

// Validate checks required fields and enumerations.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return ErrMissingCredentials
	}
	if c.GenAI.APIKey == "" {
		return ErrMissingGenAIKey
	}
	if c.Spotify.TopLimit < 1 || c.Spotify.TopLimit > 50 {
		return fmt.Errorf("%w: top_limit must be between 1 and 50, got %d", ErrInvalidConfig, c.Spotify.TopLimit)
	}

	switch c.Spotify.TimeRange {
	case "short_term", "medium_term", "long_term":
	default:
		return fmt.Errorf("%w: unknown time_range %q", ErrInvalidConfig, c.Spotify.TimeRange)
	}

	switch c.Session.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Session.DatabaseURL == "" {
			return fmt.Errorf("%w: session driver %q requires DATABASE_URL", ErrInvalidConfig, c.Session.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown session driver %q", ErrInvalidConfig, c.Session.Driver)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("%w: session ttl must be positive", ErrInvalidConfig)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
