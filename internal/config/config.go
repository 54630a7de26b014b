package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"karolbroda.com/encore/internal/logging"
)

const (
	DefaultCatalogURL   = "http://localhost:5000"
	DefaultLrclibURL    = "https://lrclib.net/api"
	DefaultMprisService = "org.mpris.MediaPlayer2.vlc"
	DefaultLyricsSource = "chain"
	DefaultRecentsLimit = 10
	DefaultHTTPTimeout  = 10 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
	DefaultCacheTTL     = 30 * 24 * time.Hour
)

type Config struct {
	CatalogURL      string
	CatalogPassword string
	LrclibURL       string
	LyricsSource    string
	MprisService    string
	SyncOffset      float64
	HideHeader      bool
	KittyGraphics   bool
	DataDir         string
	CacheTTL        time.Duration
	RecentsLimit    int
	RemoteAddr      string
	HTTPTimeout     time.Duration
	PollInterval    time.Duration
	Log             logging.Config
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	// a missing .env is fine
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		dataDir = defaultDataDir()
	}

	return &Config{
		CatalogURL:      getEnv("CATALOG_URL", DefaultCatalogURL),
		CatalogPassword: getEnv("CATALOG_PASSWORD", ""),
		LrclibURL:       getEnv("LRCLIB_URL", DefaultLrclibURL),
		LyricsSource:    getEnv("LYRICS_SOURCE", DefaultLyricsSource),
		MprisService:    getEnv("MPRIS_SERVICE", DefaultMprisService),
		SyncOffset:      getEnvFloat("SYNC_OFFSET", 0),
		HideHeader:      getEnvTruthy("HIDE_HEADER"),
		KittyGraphics:   getEnvTruthy("KITTY_GRAPHICS"),
		DataDir:         dataDir,
		CacheTTL:        getEnvDuration("CACHE_TTL", DefaultCacheTTL),
		RecentsLimit:    getEnvInt("RECENTS_LIMIT", DefaultRecentsLimit),
		RemoteAddr:      getEnv("REMOTE_ADDR", ""),
		HTTPTimeout:     getEnvDuration("HTTP_TIMEOUT", DefaultHTTPTimeout),
		PollInterval:    getEnvDuration("POLL_INTERVAL", DefaultPollInterval),
		Log: logging.Config{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "file"),
			FilePath:   getEnv("LOG_FILE_PATH", filepath.Join(dataDir, "encore.log")),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 10),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 28),
		},
	}
}

func (c *Config) Validate() error {
	if err := validateURL("CATALOG_URL", c.CatalogURL); err != nil {
		return err
	}
	if c.LyricsSource != "catalog" {
		if err := validateURL("LRCLIB_URL", c.LrclibURL); err != nil {
			return err
		}
	}

	switch c.LyricsSource {
	case "catalog", "lrclib", "chain":
	default:
		return fmt.Errorf("LYRICS_SOURCE must be catalog, lrclib or chain, got %q", c.LyricsSource)
	}

	if c.MprisService == "" {
		return fmt.Errorf("MPRIS_SERVICE is required")
	}
	if c.RecentsLimit <= 0 {
		return fmt.Errorf("RECENTS_LIMIT must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.PollInterval < 10*time.Millisecond {
		return fmt.Errorf("POLL_INTERVAL must be at least 10ms")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	return nil
}

// CacheDir is where lyrics cache entries live.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "lyrics")
}

func (c *Config) RecentsPath() string {
	return filepath.Join(c.DataDir, "recents.db")
}

func validateURL(key string, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s is not a valid url: %q", key, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be http or https, got %q", key, u.Scheme)
	}
	return nil
}

func defaultDataDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "encore")
}

func getEnv(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvTruthy(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
