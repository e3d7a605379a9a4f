// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// AppName is the application directory name under the user config dir.
	AppName = "aidplug"

	// SessionFile is the persisted session filename.
	SessionFile = "session.json"
)

// ErrMissingBackend is returned when the backend URL or anon key is unset.
var ErrMissingBackend = errors.New("missing Supabase environment variables")

// Config holds every setting the binaries read.
type Config struct {
	SupabaseURL     string
	SupabaseAnonKey string

	HTTPAddr       string
	SiteURL        string
	SessionFile    string
	LogLevel       string
	RequestTimeout time.Duration

	// DatabaseURL switches the record store to a direct Postgres connection.
	DatabaseURL string

	RedisURL string
	CacheTTL time.Duration

	AMQPURL string

	Blob BlobConfig
}

// BlobConfig selects and configures the photo store.
type BlobConfig struct {
	Driver      string
	Bucket      string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	PublicURL   string
}

// Load reads the .env file when present and then the process environment.
// The returned bool reports whether a .env file was loaded.
func Load(files ...string) (*Config, bool, error) {
	loaded := godotenv.Load(files...) == nil

	cfg := &Config{
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey: os.Getenv("SUPABASE_ANON_KEY"),
		HTTPAddr:        getenv("CRM_HTTP_ADDR", ":8080"),
		SiteURL:         getenv("CRM_SITE_URL", "http://localhost:5173"),
		SessionFile:     getenv("CRM_SESSION_FILE", filepath.Join(DefaultConfigDir(), SessionFile)),
		LogLevel:        getenv("CRM_LOG_LEVEL", "info"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		AMQPURL:         os.Getenv("AMQP_URL"),
		Blob: BlobConfig{
			Driver:     getenv("CRM_BLOB_DRIVER", "supabase"),
			Bucket:     getenv("CRM_BLOB_BUCKET", "avatars"),
			S3Region:   getenv("CRM_BLOB_S3_REGION", "us-east-1"),
			S3Endpoint: os.Getenv("CRM_BLOB_S3_ENDPOINT"),
			PublicURL:  os.Getenv("CRM_BLOB_PUBLIC_URL"),
		},
	}

	var err error
	if cfg.RequestTimeout, err = durationEnv("CRM_REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, loaded, err
	}
	if cfg.CacheTTL, err = durationEnv("CRM_CACHE_TTL", time.Minute); err != nil {
		return nil, loaded, err
	}
	if v := os.Getenv("CRM_BLOB_S3_PATH_STYLE"); v != "" {
		if cfg.Blob.S3PathStyle, err = strconv.ParseBool(v); err != nil {
			return nil, loaded, fmt.Errorf("CRM_BLOB_S3_PATH_STYLE: %w", err)
		}
	}
	if cfg.Blob.Driver != "supabase" && cfg.Blob.Driver != "s3" {
		return nil, loaded, fmt.Errorf("CRM_BLOB_DRIVER: unknown driver %q", cfg.Blob.Driver)
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseAnonKey == "" {
		return nil, loaded, ErrMissingBackend
	}
	return cfg, loaded, nil
}

// DefaultConfigDir returns XDG_CONFIG_HOME/aidplug or $HOME/.config/aidplug.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
