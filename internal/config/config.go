package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const envPrefix = "MANUTENZIONI_"

// S3 holds S3-compatible object storage settings.
type S3 struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PublicURL is the base used to build public object URLs. When empty,
	// objects are served through the API.
	PublicURL string
}

// Enabled reports whether enough settings are present to build a client.
func (s S3) Enabled() bool {
	return s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

// Backup controls the database snapshots uploaded to object storage.
type Backup struct {
	// Schedule is a cron spec; empty disables scheduled backups.
	Schedule string
	// Passphrase encrypts snapshots. Snapshots are uploaded in clear when empty.
	Passphrase string
	Retention  time.Duration
}

type Config struct {
	Port       string
	DBPath     string
	LogLevel   string
	LogFormat  string
	TimeZone   string
	SessionTTL time.Duration
	// CleanupSchedule is a cron spec for the expired session sweep.
	CleanupSchedule string
	// DirectoryFile optionally replaces the built-in useful numbers list.
	DirectoryFile string
	S3            S3
	Backup        Backup
}

func Default() Config {
	return Config{
		Port:            "8080",
		DBPath:          "manutenzioni.db",
		LogLevel:        "info",
		LogFormat:       "text",
		TimeZone:        "Europe/Rome",
		SessionTTL:      30 * 24 * time.Hour,
		CleanupSchedule: "@every 1h",
		S3:              S3{Region: "auto"},
		Backup:          Backup{Retention: 30 * 24 * time.Hour},
	}
}

// Load reads an optional .env file from the working directory and then the
// MANUTENZIONI_* environment variables on top of the defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function; empty values keep defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(envPrefix + key)); v != "" {
			*dst = v
		}
	}
	str("PORT", &cfg.Port)
	str("DB_PATH", &cfg.DBPath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("TIMEZONE", &cfg.TimeZone)
	str("CLEANUP_SCHEDULE", &cfg.CleanupSchedule)
	str("DIRECTORY_FILE", &cfg.DirectoryFile)
	str("S3_ENDPOINT", &cfg.S3.Endpoint)
	str("S3_REGION", &cfg.S3.Region)
	str("S3_BUCKET", &cfg.S3.Bucket)
	str("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	str("S3_SECRET_KEY", &cfg.S3.SecretKey)
	str("S3_PUBLIC_URL", &cfg.S3.PublicURL)
	str("BACKUP_SCHEDULE", &cfg.Backup.Schedule)
	str("BACKUP_PASSPHRASE", &cfg.Backup.Passphrase)

	dur := func(key string, dst *time.Duration) error {
		v := strings.TrimSpace(getenv(envPrefix + key))
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", envPrefix, key, err)
		}
		*dst = d
		return nil
	}
	if err := dur("SESSION_TTL", &cfg.SessionTTL); err != nil {
		return Config{}, err
	}
	if err := dur("BACKUP_RETENTION", &cfg.Backup.Retention); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.TimeZone, err)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.Backup.Retention <= 0 {
		return fmt.Errorf("backup retention must be positive")
	}
	return nil
}

// Location returns the configured time zone. Validate guarantees it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
