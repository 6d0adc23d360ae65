package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds relational store connection settings.
// Driver selects the backend: postgres, sqlite3 or memory.
type DatabaseConfig struct {
	Driver             string
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	Path               string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings used for registry backups.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether an object storage endpoint is configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Channel is a chat a requester must belong to before receiving files.
type Channel struct {
	Name   string
	URL    string
	ChatID int64
}

// BotConfig holds chat platform settings.
type BotConfig struct {
	Token               string
	AdminID             int64
	StorageChannelID    int64
	ShareLinkHost       string
	DeleteAfter         time.Duration
	RequiredChannels    []Channel
	MembershipCacheTTL  time.Duration
	MembershipCacheSize int
	PollTimeoutSec      int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port          string
	LogLevel      string
	LogFormat     string
	SweepInterval time.Duration
	Bot           BotConfig
	Database      DatabaseConfig
	MinIO         MinIOConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() *AppConfig {
	return &AppConfig{
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		SweepInterval: getEnvDuration("DELETION_SWEEP_INTERVAL", 10*time.Second),
		Bot: BotConfig{
			Token:               getEnv("BOT_TOKEN", ""),
			AdminID:             getEnvInt64("ADMIN_USER_ID", 0),
			StorageChannelID:    getEnvInt64("STORAGE_CHANNEL_ID", 0),
			ShareLinkHost:       getEnv("SHARE_LINK_HOST", "t.me"),
			DeleteAfter:         getEnvDuration("DELETE_AFTER", 5*time.Minute),
			RequiredChannels:    parseChannels(getEnv("REQUIRED_CHANNELS", "")),
			MembershipCacheTTL:  getEnvDuration("MEMBERSHIP_CACHE_TTL", time.Minute),
			MembershipCacheSize: getEnvInt("MEMBERSHIP_CACHE_SIZE", 1024),
			PollTimeoutSec:      getEnvInt("BOT_POLL_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:             getEnv("DB_DRIVER", "postgres"),
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			Path:               getEnv("DB_PATH", "filebot.db"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
	}
}

// Validate checks the values the bot cannot run without.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Bot.Token == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	if c.Bot.AdminID == 0 {
		errs = append(errs, errors.New("ADMIN_USER_ID is required"))
	}
	if c.Bot.StorageChannelID == 0 {
		errs = append(errs, errors.New("STORAGE_CHANNEL_ID is required"))
	}
	if c.Bot.DeleteAfter <= 0 {
		errs = append(errs, errors.New("DELETE_AFTER must be positive"))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite3", "memory":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported", c.Database.Driver))
	}
	return errors.Join(errs...)
}

// parseChannels reads entries of the form "name|url|chat_id" separated by ";".
// Entries without a usable chat id are skipped since membership cannot be queried for them.
func parseChannels(raw string) []Channel {
	var out []Channel
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) != 3 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		out = append(out, Channel{
			Name:   strings.TrimSpace(parts[0]),
			URL:    strings.TrimSpace(parts[1]),
			ChatID: id,
		})
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
