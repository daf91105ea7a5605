package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Board    BoardConfig
	Tracker  TrackerConfig
	Sync     SyncConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string
	Env  string // development or production
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver string // sqlite or postgres
	DSN    string
}

// RedisConfig holds Redis connection settings. An empty host disables
// webhook delivery dedup.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig holds JWT settings for the projects API.
type AuthConfig struct {
	JWTSecret string
	Enabled   bool
}

// BoardConfig holds board platform credentials.
type BoardConfig struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	BaseURL      string
}

// TrackerConfig holds task platform credentials.
type TrackerConfig struct {
	BaseURL    string
	Username   string
	APIToken   string
	ProjectKey string
	DoneStatus string
	OpenStatus string
}

// SyncConfig holds sync engine settings.
type SyncConfig struct {
	CallbackBaseURL string        // base URL platforms deliver webhooks to
	StaleThreshold  time.Duration // health degrades past this sync age
	EventRetention  time.Duration // processed webhook events older than this are swept
	SweepInterval   time.Duration
	DedupTTL        time.Duration // how long a webhook delivery id stays marked
}

// Load loads configuration from config.toml plus BOARDSYNC_-prefixed
// environment overrides, falling back to built-in defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("BOARDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("server.port"),
			Env:  v.GetString("server.env"),
		},
		Database: DatabaseConfig{
			Driver: v.GetString("database.driver"),
			DSN:    v.GetString("database.dsn"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Enabled:   v.GetBool("auth.enabled"),
		},
		Board: BoardConfig{
			ClientID:     v.GetString("board.client_id"),
			ClientSecret: v.GetString("board.client_secret"),
			AccessToken:  v.GetString("board.access_token"),
			BaseURL:      v.GetString("board.base_url"),
		},
		Tracker: TrackerConfig{
			BaseURL:    v.GetString("tracker.base_url"),
			Username:   v.GetString("tracker.username"),
			APIToken:   v.GetString("tracker.api_token"),
			ProjectKey: v.GetString("tracker.project_key"),
			DoneStatus: v.GetString("tracker.done_status"),
			OpenStatus: v.GetString("tracker.open_status"),
		},
		Sync: SyncConfig{
			CallbackBaseURL: v.GetString("sync.callback_base_url"),
			StaleThreshold:  v.GetDuration("sync.stale_threshold"),
			EventRetention:  v.GetDuration("sync.event_retention"),
			SweepInterval:   v.GetDuration("sync.sweep_interval"),
			DedupTTL:        v.GetDuration("sync.dedup_ttl"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "boardsync.db")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.enabled", true)
	v.SetDefault("tracker.done_status", "Done")
	v.SetDefault("tracker.open_status", "To Do")
	v.SetDefault("sync.stale_threshold", time.Hour)
	v.SetDefault("sync.event_retention", 30*24*time.Hour)
	v.SetDefault("sync.sweep_interval", 6*time.Hour)
	v.SetDefault("sync.dedup_ttl", 24*time.Hour)
}

func (c *Config) validate() error {
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for postgres")
	}
	return nil
}
