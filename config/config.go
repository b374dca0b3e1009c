// Package config loads editor service settings from defaults, an optional
// TOML file, a .env file and the environment, in that order of precedence.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"prism-task-editor/domain"
)

const (
	envConfigFile     = "EDITOR_CONFIG"
	envDebug          = "DEBUG"
	envStorageConn    = "STORAGE_CONNECTION_STRING"
	envTagsTable      = "TAGS_TABLE"
	envSeedTags       = "SEED_TAGS"
	envRedisConn      = "REDIS_CONNECTION_STRING"
	envTagCacheTTL    = "TAG_CACHE_TTL"
	envSessionTTL     = "SESSION_TTL"
	envNotifyChannel  = "NOTIFICATIONS_CHANNEL"
	envPort           = "FUNCTIONS_CUSTOMHANDLER_PORT"
	envMaxSessions    = "MAX_SESSIONS"
	defaultListenAddr = ":8080"
)

// Config holds the editor service settings.
type Config struct {
	ListenAddr              string        `toml:"listen_addr"`
	Debug                   bool          `toml:"debug"`
	StorageConnectionString string        `toml:"storage_connection_string"`
	TagsTable               string        `toml:"tags_table"`
	SeedTags                bool          `toml:"seed_tags"`
	RedisConnectionString   string        `toml:"redis_connection_string"`
	TagCacheTTL             time.Duration `toml:"tag_cache_ttl"`
	SessionTTL              time.Duration `toml:"session_ttl"`
	MaxSessions             int           `toml:"max_sessions"`
	NotificationsChannel    string        `toml:"notifications_channel"`
	Tags                    []domain.Tag  `toml:"tags"`
}

// Defaults returns the built-in settings.
func Defaults() *Config {
	return &Config{
		ListenAddr:           defaultListenAddr,
		TagCacheTTL:          10 * time.Minute,
		SessionTTL:           30 * time.Minute,
		MaxSessions:          10000,
		NotificationsChannel: "editor-toasts",
		Tags:                 domain.DefaultTags(),
	}
}

// Load reads .env from the working directory when present and then resolves the configuration.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv resolves the configuration using lookup for environment values.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Defaults()
	if path, ok := lookup(envConfigFile); ok && path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(envStorageConn, &cfg.StorageConnectionString)
	str(envTagsTable, &cfg.TagsTable)
	str(envRedisConn, &cfg.RedisConnectionString)
	str(envNotifyChannel, &cfg.NotificationsChannel)
	if v, ok := lookup(envPort); ok && v != "" {
		cfg.ListenAddr = ":" + v
	}

	for key, dst := range map[string]*bool{envDebug: &cfg.Debug, envSeedTags: &cfg.SeedTags} {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = b
		}
	}

	for key, dst := range map[string]*time.Duration{envTagCacheTTL: &cfg.TagCacheTTL, envSessionTTL: &cfg.SessionTTL} {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}

	if v, ok := lookup(envMaxSessions); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envMaxSessions, err)
		}
		cfg.MaxSessions = n
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.SessionTTL <= 0 {
		return fmt.Errorf("invalid %s: must be greater than zero", envSessionTTL)
	}
	if c.TagCacheTTL < 0 {
		return fmt.Errorf("invalid %s: must not be negative", envTagCacheTTL)
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("invalid %s: must be greater than zero", envMaxSessions)
	}
	if c.StorageConnectionString != "" && c.TagsTable == "" {
		return errors.New("missing storage config: TAGS_TABLE is required with STORAGE_CONNECTION_STRING")
	}
	return nil
}

// RedisOptions parses either a redis:// URL or an Azure style "host:port,password=...,ssl=True" string.
func RedisOptions(conn string) (*redis.Options, error) {
	if conn == "" {
		return nil, errors.New("empty redis connection string")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}
