package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultPrefix       = "!"
	DefaultAPIHost      = "0.0.0.0"
	DefaultAPIPort      = 8080
	DefaultRedisChannel = "queuebot:events"
	DefaultStorePath    = "queuebot.db"
	DefaultLogLevel     = "info"
)

var ErrMissingToken = errors.New("missing discord token (set DISCORD_TOKEN or discord.token)")

type Config struct {
	Discord DiscordConfig `koanf:"discord"`
	API     APIConfig     `koanf:"api"`
	Redis   RedisConfig   `koanf:"redis"`
	Store   StoreConfig   `koanf:"store"`
	Log     LogConfig     `koanf:"log"`
}

type DiscordConfig struct {
	Token  string `koanf:"token"`
	Prefix string `koanf:"prefix"` // command prefix (default: "!")
}

// APIConfig holds the status HTTP API settings.
type APIConfig struct {
	Enabled       *bool  `koanf:"enabled"` // default: true
	Host          string `koanf:"host"`
	Port          int    `koanf:"port"`
	AllowedOrigin string `koanf:"allowed_origin"` // CORS origin (default: "*")
}

// RedisConfig enables publishing notifications when URL is set.
type RedisConfig struct {
	URL     string `koanf:"url"` // e.g., "redis://localhost:6379/0"
	Channel string `koanf:"channel"`
}

type StoreConfig struct {
	Path string `koanf:"path"` // sqlite file; ":memory:" keeps nothing across restarts
}

type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

// Load reads the given TOML files in order (last wins), then the
// environment. Without paths the default locations are used.
func Load(paths ...string) (*Config, error) {
	k := koanf.New(".")

	if len(paths) == 0 {
		paths = getConfigPaths()
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("loading %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.Discord.Token == "" {
		return nil, ErrMissingToken
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if _, ok := os.LookupEnv("DISABLE_WEB_API"); ok {
		disabled := false
		c.API.Enabled = &disabled
	}
	if v := os.Getenv("API_HOST"); v != "" {
		c.API.Host = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("incorrect value for API_PORT: %q", v)
		}
		c.API.Port = port
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Discord.Prefix == "" {
		c.Discord.Prefix = DefaultPrefix
	}
	if c.API.Enabled == nil {
		enabled := true
		c.API.Enabled = &enabled
	}
	if c.API.Host == "" {
		c.API.Host = DefaultAPIHost
	}
	if c.API.Port <= 0 {
		c.API.Port = DefaultAPIPort
	}
	if c.API.AllowedOrigin == "" {
		c.API.AllowedOrigin = "*"
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = DefaultRedisChannel
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}
	c.Store.Path = expandPath(c.Store.Path)
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// APIEnabled reports whether the status API should be served.
func (c *Config) APIEnabled() bool {
	return c.API.Enabled == nil || *c.API.Enabled
}

func (c *Config) APIAddr() string {
	return net.JoinHostPort(c.API.Host, strconv.Itoa(c.API.Port))
}

// HasRedisConfig returns true if notification publishing is configured.
func (c *Config) HasRedisConfig() bool {
	return strings.TrimSpace(c.Redis.URL) != ""
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/queuebot/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "queuebot", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
