// Package config loads process configuration from the environment, reading
// a .env file first when one is present.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken   string   `env:"DISCORD_TOKEN"`
	DefaultPrefix  string   `env:"DEFAULT_PREFIX" envDefault:","`
	DeveloperID    string   `env:"DEVELOPER_ID"`
	GuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"json"`
	StoragePath   string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	DatabaseURL   string `env:"DATABASE_URL"`

	HTTPAddr string `env:"HTTP_ADDR"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"10"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`

	ClearMaxMessages int `env:"CLEAR_MAX_MESSAGES" envDefault:"1000"`
}

// Load reads .env files (missing files are ignored) and parses the
// environment into a Config. It reports whether a .env file was loaded.
func Load(files ...string) (*Config, bool, error) {
	loaded := godotenv.Load(files...) == nil

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, loaded, fmt.Errorf("parse environment: %w", err)
	}
	cfg.normalize()
	return &cfg, loaded, nil
}

func (c *Config) normalize() {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	list := c.GuildBlacklist[:0]
	for _, id := range c.GuildBlacklist {
		if id = strings.TrimSpace(id); id != "" {
			list = append(list, id)
		}
	}
	c.GuildBlacklist = list
}

// Validate checks the settings every entry point needs. The bot token is
// checked separately by the bot itself since the admin CLI does not need it.
func (c *Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case "json", "sqlite":
		if c.StoragePath == "" {
			errs = append(errs, fmt.Errorf("STORAGE_PATH is required for the %s driver", c.StorageDriver))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER %q is not one of json, sqlite, postgres", c.StorageDriver))
	}
	if strings.TrimSpace(c.DefaultPrefix) == "" {
		errs = append(errs, errors.New("DEFAULT_PREFIX must not be blank"))
	}
	if c.ClearMaxMessages < 1 {
		errs = append(errs, errors.New("CLEAR_MAX_MESSAGES must be positive"))
	}
	return errors.Join(errs...)
}

// IsDeveloper reports whether userID is the configured developer.
func (c *Config) IsDeveloper(userID string) bool {
	return c.DeveloperID != "" && c.DeveloperID == userID
}

// IsBlacklisted reports whether the bot should leave guildID.
func (c *Config) IsBlacklisted(guildID string) bool {
	return slices.Contains(c.GuildBlacklist, guildID)
}
