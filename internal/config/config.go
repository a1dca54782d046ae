package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/entreepos/entree-web/internal/messenger"
)

type Config struct {
	HTTPAddr       string `toml:"http_addr"`        // ENTREE_HTTP_ADDR (default "127.0.0.1:8123")
	DatabasePath   string `toml:"database_path"`    // ENTREE_DATABASE_PATH (default: app data dir)
	PublicDir      string `toml:"public_dir"`       // ENTREE_PUBLIC_DIR (default "public")
	AuthBackendURL string `toml:"auth_backend_url"` // ENTREE_AUTH_BACKEND_URL (optional, empty = forms answer 503)
	LogLevel       string `toml:"log_level"`        // ENTREE_LOG_LEVEL (default "info")
	Dev            bool   `toml:"dev"`              // ENTREE_DEV

	// Client holds the values handed to the browser.
	Client messenger.Config `toml:"client"` // ENTREE_MESSENGER_APP_ID, ENTREE_MESSENGER_PAGE_ID
}

func defaults() *Config {
	return &Config{
		HTTPAddr:  "127.0.0.1:8123",
		PublicDir: "public",
		LogLevel:  "info",
	}
}

// Load builds the configuration from the TOML file named by ENTREE_CONFIG (if
// any) and then applies ENTREE_* environment overrides.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("ENTREE_CONFIG"))
}

func LoadFile(path string) (*Config, error) {
	c := defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	c.HTTPAddr = envOrDefault("ENTREE_HTTP_ADDR", c.HTTPAddr)
	c.DatabasePath = envOrDefault("ENTREE_DATABASE_PATH", c.DatabasePath)
	c.PublicDir = envOrDefault("ENTREE_PUBLIC_DIR", c.PublicDir)
	c.AuthBackendURL = envOrDefault("ENTREE_AUTH_BACKEND_URL", c.AuthBackendURL)
	c.LogLevel = envOrDefault("ENTREE_LOG_LEVEL", c.LogLevel)
	c.Client.AppID = envOrDefault("ENTREE_MESSENGER_APP_ID", c.Client.AppID)
	c.Client.PageID = envOrDefault("ENTREE_MESSENGER_PAGE_ID", c.Client.PageID)

	if v := os.Getenv("ENTREE_DEV"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("ENTREE_DEV: %w", err)
		}
		c.Dev = dev
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("ENTREE_HTTP_ADDR must not be empty")
	}
	if c.AuthBackendURL != "" {
		u, err := url.Parse(c.AuthBackendURL)
		if err != nil {
			return fmt.Errorf("ENTREE_AUTH_BACKEND_URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("ENTREE_AUTH_BACKEND_URL: unsupported scheme %q", u.Scheme)
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("ENTREE_LOG_LEVEL: unknown level %q", c.LogLevel)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
