// Package consolecfg loads the console's TOML configuration.
package consolecfg

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	TokenStoreFile   = "file"
	TokenStoreSQLite = "sqlite"

	appDir = "case-console"
)

type Config struct {
	BaseURL    string
	TokenStore string
	TokenPath  string
	Timeout    time.Duration
	LogLevel   slog.Level
}

type fileConfig struct {
	BaseURL    string `toml:"base_url"`
	TokenStore string `toml:"token_store"`
	TokenPath  string `toml:"token_path"`
	Timeout    string `toml:"timeout"`
	LogLevel   string `toml:"log_level"`
}

func Default() Config {
	return Config{
		BaseURL:    "http://localhost:4000",
		TokenStore: TokenStoreFile,
		Timeout:    30 * time.Second,
		LogLevel:   slog.LevelWarn,
	}
}

// DefaultPath is config.toml under the user's config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", appDir, "config.toml")
	}
	return filepath.Join(dir, appDir, "config.toml")
}

// Load reads path over the defaults. A missing file is not an error when
// the path was not chosen explicitly.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		return cfg, cfg.finish()
	default:
		return Config{}, fmt.Errorf("load console config: %w", err)
	}

	if meta.IsDefined("base_url") {
		cfg.BaseURL = strings.TrimSpace(raw.BaseURL)
	}

	if meta.IsDefined("token_store") {
		cfg.TokenStore = strings.ToLower(strings.TrimSpace(raw.TokenStore))
	}

	if meta.IsDefined("token_path") {
		cfg.TokenPath = strings.TrimSpace(raw.TokenPath)
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}

	if meta.IsDefined("log_level") {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(raw.LogLevel))); err != nil {
			return Config{}, fmt.Errorf("parse log_level: %w", err)
		}
	}

	return cfg, cfg.finish()
}

func (c *Config) finish() error {
	if c.TokenPath == "" {
		c.TokenPath = defaultTokenPath(c.TokenStore)
	}
	return c.Validate()
}

func (c Config) Validate() error {
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", c.BaseURL)
	}

	switch c.TokenStore {
	case TokenStoreFile, TokenStoreSQLite:
	default:
		return fmt.Errorf("token_store must be %q or %q", TokenStoreFile, TokenStoreSQLite)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

func defaultTokenPath(store string) string {
	name := "session.json"
	if store == TokenStoreSQLite {
		name = "session.db"
	}
	return filepath.Join(filepath.Dir(DefaultPath()), name)
}
