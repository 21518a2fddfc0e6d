// Package config loads simdash settings from YAML, .env and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the service address baked in at build time
// (e.g. -X github.com/daviddao/simdash/internal/config.DefaultBaseURL=http://sim:4000).
var DefaultBaseURL = "http://localhost:4000"

// Config is the full client configuration.
type Config struct {
	APIURL         string        `yaml:"api_url"`
	PushURL        string        `yaml:"push_url"`
	LogFile        string        `yaml:"log_file"`
	LogLevel       string        `yaml:"log_level"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	List           ListDefaults  `yaml:"list"`
}

// ListDefaults are the initial simulations list controls.
type ListDefaults struct {
	Status         string `yaml:"status"`
	OrderBy        string `yaml:"order_by"`
	OrderDirection string `yaml:"order_direction"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		APIURL:   DefaultBaseURL,
		LogLevel: "info",
		List: ListDefaults{
			OrderBy:        "creation_date",
			OrderDirection: "DESC",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path skips the file.
// Environment overrides are applied afterwards, see ApplyEnv.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file from the working directory when present.
// Variables already set in the environment win.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load()
}

// ApplyEnv overrides fields from SIMDASH_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SIMDASH_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("SIMDASH_PUSH_URL"); v != "" {
		c.PushURL = v
	}
	if v := os.Getenv("SIMDASH_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("SIMDASH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks fields that cannot be defaulted.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url must not be empty")
	}
	switch strings.ToUpper(c.List.OrderDirection) {
	case "", "ASC", "DESC":
	default:
		return fmt.Errorf("list.order_direction %q (valid: ASC, DESC)", c.List.OrderDirection)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	return nil
}

// PushEndpoint returns the websocket URL of the push channel. Without an
// explicit push_url it is derived from the API URL: http(s) becomes ws(s)
// and the path /ws is used.
func (c Config) PushEndpoint() string {
	if c.PushURL != "" {
		return c.PushURL
	}
	base := strings.TrimRight(c.APIURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}

// LogPath returns the diagnostic log path, defaulting to ~/.simdash/debug.log.
func (c Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(defaultDir, "debug.log")
	}
	return filepath.Join(home, defaultDir, "debug.log")
}
