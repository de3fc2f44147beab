// Package config provides the YAML configuration model with full
// load/save behavior, including first-run config creation and 0600
// permissions.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Source types understood by the feed layer.
const (
	SourceJSON = "json"
	SourceICS  = "ics"
)

// SourceConfig describes a single external event source.
type SourceConfig struct {
	// ID is an internal identifier used for cache keys and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
	// URL is the feed endpoint; plain paths and file:// URLs read from disk.
	URL string `yaml:"url" json:"url"`
	// Type selects the payload decoder: "json" (native feed) or "ics".
	Type string `yaml:"type" json:"type"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// AMQPConfig points at the broker that receives reminder notifications.
type AMQPConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     string `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Queue    string `yaml:"queue" json:"queue"`
}

// SnapshotConfig controls the headless capture of the widget page.
type SnapshotConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// URL is the page to capture; empty means the local web server root.
	URL    string `yaml:"url" json:"url"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA display timezone (e.g. "Europe/Stockholm").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron schedules the periodic source refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays bounds recurrence expansion around today.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// DataDir holds the feed cache database and capture output.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Sources is the list of subscribed event feeds.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// AMQP, if non-nil, enables reminder notifications.
	AMQP *AMQPConfig `yaml:"amqp,omitempty" json:"amqp,omitempty"`

	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Europe/Stockholm",
		RefreshCron: "*/15 * * * *",
		HorizonDays: 60,
		DataDir:     "./var",
		LogLevel:    "info",
		Sources:     []SourceConfig{},
		BasicAuth:   nil,
		AMQP:        nil,
		Snapshot: SnapshotConfig{
			Enabled: false,
			Width:   1200,
			Height:  825,
		},
	}
}

// Normalize fills missing/zero values with defaults so partially filled
// configs from older versions still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Stockholm"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 60
	}
	if c.DataDir == "" {
		c.DataDir = "./var"
	}
	switch c.LogLevel {
	case "debug", "info", "error":
	default:
		c.LogLevel = "info"
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		switch c.Sources[i].Type {
		case SourceJSON, SourceICS:
		default:
			// Unknown decoder; treat as the native feed format.
			c.Sources[i].Type = SourceJSON
		}
		if c.Sources[i].ID == "" {
			c.Sources[i].ID = c.Sources[i].URL
		}
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = 1200
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = 825
	}
}

// CachePath is the feed cache database location under DataDir.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "feeds.db")
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create the parent directory, write a
//     default config with 0600 perms and return it.
//   - If the file exists: unmarshal and normalize.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically: temp file in the target
// directory, 0600 perms, then rename. The parent directory is created 0700.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".dayblazer-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save writes the receiver to path.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
