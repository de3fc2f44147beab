package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "127.0.0.1:8080", cfg.Listen)
	require.Equal(t, "*/15 * * * *", cfg.RefreshCron)
	require.Equal(t, 60, cfg.HorizonDays)
	require.Equal(t, "info", cfg.LogLevel)
	require.NotNil(t, cfg.Sources)
	require.Nil(t, cfg.BasicAuth)
	require.Nil(t, cfg.AMQP)
	require.False(t, cfg.Snapshot.Enabled)
}

func TestNormalize(t *testing.T) {
	cfg := &Config{
		LogLevel: "verbose",
		Sources: []SourceConfig{
			{Name: "Work", URL: "https://example.com/work.json", Type: "yaml"},
			{ID: "cal", Name: "Calendar", URL: "https://example.com/cal.ics", Type: "ics"},
		},
	}
	cfg.Normalize()

	require.Equal(t, "127.0.0.1:8080", cfg.Listen)
	require.Equal(t, "Europe/Stockholm", cfg.Timezone)
	require.Equal(t, "*/15 * * * *", cfg.RefreshCron)
	require.Equal(t, 60, cfg.HorizonDays)
	require.Equal(t, "./var", cfg.DataDir)
	require.Equal(t, "info", cfg.LogLevel)

	// Unknown source type falls back to the native feed decoder, and a
	// missing ID is derived from the URL.
	require.Equal(t, SourceJSON, cfg.Sources[0].Type)
	require.Equal(t, "https://example.com/work.json", cfg.Sources[0].ID)
	require.Equal(t, SourceICS, cfg.Sources[1].Type)
	require.Equal(t, "cal", cfg.Sources[1].ID)

	require.Equal(t, 1200, cfg.Snapshot.Width)
	require.Equal(t, 825, cfg.Snapshot.Height)
}

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "dayblazer.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Listen, cfg.Listen)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dayblazer.yaml")
	doc := `
listen: "0.0.0.0:9999"
timezone: "UTC"
sources:
  - id: work
    name: Work feed
    url: https://example.com/work.json
    type: json
basic_auth:
  username: cal
  password: secret
amqp:
  host: localhost
  port: "5672"
  user: guest
  password: guest
  queue: reminders
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9999", cfg.Listen)
	require.Equal(t, "UTC", cfg.Timezone)
	require.Len(t, cfg.Sources, 1)
	require.Equal(t, "work", cfg.Sources[0].ID)
	require.NotNil(t, cfg.BasicAuth)
	require.Equal(t, "cal", cfg.BasicAuth.Username)
	require.NotNil(t, cfg.AMQP)
	require.Equal(t, "reminders", cfg.AMQP.Queue)
	// Normalization filled what the file left out.
	require.Equal(t, "*/15 * * * *", cfg.RefreshCron)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dayblazer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dayblazer.yaml")

	cfg := DefaultConfig()
	cfg.Listen = "127.0.0.1:7777"
	cfg.Sources = []SourceConfig{{ID: "local", Name: "Local", URL: "/tmp/feed.json", Type: "json"}}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7777", loaded.Listen)
	require.Len(t, loaded.Sources, 1)
	require.Equal(t, "local", loaded.Sources[0].ID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCachePath(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/dayblazer"}
	require.Equal(t, "/var/lib/dayblazer/feeds.db", cfg.CachePath())
}
