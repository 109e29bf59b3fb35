package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalYAML = `
app:
  name: fulfillment-worker
store:
  provider: local
  root: /srv/assets
  incoming_folder: incoming
  processed_folder: processed
  deliverables_folder: deliverables
  thank_you_folder: thank-you
  collections:
    - art/classic
pipeline:
  format_variants:
    - A2
    - 40x40
`

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "local", cfg.Store.Provider)
	assert.Equal(t, "file", cfg.Tracker.Backend)
	assert.Equal(t, "all_unprocessed", cfg.Pipeline.ScanMode)
	assert.Equal(t, 4, cfg.Pipeline.PasswordSuffixLen)
	assert.Equal(t, 1, cfg.Pipeline.Workers)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.StoreTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.ScanInterval)
	assert.Equal(t, 24*time.Hour, cfg.Schedule.CleanupMaxAge)
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, minimalYAML+`
tracker:
  backend: assetstore
schedule:
  scan_interval: 30s
  summary_hour: 7
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "assetstore", cfg.Tracker.Backend)
	assert.Equal(t, 30*time.Second, cfg.Schedule.ScanInterval)
	assert.Equal(t, 7, cfg.Schedule.SummaryHour)
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing app name", func(c *Config) { c.App.Name = "" }, "app.name"},
		{"bad provider", func(c *Config) { c.Store.Provider = "gdrive" }, "store.provider"},
		{"local without root", func(c *Config) { c.Store.Root = "" }, "store.root"},
		{"no collections", func(c *Config) { c.Store.Collections = nil }, "collections"},
		{"no format variants", func(c *Config) { c.Pipeline.FormatVariants = nil }, "format_variants"},
		{"bad tracker backend", func(c *Config) { c.Tracker.Backend = "etcd" }, "tracker.backend"},
		{"mysql backend without dsn", func(c *Config) { c.Tracker.Backend = "mysql" }, "mysql.dsn"},
		{"bad scan mode", func(c *Config) { c.Pipeline.ScanMode = "everything" }, "scan_mode"},
		{"summary hour out of range", func(c *Config) { c.Schedule.SummaryHour = 24 }, "summary_hour"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, minimalYAML))
			require.NoError(t, err)
			tc.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
