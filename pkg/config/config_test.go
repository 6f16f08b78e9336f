package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://amos.cse.wustl.edu", cfg.Upstream.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.True(t, cfg.Sync.SkipExisting)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AMOSYNC_WORKERS", "8")
	t.Setenv("AMOSYNC_TIMEOUT", "15s")
	t.Setenv("AMOSYNC_SKIP_EXISTING", "false")
	t.Setenv("AMOSYNC_START_DATE", "2015-03-10")
	t.Setenv("AMOSYNC_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("AMOSYNC_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 8, cfg.Sync.Workers)
	assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
	assert.False(t, cfg.Sync.SkipExisting)
	assert.Equal(t, "2015-03-10", cfg.Sync.StartDate)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("AMOSYNC_WORKERS", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMOSYNC_WORKERS")
}

func TestLoadFromEnvLegacyS3(t *testing.T) {
	t.Setenv("AMOS_S3_BUCKET", "amos-mirror")
	t.Setenv("AMOS_S3_ACCESS_KEY", "AKIDEXAMPLE")
	t.Setenv("AMOS_S3_SECRET_KEY", "secret")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.Equal(t, "amos-mirror", cfg.Storage.Bucket)
	assert.Equal(t, "AKIDEXAMPLE", cfg.Storage.AccessKeyID)
	assert.Equal(t, "secret", cfg.Storage.SecretAccessKey)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero workers", func(c *Config) { c.Sync.Workers = 0 }, "Workers"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "ftp" }, "Backend"},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = BackendS3 }, "bucket is required"},
		{"gcs with bucket", func(c *Config) { c.Storage.Backend = BackendGCS; c.Storage.Bucket = "b" }, ""},
		{"bad base url", func(c *Config) { c.Upstream.BaseURL = "not a url" }, "BaseURL"},
		{"zero timeout", func(c *Config) { c.Upstream.Timeout = 0 }, "Timeout"},
		{"half credentials", func(c *Config) { c.Storage.AccessKeyID = "AKID" }, "must be set together"},
		{"bad start date", func(c *Config) { c.Sync.StartDate = "10/03/2015" }, "invalid start date"},
		{"inverted range", func(c *Config) { c.Sync.StartDate = "2016-01-01"; c.Sync.EndDate = "2015-01-01" }, "is after end date"},
		{"metrics without listen", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "" }, "Listen"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "loud" }, "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSyncRange(t *testing.T) {
	start, end, err := SyncConfig{StartDate: "2015-03-10"}.Range()
	require.NoError(t, err)
	require.NotNil(t, start)
	assert.Nil(t, end)
	assert.Equal(t, time.Date(2015, 3, 10, 0, 0, 0, 0, time.UTC), *start)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"workers":        2,
		"skip-existing":  false,
		"backend":        BackendGCS,
		"bucket":         "amos-archive",
		"metrics-listen": ":9200",
		"root":           "",
	})

	assert.Equal(t, 2, cfg.Sync.Workers)
	assert.False(t, cfg.Sync.SkipExisting)
	assert.Equal(t, BackendGCS, cfg.Storage.Backend)
	assert.Equal(t, "amos-archive", cfg.Storage.Bucket)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9200", cfg.Metrics.Listen)
	assert.Equal(t, "./amos", cfg.Storage.Root)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Sync.Workers = 6
	cfg.Upstream.Timeout = 90 * time.Second
	cfg.Storage.Root = "/data/amos"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 6, loaded.Sync.Workers)
	assert.Equal(t, 90*time.Second, loaded.Upstream.Timeout)
	assert.Equal(t, "/data/amos", loaded.Storage.Root)
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  workers: 3\nstorage:\n  root: /from/file\n"), 0600))

	t.Setenv("AMOSYNC_WORKERS", "5")

	cfg, err := Load(path, map[string]interface{}{"root": "/from/flag"})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Sync.Workers)
	assert.Equal(t, "/from/flag", cfg.Storage.Root)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  workers: 0\n"), 0600))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
