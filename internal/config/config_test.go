package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// No config file anywhere: everything comes from defaults
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "data/uploads", cfg.Data.UploadDir)
	assert.Equal(t, int64(500), cfg.Data.MaxFileSizeMB)
	assert.Equal(t, 10.0, cfg.Quality.MissingWarnThreshold)
	assert.Equal(t, 50.0, cfg.Quality.MissingErrorThreshold)
	assert.Equal(t, "iqr", cfg.Quality.OutlierMethod)
	assert.Equal(t, 1.5, cfg.Quality.IQRMultiplier)
	assert.Equal(t, 30.0, cfg.Quality.Weights.Missing)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.False(t, cfg.Storage.Cache.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datawatch.yaml")
	content := `
server:
  host: 127.0.0.1
  port: 9000
quality:
  missing_warn_threshold: 5.0
  weights:
    missing: 40
storage:
  backend: postgres
  postgres:
    host: db.internal
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address())
	assert.Equal(t, 5.0, cfg.Quality.MissingWarnThreshold)
	assert.Equal(t, 40.0, cfg.Quality.Weights.Missing)
	// Unset keys keep their defaults
	assert.Equal(t, 50.0, cfg.Quality.MissingErrorThreshold)
	assert.Equal(t, 25.0, cfg.Quality.Weights.Duplicate)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "db.internal", cfg.Storage.Postgres.Host)
	assert.Equal(t, 5432, cfg.Storage.Postgres.Port)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestScoringWeightsConversion(t *testing.T) {
	w := WeightsConfig{Missing: 30, Duplicate: 25, Outlier: 25, Schema: 20}
	sw := w.ScoringWeights()

	assert.Equal(t, 30.0, sw.Missing)
	assert.Equal(t, 25.0, sw.Duplicate)
	assert.Equal(t, 25.0, sw.Outlier)
	assert.Equal(t, 20.0, sw.Schema)
}

func TestReportStoreConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Data.ReportDir = "/var/lib/datawatch/reports"

	sc := cfg.ReportStoreConfig()

	assert.Equal(t, "file", sc.Backend)
	require.NotNil(t, sc.File)
	assert.Equal(t, "/var/lib/datawatch/reports", sc.File.Directory)
	require.NotNil(t, sc.Postgres)
	assert.Equal(t, "localhost", sc.Postgres.Host)
	assert.Nil(t, sc.Cache, "cache section omitted unless enabled")
}

func TestReportStoreConfigWithCache(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Storage.Cache.Enabled = true
	cfg.Storage.Cache.Addr = "redis.internal:6379"
	cfg.Storage.Cache.TTL = 2 * time.Hour

	sc := cfg.ReportStoreConfig()

	require.NotNil(t, sc.Cache)
	assert.True(t, sc.Cache.Enabled)
	require.NotNil(t, sc.Cache.Redis)
	assert.Equal(t, "redis.internal:6379", sc.Cache.Redis.Addr)
	assert.Equal(t, 2*time.Hour, sc.Cache.Redis.TTL)
}
