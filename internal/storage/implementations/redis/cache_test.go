package redis

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawatch/datawatch/internal/storage/implementations/file"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testBackingStore(t *testing.T) *file.FileStore {
	t.Helper()
	store, err := file.NewFileStore(&file.FileStoreConfig{Directory: t.TempDir()}, testLogger())
	require.NoError(t, err)
	return store
}

func TestNewReportCache(t *testing.T) {
	cache, err := NewReportCache(&RedisCacheConfig{Addr: "localhost:6379"}, testBackingStore(t), testLogger())
	require.NoError(t, err)
	require.NotNil(t, cache)
}

func TestNewReportCacheInvalidConfig(t *testing.T) {
	backing := testBackingStore(t)

	_, err := NewReportCache(nil, backing, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")

	_, err = NewReportCache(&RedisCacheConfig{}, backing, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address is required")

	_, err = NewReportCache(&RedisCacheConfig{Addr: "localhost:6379"}, nil, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backing store is required")
}

func TestReportCacheKeyGeneration(t *testing.T) {
	cache, err := NewReportCache(&RedisCacheConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "test",
	}, testBackingStore(t), testLogger())
	require.NoError(t, err)

	assert.Equal(t, "test:report:quality_report_20250114_120000",
		cache.key("quality_report_20250114_120000"))
}

func TestReportCacheKeyDefaultPrefix(t *testing.T) {
	cache, err := NewReportCache(&RedisCacheConfig{Addr: "localhost:6379"}, testBackingStore(t), testLogger())
	require.NoError(t, err)

	assert.Equal(t, "datawatch:report:r1", cache.key("r1"))
}
