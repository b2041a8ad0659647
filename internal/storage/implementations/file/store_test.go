package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawatch/datawatch/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileStore(&FileStoreConfig{Directory: dir}, testLogger())
	require.NoError(t, err)
	require.NoError(t, store.Connect(context.Background()))
	return store, dir
}

func testReport(id string, ts time.Time) *models.QualityReport {
	return &models.QualityReport{
		ReportID:  id,
		Filename:  "sales.csv",
		Timestamp: ts,
		QualityScore: &models.QualityScore{
			OverallScore: 92.5,
			Grade:        "Excellent",
		},
	}
}

func TestNewFileStoreInvalidConfig(t *testing.T) {
	_, err := NewFileStore(nil, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")

	_, err = NewFileStore(&FileStoreConfig{}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory is required")
}

func TestFileStoreConnectCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	store, err := NewFileStore(&FileStoreConfig{Directory: dir}, testLogger())
	require.NoError(t, err)

	require.NoError(t, store.Connect(context.Background()))
	assert.DirExists(t, dir)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestFileStoreSaveAndGet(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	report := testReport("quality_report_20250114_120000", time.Now())
	require.NoError(t, store.Save(ctx, report))
	assert.FileExists(t, filepath.Join(dir, report.ReportID+".json"))

	loaded, err := store.Get(ctx, report.ReportID)
	require.NoError(t, err)
	assert.Equal(t, report.ReportID, loaded.ReportID)
	assert.Equal(t, "sales.csv", loaded.Filename)
	require.NotNil(t, loaded.QualityScore)
	assert.Equal(t, 92.5, loaded.QualityScore.OverallScore)
}

func TestFileStoreSaveRequiresReportID(t *testing.T) {
	store, _ := newTestStore(t)

	assert.Error(t, store.Save(context.Background(), nil))
	assert.Error(t, store.Save(context.Background(), &models.QualityReport{}))
}

func TestFileStoreGetNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "quality_report_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFileStoreListOrderingAndLimit(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 14, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, testReport("report_a", base)))
	require.NoError(t, store.Save(ctx, testReport("report_b", base.Add(2*time.Hour))))
	require.NoError(t, store.Save(ctx, testReport("report_c", base.Add(time.Hour))))

	reports, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "report_b", reports[0].ReportID)
	assert.Equal(t, "report_c", reports[1].ReportID)
	assert.Equal(t, "report_a", reports[2].ReportID)

	limited, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "report_b", limited[0].ReportID)
}

func TestFileStoreListSkipsCorruptFiles(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testReport("report_ok", time.Now())))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	reports, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "report_ok", reports[0].ReportID)
}

func TestFileStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testReport("report_gone", time.Now())))
	require.NoError(t, store.Delete(ctx, "report_gone"))

	_, err := store.Get(ctx, "report_gone")
	assert.Error(t, err)

	err = store.Delete(ctx, "report_gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFileStorePingAfterClose(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Close())
	err := store.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}
