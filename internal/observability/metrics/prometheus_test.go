package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRecordHTTPRequest(t *testing.T) {
	pm := NewPrometheusMetrics(testLogger())

	pm.RecordHTTPRequest("GET", "/health", "200", 5*time.Millisecond)
	pm.RecordHTTPRequest("GET", "/health", "200", 3*time.Millisecond)
	pm.RecordHTTPRequest("POST", "/api/v1/upload", "409", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.httpRequestsTotal.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.httpRequestsTotal.WithLabelValues("POST", "/api/v1/upload", "409")))
}

func TestRecordUpload(t *testing.T) {
	pm := NewPrometheusMetrics(testLogger())

	pm.RecordUpload("success", 1024)
	pm.RecordUpload("success", 2048)
	pm.RecordUpload("rejected", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.uploadsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.uploadsTotal.WithLabelValues("rejected")))
	assert.Equal(t, 3072.0, testutil.ToFloat64(pm.uploadBytes))
}

func TestRecordQualityCheckScoreGauge(t *testing.T) {
	pm := NewPrometheusMetrics(testLogger())

	pm.RecordQualityCheck("success", 87.5, 100*time.Millisecond)
	assert.Equal(t, 87.5, testutil.ToFloat64(pm.qualityScore))

	// A failed check does not move the last-score gauge
	pm.RecordQualityCheck("failed", 0, 10*time.Millisecond)
	assert.Equal(t, 87.5, testutil.ToFloat64(pm.qualityScore))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.qualityChecksTotal.WithLabelValues("failed")))
}

func TestSetBaselineVersions(t *testing.T) {
	pm := NewPrometheusMetrics(testLogger())

	pm.SetBaselineVersions(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(pm.baselineVersions))
}

func TestRecordStorageOperation(t *testing.T) {
	pm := NewPrometheusMetrics(testLogger())

	pm.RecordStorageOperation("save", "success")
	pm.RecordStorageOperation("save", "success")
	pm.RecordStorageOperation("delete", "failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.storageOpsTotal.WithLabelValues("save", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.storageOpsTotal.WithLabelValues("delete", "failed")))
}

func TestHandlerServesMetrics(t *testing.T) {
	pm := NewPrometheusMetrics(testLogger())
	pm.RecordUpload("success", 512)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	pm.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "datawatch_uploads_total"))
	assert.True(t, strings.Contains(body, "datawatch_upload_bytes_total"))
}
