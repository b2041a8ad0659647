package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/pkg/errors"
	"github.com/datawatch/datawatch/pkg/models"
)

// FileStoreConfig holds configuration for file-based report storage.
type FileStoreConfig struct {
	Directory string `json:"directory"`
}

// FileStore persists quality reports as pretty-printed JSON files, one per
// report, named {report_id}.json. It is the default backend.
type FileStore struct {
	config *FileStoreConfig
	logger *logrus.Logger
	mu     sync.RWMutex
	closed bool
}

// NewFileStore creates a file-based report store.
func NewFileStore(config *FileStoreConfig, logger *logrus.Logger) (*FileStore, error) {
	if config == nil {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "file store config cannot be nil")
	}
	if config.Directory == "" {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "report directory is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &FileStore{config: config, logger: logger}, nil
}

// Connect creates the report directory when absent.
func (f *FileStore) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.config.Directory, 0o755); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"cannot create report directory")
	}

	f.logger.WithField("directory", f.config.Directory).Info("File report store ready")
	return nil
}

// Close marks the store closed.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

// Ping verifies the report directory is accessible.
func (f *FileStore) Ping(ctx context.Context) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return errors.NewStorageError(errors.CodeConnectionFailed, "file store is closed")
	}

	if _, err := os.Stat(f.config.Directory); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed,
			"report directory is not accessible")
	}
	return nil
}

// Save writes the report to {report_id}.json, replacing any existing file.
func (f *FileStore) Save(ctx context.Context, report *models.QualityReport) error {
	if report == nil || report.ReportID == "" {
		return errors.NewValidationError(errors.CodeInvalidInput, "report with a report id is required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
			"cannot marshal quality report")
	}

	if err := os.WriteFile(f.reportPath(report.ReportID), data, 0o644); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("cannot write report %s", report.ReportID))
	}

	f.logger.WithField("report_id", report.ReportID).Debug("Report saved")
	return nil
}

// Get reads a report back from disk.
func (f *FileStore) Get(ctx context.Context, reportID string) (*models.QualityReport, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.reportPath(reportID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewStorageError(errors.CodeReportNotFound,
				fmt.Sprintf("report %s not found", reportID))
		}
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("cannot read report %s", reportID))
	}

	var report models.QualityReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("report %s is corrupt", reportID))
	}
	return &report, nil
}

// List returns stored reports newest first, skipping unreadable files.
func (f *FileStore) List(ctx context.Context, limit int) ([]*models.QualityReport, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.config.Directory)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			"cannot list report directory")
	}

	var reports []*models.QualityReport
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(f.config.Directory, entry.Name()))
		if err != nil {
			f.logger.WithField("file", entry.Name()).Warn("Cannot read report file")
			continue
		}

		var report models.QualityReport
		if err := json.Unmarshal(data, &report); err != nil {
			f.logger.WithField("file", entry.Name()).Warn("Skipping corrupt report file")
			continue
		}
		reports = append(reports, &report)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Timestamp.After(reports[j].Timestamp)
	})

	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

// Delete removes the report file.
func (f *FileStore) Delete(ctx context.Context, reportID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.reportPath(reportID)); err != nil {
		if os.IsNotExist(err) {
			return errors.NewStorageError(errors.CodeReportNotFound,
				fmt.Sprintf("report %s not found", reportID))
		}
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeDeleteFailed,
			fmt.Sprintf("cannot delete report %s", reportID))
	}

	f.logger.WithField("report_id", reportID).Debug("Report deleted")
	return nil
}

func (f *FileStore) reportPath(reportID string) string {
	return filepath.Join(f.config.Directory, reportID+".json")
}
