package versioning

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/internal/dataset"
	"github.com/datawatch/datawatch/internal/utils/stats"
	"github.com/datawatch/datawatch/pkg/errors"
	"github.com/datawatch/datawatch/pkg/models"
)

const (
	// VersionPrefix starts every baseline version id.
	VersionPrefix = "baseline_v"

	versionDateFormat = "20060102"
	metadataSuffix    = "_metadata.json"
)

// Manager owns the baseline store directory: it creates, lists, retrieves,
// deletes and compares immutable baseline versions. It performs plain file
// I/O with no cross-process locking; concurrent creators can race on the
// next version number, which is an accepted limitation of the store.
type Manager struct {
	baselineDir string
	reader      *dataset.FileReader
	logger      *logrus.Logger
}

// NewManager creates a versioning manager rooted at baselineDir, creating
// the directory when absent.
func NewManager(baselineDir string, reader *dataset.FileReader, logger *logrus.Logger) (*Manager, error) {
	if baselineDir == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidConfig, "baseline directory is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if reader == nil {
		reader = dataset.NewFileReader(logger)
	}

	if err := os.MkdirAll(baselineDir, 0o755); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"cannot create baseline directory")
	}

	logger.WithField("path", baselineDir).Info("VersioningManager initialized")
	return &Manager{baselineDir: baselineDir, reader: reader, logger: logger}, nil
}

// NextVersionNumber scans the existing baselines and returns the highest
// parsed version number plus one, or 1 on an empty store. Malformed version
// ids are skipped, not failed on.
func (m *Manager) NextVersionNumber() int {
	max := 0
	for _, version := range m.List() {
		if n, ok := parseVersionNumber(version.VersionID); ok && n > max {
			max = n
		}
	}
	return max + 1
}

// parseVersionNumber extracts N from "baseline_vN_YYYYMMDD".
func parseVersionNumber(versionID string) (int, bool) {
	parts := strings.Split(versionID, "_")
	if len(parts) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(parts[1], "v"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// CreateVersion promotes a data file and its precomputed metadata to a new
// baseline: the file is copied into the store and a metadata record written
// alongside it. The two writes are separate operations with no rollback; a
// crash in between leaves a detectable half-pair that List ignores.
func (m *Manager) CreateVersion(sourcePath string, metadata *models.Metadata, description string) (*models.BaselineVersion, error) {
	versionNumber := m.NextVersionNumber()
	now := time.Now()
	versionID := fmt.Sprintf("%s%d_%s", VersionPrefix, versionNumber, now.Format(versionDateFormat))

	ext := filepath.Ext(sourcePath)
	baselineFilename := versionID + ext
	baselinePath := filepath.Join(m.baselineDir, baselineFilename)

	if err := copyFile(sourcePath, baselinePath); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("cannot copy baseline file for %s", versionID))
	}
	m.logger.WithField("path", baselinePath).Info("Baseline file copied")

	if description == "" {
		description = fmt.Sprintf("Baseline version %d", versionNumber)
	}

	version := &models.BaselineVersion{
		VersionID:        versionID,
		VersionNumber:    versionNumber,
		CreatedAt:        now,
		OriginalFilename: filepath.Base(sourcePath),
		BaselineFilename: baselineFilename,
		BaselinePath:     baselinePath,
		Description:      description,
		SourceMetadata:   metadata,
	}

	if err := m.writeVersionRecord(version); err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"version_id": versionID,
		"source":     version.OriginalFilename,
	}).Info("Baseline version created")

	return version, nil
}

func (m *Manager) writeVersionRecord(version *models.BaselineVersion) error {
	data, err := json.MarshalIndent(version, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
			"cannot marshal baseline metadata")
	}

	path := filepath.Join(m.baselineDir, version.VersionID+metadataSuffix)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("cannot write baseline metadata for %s", version.VersionID))
	}
	return nil
}

// Latest returns the baseline with the highest version number, or nil on an
// empty store. Ordering is by version number, not creation time.
func (m *Manager) Latest() *models.BaselineVersion {
	versions := m.List()
	if len(versions) == 0 {
		m.logger.Warn("No baseline versions found")
		return nil
	}

	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].VersionNumber > versions[j].VersionNumber
	})
	return versions[0]
}

// Get returns the baseline with the given version id, or nil when the
// metadata record is absent or unreadable. Corrupt records are logged and
// treated as not found.
func (m *Manager) Get(versionID string) *models.BaselineVersion {
	path := filepath.Join(m.baselineDir, versionID+metadataSuffix)

	data, err := os.ReadFile(path)
	if err != nil {
		m.logger.WithField("version_id", versionID).Warn("Baseline version not found")
		return nil
	}

	var version models.BaselineVersion
	if err := json.Unmarshal(data, &version); err != nil {
		m.logger.WithFields(logrus.Fields{
			"version_id": versionID,
			"error":      err,
		}).Warn("Corrupt baseline metadata, treating as not found")
		return nil
	}
	return &version
}

// List enumerates all baseline metadata records, newest creation timestamp
// first. Note the asymmetry with Latest, which orders by version number;
// the two orderings can disagree under clock skew or version reuse.
func (m *Manager) List() []*models.BaselineVersion {
	entries, err := os.ReadDir(m.baselineDir)
	if err != nil {
		m.logger.WithField("error", err).Warn("Cannot list baseline directory")
		return nil
	}

	var versions []*models.BaselineVersion
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metadataSuffix) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.baselineDir, entry.Name()))
		if err != nil {
			m.logger.WithField("file", entry.Name()).Warn("Cannot read baseline metadata file")
			continue
		}

		var version models.BaselineVersion
		if err := json.Unmarshal(data, &version); err != nil {
			m.logger.WithField("file", entry.Name()).Warn("Skipping corrupt baseline metadata file")
			continue
		}
		versions = append(versions, &version)
	}

	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].CreatedAt.After(versions[j].CreatedAt)
	})
	return versions
}

// Delete removes both the data file and the metadata record for a version.
// Each removal is attempted independently and a missing file is not an
// error; success means the version is no longer retrievable.
func (m *Manager) Delete(versionID string) error {
	version := m.Get(versionID)
	if version == nil {
		return errors.NewStorageError(errors.CodeBaselineNotFound,
			fmt.Sprintf("baseline version %s not found", versionID))
	}

	if err := os.Remove(version.BaselinePath); err != nil && !os.IsNotExist(err) {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeDeleteFailed,
			fmt.Sprintf("cannot delete baseline file for %s", versionID))
	}

	metadataPath := filepath.Join(m.baselineDir, versionID+metadataSuffix)
	if err := os.Remove(metadataPath); err != nil && !os.IsNotExist(err) {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeDeleteFailed,
			fmt.Sprintf("cannot delete baseline metadata for %s", versionID))
	}

	m.logger.WithField("version_id", versionID).Info("Baseline version deleted")
	return nil
}

// Compare builds a drift-relevant diff between current metadata and a
// baseline. An empty versionID means "use latest". Only fields that differ
// produce diff entries.
func (m *Manager) Compare(current *models.Metadata, versionID string) *models.ComparisonReport {
	var baseline *models.BaselineVersion
	if versionID != "" {
		baseline = m.Get(versionID)
	} else {
		baseline = m.Latest()
	}

	if baseline == nil || baseline.SourceMetadata == nil {
		return &models.ComparisonReport{
			HasBaseline: false,
			Message:     "No baseline available for comparison",
		}
	}

	base := baseline.SourceMetadata
	report := &models.ComparisonReport{
		HasBaseline:         true,
		BaselineVersion:     baseline.VersionID,
		ComparisonTimestamp: time.Now(),
	}

	if current.Rows != base.Rows {
		diff := &models.RowCountDiff{
			Baseline: base.Rows,
			Current:  current.Rows,
			Change:   current.Rows - base.Rows,
		}
		if base.Rows > 0 {
			pct := stats.Round2(float64(current.Rows-base.Rows) / float64(base.Rows) * 100)
			diff.ChangePercentage = &pct
		}
		report.RowCount = diff
	}

	if current.Columns != base.Columns {
		report.ColumnCount = &models.ColumnCountDiff{
			Baseline: base.Columns,
			Current:  current.Columns,
			Change:   current.Columns - base.Columns,
		}
	}

	missing, extra := columnSetDiff(base.ColumnNames, current.ColumnNames)
	if len(missing) > 0 || len(extra) > 0 {
		report.ColumnSchema = &models.ColumnSchemaDiff{
			MissingColumns: missing,
			ExtraColumns:   extra,
		}
	}

	report.DataTypes = dtypeChanges(base, current)

	m.logger.WithFields(logrus.Fields{
		"baseline":    baseline.VersionID,
		"differences": report.Differences(),
	}).Info("Baseline comparison completed")

	return report
}

// columnSetDiff returns base columns absent from current and current
// columns absent from base, both sorted.
func columnSetDiff(base, current []string) (missing, extra []string) {
	baseSet := make(map[string]bool, len(base))
	for _, name := range base {
		baseSet[name] = true
	}
	currentSet := make(map[string]bool, len(current))
	for _, name := range current {
		currentSet[name] = true
	}

	for _, name := range base {
		if !currentSet[name] {
			missing = append(missing, name)
		}
	}
	for _, name := range current {
		if !baseSet[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

// dtypeChanges reports dtype mismatches for columns present in both schemas.
func dtypeChanges(base, current *models.Metadata) []models.DTypeChange {
	var changes []models.DTypeChange
	for _, name := range dataset.SortedColumnNames(current.DTypes) {
		baseDType, inBase := base.DTypes[name]
		if !inBase {
			continue
		}
		if baseDType != current.DTypes[name] {
			changes = append(changes, models.DTypeChange{
				Column:        name,
				BaselineDType: baseDType,
				CurrentDType:  current.DTypes[name],
			})
		}
	}
	return changes
}

// SaveMetadata persists a standalone metadata record for a non-baseline
// upload, keyed by file id.
func (m *Manager) SaveMetadata(metadata *models.Metadata, fileID, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"cannot create metadata directory")
	}

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
			"cannot marshal metadata")
	}

	path := filepath.Join(dir, fileID+metadataSuffix)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"cannot write metadata file")
	}

	m.logger.WithField("path", path).Info("Metadata saved")
	return nil
}

// LoadDataset reads a stored baseline data file back into a dataset.
func (m *Manager) LoadDataset(versionID string) (*dataset.Dataset, error) {
	version := m.Get(versionID)
	if version == nil {
		return nil, errors.NewStorageError(errors.CodeBaselineNotFound,
			fmt.Sprintf("baseline version %s not found", versionID))
	}
	return m.reader.Read(version.BaselinePath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
