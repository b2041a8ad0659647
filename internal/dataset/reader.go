package dataset

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
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

	"github.com/datawatch/datawatch/pkg/errors"
)

const (
	// MaxFileSizeBytes caps accepted uploads at 500MB.
	MaxFileSizeBytes int64 = 500 * 1024 * 1024

	// TimestampFormat is appended to saved filenames.
	TimestampFormat = "20060102_150405"
)

// SupportedFormats lists the accepted file extensions.
var SupportedFormats = []string{"csv", "json"}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// FileReader loads tabular files into datasets and handles the file intake
// checks (format whitelist, size cap, content hashing).
type FileReader struct {
	logger *logrus.Logger
}

// NewFileReader creates a new file reader.
func NewFileReader(logger *logrus.Logger) *FileReader {
	if logger == nil {
		logger = logrus.New()
	}
	return &FileReader{logger: logger}
}

// ValidateFormat checks the file extension against the supported formats.
func (r *FileReader) ValidateFormat(filename string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	for _, format := range SupportedFormats {
		if ext == format {
			return nil
		}
	}
	return errors.NewValidationError(errors.CodeInvalidFormat,
		fmt.Sprintf("unsupported format %q, supported: %s", ext, strings.Join(SupportedFormats, ", ")))
}

// ValidateSize checks the file size against the maximum allowed.
func (r *FileReader) ValidateSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "cannot stat file")
	}
	if info.Size() > MaxFileSizeBytes {
		return errors.NewValidationError(errors.CodeFileTooLarge,
			fmt.Sprintf("file is %.2fMB, maximum is %dMB",
				float64(info.Size())/(1024*1024), MaxFileSizeBytes/(1024*1024)))
	}
	return nil
}

// Hash computes the first 16 hex characters of the file's SHA-256 digest,
// used for duplicate upload detection.
func (r *FileReader) Hash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "cannot open file for hashing")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "cannot hash file")
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// Read loads a CSV or JSON file into a dataset, inferring column types.
func (r *FileReader) Read(path string) (*Dataset, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	r.logger.WithFields(logrus.Fields{
		"file":   filepath.Base(path),
		"format": ext,
	}).Info("Reading file")

	var (
		ds  *Dataset
		err error
	)

	switch ext {
	case "csv":
		ds, err = r.readCSV(path)
	case "json":
		ds, err = r.readJSON(path)
	default:
		return nil, errors.NewValidationError(errors.CodeInvalidFormat,
			fmt.Sprintf("unsupported file format: %s", ext))
	}

	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"file":    filepath.Base(path),
		"rows":    ds.NumRows(),
		"columns": ds.NumColumns(),
	}).Info("File read successfully")

	return ds, nil
}

func (r *FileReader) readCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "cannot open CSV file")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidFormat, "malformed CSV")
	}
	if len(records) == 0 {
		return nil, errors.NewValidationError(errors.CodeEmptyDataset, "CSV file has no header row")
	}

	header := records[0]
	raw := make([][]string, len(header))
	for i := range raw {
		raw[i] = make([]string, 0, len(records)-1)
	}
	for _, record := range records[1:] {
		for i := range header {
			raw[i] = append(raw[i], record[i])
		}
	}

	columns := make([]Column, len(header))
	for i, name := range header {
		columns[i] = inferColumn(name, raw[i])
	}

	return New(columns)
}

func (r *FileReader) readJSON(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "cannot read JSON file")
	}

	var records []map[string]interface{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidFormat,
			"JSON must be an array of objects")
	}

	nameSet := make(map[string]bool)
	for _, record := range records {
		for name := range record {
			nameSet[name] = true
		}
	}
	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := make([]Column, len(names))
	for i, name := range names {
		values := make([]interface{}, len(records))
		for row, record := range records {
			values[row] = normalizeJSONValue(record[name])
		}
		dtype := inferJSONType(values)
		for row, v := range values {
			if v != nil && !matchesDType(v, dtype) {
				values[row] = nil
			}
		}
		columns[i] = Column{Name: name, Type: dtype, Values: values}
	}

	return New(columns)
}

// matchesDType reports whether a cell value is representable under dtype.
// Mixed-type JSON columns are coerced by nulling out the minority values.
func matchesDType(v interface{}, dtype DType) bool {
	switch dtype {
	case DTypeNumeric:
		_, ok := v.(float64)
		return ok
	case DTypeBoolean:
		_, ok := v.(bool)
		return ok
	case DTypeDatetime:
		_, ok := v.(time.Time)
		return ok
	default:
		_, ok := v.(string)
		return ok
	}
}

// Save writes the dataset to dir under a timestamped variant of filename
// and returns the saved path.
func (r *FileReader) Save(ds *Dataset, dir, filename string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "cannot create directory")
	}

	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)
	stamped := fmt.Sprintf("%s_%s%s", name, time.Now().Format(TimestampFormat), ext)
	path := filepath.Join(dir, stamped)

	var err error
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "csv":
		err = writeCSV(ds, path)
	case "json":
		err = writeJSON(ds, path)
	default:
		return "", errors.NewValidationError(errors.CodeInvalidFormat,
			fmt.Sprintf("unsupported format for saving: %s", ext))
	}
	if err != nil {
		return "", err
	}

	r.logger.WithField("path", path).Info("File saved")
	return path, nil
}

func writeCSV(ds *Dataset, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "cannot create CSV file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(ds.ColumnNames()); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "cannot write CSV header")
	}

	columns := ds.Columns()
	for row := 0; row < ds.NumRows(); row++ {
		record := make([]string, len(columns))
		for i, col := range columns {
			if col.Values[row] == nil {
				record[i] = ""
			} else {
				record[i] = FormatValue(col.Values[row])
			}
		}
		if err := w.Write(record); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "cannot write CSV row")
		}
	}

	w.Flush()
	return w.Error()
}

func writeJSON(ds *Dataset, path string) error {
	records := make([]map[string]interface{}, ds.NumRows())
	for row := 0; row < ds.NumRows(); row++ {
		records[row] = ds.Row(row)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError, "cannot marshal dataset")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "cannot write JSON file")
	}
	return nil
}

// inferColumn picks the narrowest type that fits every non-empty raw string:
// numeric, then boolean, then datetime, falling back to text.
func inferColumn(name string, raw []string) Column {
	values := make([]interface{}, len(raw))

	isNumeric, isBoolean, isDatetime := true, true, true
	nonEmpty := 0

	for _, s := range raw {
		if s == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			isNumeric = false
		}
		lower := strings.ToLower(s)
		if lower != "true" && lower != "false" {
			isBoolean = false
		}
		if parseDatetime(s) == nil {
			isDatetime = false
		}
	}

	var dtype DType
	switch {
	case nonEmpty == 0:
		dtype = DTypeText
	case isNumeric:
		dtype = DTypeNumeric
	case isBoolean:
		dtype = DTypeBoolean
	case isDatetime:
		dtype = DTypeDatetime
	default:
		dtype = DTypeText
	}

	for i, s := range raw {
		if s == "" {
			values[i] = nil
			continue
		}
		switch dtype {
		case DTypeNumeric:
			v, _ := strconv.ParseFloat(s, 64)
			values[i] = v
		case DTypeBoolean:
			values[i] = strings.EqualFold(s, "true")
		case DTypeDatetime:
			values[i] = *parseDatetime(s)
		default:
			values[i] = s
		}
	}

	return Column{Name: name, Type: dtype, Values: values}
}

func parseDatetime(s string) *time.Time {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func normalizeJSONValue(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if t := parseDatetime(s); t != nil {
		return *t
	}
	return s
}

func inferJSONType(values []interface{}) DType {
	for _, v := range values {
		switch v.(type) {
		case nil:
			continue
		case float64:
			return DTypeNumeric
		case bool:
			return DTypeBoolean
		case time.Time:
			return DTypeDatetime
		default:
			return DTypeText
		}
	}
	return DTypeText
}
