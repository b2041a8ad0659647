package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/internal/dataset"
	"github.com/datawatch/datawatch/internal/quality"
	"github.com/datawatch/datawatch/pkg/errors"
	"github.com/datawatch/datawatch/pkg/models"
)

// uploadResponse is returned by the upload endpoint.
type uploadResponse struct {
	FileID          string                   `json:"file_id"`
	Filename        string                   `json:"filename"`
	SavedFilename   string                   `json:"saved_filename"`
	Metadata        *models.Metadata         `json:"metadata"`
	Validation      *models.ValidationReport `json:"validation"`
	BaselineVersion *models.BaselineVersion  `json:"baseline_version,omitempty"`
	Comparison      *models.ComparisonReport `json:"comparison"`
}

// qualityCheckRequest selects the file and checks for one quality run.
type qualityCheckRequest struct {
	Filename        string   `json:"filename"`
	CheckMissing    *bool    `json:"check_missing,omitempty"`
	CheckDuplicates *bool    `json:"check_duplicates,omitempty"`
	CheckOutliers   *bool    `json:"check_outliers,omitempty"`
	OutlierMethod   string   `json:"outlier_method,omitempty"`
	UseMultivariate bool     `json:"use_multivariate,omitempty"`
	KeyColumns      []string `json:"key_columns,omitempty"`
}

// createBaselineRequest promotes an uploaded file to a baseline.
type createBaselineRequest struct {
	Filename    string `json:"filename"`
	Description string `json:"description,omitempty"`
}

// compareBaselineRequest compares an uploaded file against a baseline.
type compareBaselineRequest struct {
	Filename  string `json:"filename"`
	VersionID string `json:"version_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{"report_store": "healthy"}
	status := "healthy"

	if err := s.reports.Ping(r.Context()); err != nil {
		components["report_store"] = "unhealthy"
		status = "degraded"
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"components": components,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusNotFound, errorResponse{
		Error: errorBody{Code: "NOT_FOUND", Message: "Endpoint not found"},
	})
}

// handleUpload ingests a dataset file: format and size validation, duplicate
// detection by content hash, schema validation against the latest baseline,
// metadata computation, and optional baseline promotion. The first uploaded
// file always becomes the initial baseline.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.recordUpload("rejected", 0)
		s.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "invalid multipart form").WithCause(err))
		return
	}

	upload, header, err := r.FormFile("file")
	if err != nil {
		s.recordUpload("rejected", 0)
		s.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "form field 'file' is required"))
		return
	}
	defer upload.Close()

	filename := filepath.Base(header.Filename)
	if err := s.reader.ValidateFormat(filename); err != nil {
		s.recordUpload("rejected", 0)
		s.writeError(w, err)
		return
	}

	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		s.recordUpload("failed", 0)
		s.writeError(w, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"cannot create upload directory"))
		return
	}

	fileID := uuid.New().String()
	tempPath := filepath.Join(s.config.UploadDir, "temp_"+fileID+filepath.Ext(filename))
	if err := writeTempFile(tempPath, upload); err != nil {
		s.recordUpload("failed", 0)
		s.writeError(w, err)
		return
	}
	defer os.Remove(tempPath)

	if err := s.reader.ValidateSize(tempPath); err != nil {
		s.recordUpload("rejected", header.Size)
		s.writeError(w, err)
		return
	}

	hash, err := s.reader.Hash(tempPath)
	if err != nil {
		s.recordUpload("failed", header.Size)
		s.writeError(w, err)
		return
	}

	duplicate, err := s.reader.FindDuplicateFile(s.config.UploadDir, hash, tempPath)
	if err != nil {
		s.recordUpload("failed", header.Size)
		s.writeError(w, err)
		return
	}
	if duplicate != "" {
		s.recordUpload("duplicate", header.Size)
		s.writeError(w, errors.NewValidationError(errors.CodeDuplicateFile,
			"an identical file has already been uploaded").WithDetails(duplicate))
		return
	}

	ds, err := s.reader.Read(tempPath)
	if err != nil {
		s.recordUpload("rejected", header.Size)
		s.writeError(w, err)
		return
	}

	var expectedColumns []string
	var expectedDTypes map[string]string
	latest := s.versions.Latest()
	if latest != nil && latest.SourceMetadata != nil {
		expectedColumns = latest.SourceMetadata.ColumnNames
		expectedDTypes = latest.SourceMetadata.DTypes
	}

	validation := dataset.Validate(ds, filename, expectedColumns, expectedDTypes)
	if !validation.IsValid {
		s.recordUpload("rejected", header.Size)
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error": errorBody{
				Code:    errors.CodeInvalidInput,
				Message: "dataset failed validation",
			},
			"validation": validation,
		})
		return
	}

	ext := filepath.Ext(filename)
	savedFilename := fmt.Sprintf("%s_%s%s",
		strings.TrimSuffix(filename, ext), time.Now().Format(dataset.TimestampFormat), ext)
	savedPath := filepath.Join(s.config.UploadDir, savedFilename)
	if err := os.Rename(tempPath, savedPath); err != nil {
		s.recordUpload("failed", header.Size)
		s.writeError(w, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"cannot store uploaded file"))
		return
	}

	metadata, err := s.reader.ComputeMetadata(ds, filename, savedPath)
	if err != nil {
		s.recordUpload("failed", header.Size)
		s.writeError(w, err)
		return
	}

	if err := s.versions.SaveMetadata(metadata, fileID, s.config.MetadataDir); err != nil {
		s.logger.WithField("error", err).Warn("Cannot persist upload metadata")
	}

	response := &uploadResponse{
		FileID:        fileID,
		Filename:      filename,
		SavedFilename: savedFilename,
		Metadata:      metadata,
		Validation:    validation,
	}

	// The first upload bootstraps the baseline store.
	promote := r.FormValue("is_baseline") == "true" || latest == nil
	if promote {
		metadata.IsBaseline = true
		version, err := s.versions.CreateVersion(savedPath, metadata, r.FormValue("description"))
		if err != nil {
			s.recordUpload("failed", header.Size)
			s.writeError(w, err)
			return
		}
		response.BaselineVersion = version
	}

	response.Comparison = s.versions.Compare(metadata, "")

	s.recordUpload("success", header.Size)
	if s.metrics != nil {
		s.metrics.SetBaselineVersions(len(s.versions.List()))
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleQualityCheck runs the configured analyzers over a previously
// uploaded file and persists the resulting report.
func (s *Server) handleQualityCheck(w http.ResponseWriter, r *http.Request) {
	var req qualityCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "invalid JSON body").WithCause(err))
		return
	}
	if req.Filename == "" {
		s.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "filename is required"))
		return
	}

	opts := quality.DefaultCheckOptions()
	if req.CheckMissing != nil {
		opts.CheckMissing = *req.CheckMissing
	}
	if req.CheckDuplicates != nil {
		opts.CheckDuplicates = *req.CheckDuplicates
	}
	if req.CheckOutliers != nil {
		opts.CheckOutliers = *req.CheckOutliers
	}
	opts.UseMultivariate = req.UseMultivariate
	opts.KeyColumns = req.KeyColumns

	if req.OutlierMethod != "" {
		method := quality.OutlierMethod(req.OutlierMethod)
		cfg := quality.DefaultOutlierConfig()
		cfg.Method = method
		if err := cfg.Validate(); err != nil {
			s.writeError(w, err)
			return
		}
		opts.OutlierMethod = method
	}

	path := filepath.Join(s.config.UploadDir, filepath.Base(req.Filename))
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, errors.NewStorageError(errors.CodeFileNotFound,
			fmt.Sprintf("file %s not found", req.Filename)))
		return
	}

	start := time.Now()
	ds, err := s.reader.Read(path)
	if err != nil {
		s.recordQualityCheck("failed", 0, time.Since(start))
		s.writeError(w, err)
		return
	}

	report, err := s.engine.Check(ds, filepath.Base(req.Filename), "", opts)
	if err != nil {
		s.recordQualityCheck("failed", 0, time.Since(start))
		s.writeError(w, err)
		return
	}

	if err := s.reports.Save(r.Context(), report); err != nil {
		s.logger.WithFields(logrus.Fields{
			"report_id": report.ReportID,
			"error":     err,
		}).Error("Cannot persist quality report")
		s.recordStorage("save", "failed")
	} else {
		s.recordStorage("save", "success")
	}

	score := 0.0
	if report.QualityScore != nil {
		score = report.QualityScore.OverallScore
	}
	s.recordQualityCheck("success", score, time.Since(start))

	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	reports, err := s.reports.List(r.Context(), limit)
	if err != nil {
		s.recordStorage("list", "failed")
		s.writeError(w, err)
		return
	}
	s.recordStorage("list", "success")

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["id"]

	report, err := s.reports.Get(r.Context(), reportID)
	if err != nil {
		s.recordStorage("get", "failed")
		s.writeError(w, err)
		return
	}
	s.recordStorage("get", "success")

	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["id"]

	if err := s.reports.Delete(r.Context(), reportID); err != nil {
		s.recordStorage("delete", "failed")
		s.writeError(w, err)
		return
	}
	s.recordStorage("delete", "success")

	s.writeJSON(w, http.StatusOK, map[string]string{
		"report_id": reportID,
		"status":    "deleted",
	})
}

func (s *Server) handleListBaselines(w http.ResponseWriter, r *http.Request) {
	versions := s.versions.List()
	if s.metrics != nil {
		s.metrics.SetBaselineVersions(len(versions))
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"versions": versions,
		"count":    len(versions),
	})
}

func (s *Server) handleCreateBaseline(w http.ResponseWriter, r *http.Request) {
	var req createBaselineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "invalid JSON body").WithCause(err))
		return
	}
	if req.Filename == "" {
		s.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "filename is required"))
		return
	}

	path := filepath.Join(s.config.UploadDir, filepath.Base(req.Filename))
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, errors.NewStorageError(errors.CodeFileNotFound,
			fmt.Sprintf("file %s not found", req.Filename)))
		return
	}

	ds, err := s.reader.Read(path)
	if err != nil {
		s.writeError(w, err)
		return
	}

	metadata, err := s.reader.ComputeMetadata(ds, filepath.Base(req.Filename), path)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metadata.IsBaseline = true
	metadata.Description = req.Description

	version, err := s.versions.CreateVersion(path, metadata, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.SetBaselineVersions(len(s.versions.List()))
	}

	s.writeJSON(w, http.StatusCreated, version)
}

func (s *Server) handleLatestBaseline(w http.ResponseWriter, r *http.Request) {
	version := s.versions.Latest()
	if version == nil {
		s.writeError(w, errors.NewStorageError(errors.CodeBaselineNotFound, "no baseline versions exist"))
		return
	}
	s.writeJSON(w, http.StatusOK, version)
}

func (s *Server) handleGetBaseline(w http.ResponseWriter, r *http.Request) {
	versionID := mux.Vars(r)["id"]

	version := s.versions.Get(versionID)
	if version == nil {
		s.writeError(w, errors.NewStorageError(errors.CodeBaselineNotFound,
			fmt.Sprintf("baseline version %s not found", versionID)))
		return
	}
	s.writeJSON(w, http.StatusOK, version)
}

func (s *Server) handleDeleteBaseline(w http.ResponseWriter, r *http.Request) {
	versionID := mux.Vars(r)["id"]

	if err := s.versions.Delete(versionID); err != nil {
		s.writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.SetBaselineVersions(len(s.versions.List()))
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"version_id": versionID,
		"status":     "deleted",
	})
}

func (s *Server) handleCompareBaseline(w http.ResponseWriter, r *http.Request) {
	var req compareBaselineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "invalid JSON body").WithCause(err))
		return
	}
	if req.Filename == "" {
		s.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "filename is required"))
		return
	}

	path := filepath.Join(s.config.UploadDir, filepath.Base(req.Filename))
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, errors.NewStorageError(errors.CodeFileNotFound,
			fmt.Sprintf("file %s not found", req.Filename)))
		return
	}

	ds, err := s.reader.Read(path)
	if err != nil {
		s.writeError(w, err)
		return
	}

	metadata, err := s.reader.ComputeMetadata(ds, filepath.Base(req.Filename), path)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, s.versions.Compare(metadata, req.VersionID))
}

func (s *Server) recordUpload(status string, size int64) {
	if s.metrics != nil {
		s.metrics.RecordUpload(status, size)
	}
}

func (s *Server) recordQualityCheck(status string, score float64, duration time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordQualityCheck(status, score, duration)
	}
}

func (s *Server) recordStorage(operation, status string) {
	if s.metrics != nil {
		s.metrics.RecordStorageOperation(operation, status)
	}
}

func writeTempFile(path string, src io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"cannot create temporary upload file")
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"cannot write temporary upload file")
	}
	return nil
}
