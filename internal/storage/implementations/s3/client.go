package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/pkg/errors"
	"github.com/datawatch/datawatch/pkg/models"
)

// S3Config holds configuration for S3 report storage.
type S3Config struct {
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	ForcePathStyle  bool   `json:"force_path_style"`
	DisableSSL      bool   `json:"disable_ssl"`
	Prefix          string `json:"prefix"`
	MaxRetries      int    `json:"max_retries"`
}

// S3Store persists quality reports as JSON objects under
// {prefix}/reports/{report_id}.json.
type S3Store struct {
	config     *S3Config
	s3Client   *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	logger     *logrus.Logger
	mu         sync.RWMutex
	closed     bool
}

// NewS3Store creates an S3 report store.
func NewS3Store(config *S3Config, logger *logrus.Logger) (*S3Store, error) {
	if config == nil {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "S3 config cannot be nil")
	}
	if config.Bucket == "" {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "S3 bucket is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &S3Store{config: config, logger: logger}, nil
}

// Connect creates the AWS session and verifies bucket access.
func (s *S3Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.s3Client != nil {
		return nil
	}

	awsConfig := &aws.Config{
		Region:     aws.String(s.config.Region),
		MaxRetries: aws.Int(s.config.MaxRetries),
	}

	if s.config.AccessKeyID != "" && s.config.SecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			s.config.AccessKeyID,
			s.config.SecretAccessKey,
			s.config.SessionToken,
		)
	}

	// Custom endpoint supports S3-compatible stores such as MinIO.
	if s.config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(s.config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(s.config.ForcePathStyle)
	}

	if s.config.DisableSSL {
		awsConfig.DisableSSL = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed,
			"cannot create AWS session")
	}

	s.s3Client = s3.New(sess)
	s.uploader = s3manager.NewUploader(sess)
	s.downloader = s3manager.NewDownloader(sess)

	if _, err := s.s3Client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.config.Bucket),
	}); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed,
			fmt.Sprintf("cannot access bucket %q", s.config.Bucket))
	}

	s.logger.WithFields(logrus.Fields{
		"region": s.config.Region,
		"bucket": s.config.Bucket,
	}).Info("Connected to S3")

	return nil
}

// Close releases the S3 clients.
func (s *S3Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.s3Client = nil
	s.uploader = nil
	s.downloader = nil
	s.closed = true

	s.logger.Info("S3 connection closed")
	return nil
}

// Ping verifies bucket access.
func (s *S3Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.s3Client == nil {
		return errors.NewStorageError(errors.CodeConnectionFailed, "S3 not connected")
	}

	if _, err := s.s3Client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.config.Bucket),
	}); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed,
			"S3 ping failed")
	}
	return nil
}

// Save uploads the report object, replacing any existing object.
func (s *S3Store) Save(ctx context.Context, report *models.QualityReport) error {
	if report == nil || report.ReportID == "" {
		return errors.NewValidationError(errors.CodeInvalidInput, "report with a report id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.uploader == nil {
		return errors.NewStorageError(errors.CodeConnectionFailed, "S3 not connected")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
			"cannot marshal quality report")
	}

	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(s.reportKey(report.ReportID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("cannot upload report %s", report.ReportID))
	}

	s.logger.WithField("report_id", report.ReportID).Debug("Report uploaded")
	return nil
}

// Get downloads and decodes a report object.
func (s *S3Store) Get(ctx context.Context, reportID string) (*models.QualityReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.downloader == nil {
		return nil, errors.NewStorageError(errors.CodeConnectionFailed, "S3 not connected")
	}

	buf := aws.NewWriteAtBuffer(nil)
	_, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.reportKey(reportID)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NewStorageError(errors.CodeReportNotFound,
				fmt.Sprintf("report %s not found", reportID))
		}
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("cannot download report %s", reportID))
	}

	var report models.QualityReport
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("report %s is corrupt", reportID))
	}
	return &report, nil
}

// List downloads stored reports, newest first by report timestamp. Listing
// fetches each object; large stores should prefer the PostgreSQL backend.
func (s *S3Store) List(ctx context.Context, limit int) ([]*models.QualityReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.s3Client == nil {
		return nil, errors.NewStorageError(errors.CodeConnectionFailed, "S3 not connected")
	}

	prefix := s.reportPrefix()
	var keys []string
	err := s.s3Client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.Bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			if strings.HasSuffix(aws.StringValue(obj.Key), ".json") {
				keys = append(keys, aws.StringValue(obj.Key))
			}
		}
		return true
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			"cannot list report objects")
	}

	var reports []*models.QualityReport
	for _, key := range keys {
		buf := aws.NewWriteAtBuffer(nil)
		if _, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			s.logger.WithField("key", key).Warn("Cannot download report object")
			continue
		}

		var report models.QualityReport
		if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
			s.logger.WithField("key", key).Warn("Skipping corrupt report object")
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

// Delete removes a report object. S3 deletes are idempotent, so existence is
// checked first to report missing ids.
func (s *S3Store) Delete(ctx context.Context, reportID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.s3Client == nil {
		return errors.NewStorageError(errors.CodeConnectionFailed, "S3 not connected")
	}

	key := s.reportKey(reportID)
	if _, err := s.s3Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isNotFound(err) {
			return errors.NewStorageError(errors.CodeReportNotFound,
				fmt.Sprintf("report %s not found", reportID))
		}
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("cannot check report %s", reportID))
	}

	if _, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeDeleteFailed,
			fmt.Sprintf("cannot delete report %s", reportID))
	}

	s.logger.WithField("report_id", reportID).Debug("Report deleted")
	return nil
}

func (s *S3Store) reportPrefix() string {
	if s.config.Prefix != "" {
		return path.Join(s.config.Prefix, "reports") + "/"
	}
	return "reports/"
}

func (s *S3Store) reportKey(reportID string) string {
	return s.reportPrefix() + reportID + ".json"
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
