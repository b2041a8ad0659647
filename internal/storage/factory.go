// Package storage builds the configured report store backend, optionally
// wrapped in a Redis read-through cache.
package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/internal/storage/implementations/file"
	"github.com/datawatch/datawatch/internal/storage/implementations/postgres"
	"github.com/datawatch/datawatch/internal/storage/implementations/redis"
	"github.com/datawatch/datawatch/internal/storage/implementations/s3"
	"github.com/datawatch/datawatch/pkg/errors"
	"github.com/datawatch/datawatch/pkg/interfaces"
)

// Supported backend names.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// Config selects and configures the report store backend. Exactly the
// section matching Backend must be populated; Cache is optional and applies
// to any backend.
type Config struct {
	Backend  string                   `json:"backend"`
	File     *file.FileStoreConfig    `json:"file,omitempty"`
	Postgres *postgres.PostgresConfig `json:"postgres,omitempty"`
	S3       *s3.S3Config             `json:"s3,omitempty"`
	Cache    *CacheConfig             `json:"cache,omitempty"`
}

// CacheConfig enables the Redis read-through cache in front of the backend.
type CacheConfig struct {
	Enabled bool                    `json:"enabled"`
	Redis   *redis.RedisCacheConfig `json:"redis,omitempty"`
}

// NewReportStore builds the report store described by config.
func NewReportStore(config *Config, logger *logrus.Logger) (interfaces.ReportStore, error) {
	if config == nil {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "storage config cannot be nil")
	}
	if logger == nil {
		logger = logrus.New()
	}

	var (
		store interfaces.ReportStore
		err   error
	)

	switch config.Backend {
	case BackendFile, "":
		store, err = file.NewFileStore(config.File, logger)
	case BackendPostgres:
		store, err = postgres.NewPostgresStore(config.Postgres, logger)
	case BackendS3:
		store, err = s3.NewS3Store(config.S3, logger)
	default:
		return nil, errors.NewStorageError(errors.CodeInvalidConfig,
			fmt.Sprintf("unsupported storage backend %q", config.Backend))
	}
	if err != nil {
		return nil, err
	}

	if config.Cache != nil && config.Cache.Enabled {
		store, err = redis.NewReportCache(config.Cache.Redis, store, logger)
		if err != nil {
			return nil, err
		}
	}

	logger.WithField("backend", config.Backend).Info("Report store configured")
	return store, nil
}
