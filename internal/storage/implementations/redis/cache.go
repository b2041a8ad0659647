package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/pkg/errors"
	"github.com/datawatch/datawatch/pkg/interfaces"
	"github.com/datawatch/datawatch/pkg/models"
)

// RedisCacheConfig holds configuration for the report cache.
type RedisCacheConfig struct {
	Addr         string        `json:"addr"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	PoolSize     int           `json:"pool_size"`
	TTL          time.Duration `json:"ttl"`
	KeyPrefix    string        `json:"key_prefix"`
}

// ReportCache is a read-through Redis cache wrapping another ReportStore.
// Gets are served from Redis when possible; saves and deletes write through
// to the backing store and keep the cache coherent. Cache failures degrade
// to the backing store rather than failing the request.
type ReportCache struct {
	config  *RedisCacheConfig
	backing interfaces.ReportStore
	client  *goredis.Client
	logger  *logrus.Logger
	mu      sync.RWMutex
	closed  bool
}

// NewReportCache creates a Redis report cache in front of backing.
func NewReportCache(config *RedisCacheConfig, backing interfaces.ReportStore, logger *logrus.Logger) (*ReportCache, error) {
	if config == nil {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "redis config cannot be nil")
	}
	if config.Addr == "" {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "redis address is required")
	}
	if backing == nil {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "backing store is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &ReportCache{config: config, backing: backing, logger: logger}, nil
}

// Connect connects both the cache and the backing store.
func (r *ReportCache) Connect(ctx context.Context) error {
	if err := r.backing.Connect(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         r.config.Addr,
		Password:     r.config.Password,
		DB:           r.config.DB,
		DialTimeout:  r.config.DialTimeout,
		ReadTimeout:  r.config.ReadTimeout,
		WriteTimeout: r.config.WriteTimeout,
		PoolSize:     r.config.PoolSize,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed,
			"cannot connect to Redis")
	}

	r.client = client

	r.logger.WithFields(logrus.Fields{
		"addr": r.config.Addr,
		"db":   r.config.DB,
		"ttl":  r.config.TTL,
	}).Info("Connected to Redis report cache")

	return nil
}

// Close closes the cache connection and the backing store.
func (r *ReportCache) Close() error {
	r.mu.Lock()
	if !r.closed && r.client != nil {
		if err := r.client.Close(); err != nil {
			r.logger.WithField("error", err).Warn("Cannot close Redis connection")
		}
		r.client = nil
	}
	r.closed = true
	r.mu.Unlock()

	return r.backing.Close()
}

// Ping verifies both the cache and the backing store.
func (r *ReportCache) Ping(ctx context.Context) error {
	r.mu.RLock()
	client := r.client
	closed := r.closed
	r.mu.RUnlock()

	if closed || client == nil {
		return errors.NewStorageError(errors.CodeConnectionFailed, "redis cache not connected")
	}
	if _, err := client.Ping(ctx).Result(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed,
			"redis ping failed")
	}
	return r.backing.Ping(ctx)
}

// Save writes through to the backing store, then refreshes the cache entry.
func (r *ReportCache) Save(ctx context.Context, report *models.QualityReport) error {
	if err := r.backing.Save(ctx, report); err != nil {
		return err
	}
	r.cacheSet(ctx, report)
	return nil
}

// Get serves from the cache on a hit and falls through to the backing store
// on a miss, populating the cache with the result.
func (r *ReportCache) Get(ctx context.Context, reportID string) (*models.QualityReport, error) {
	r.mu.RLock()
	client := r.client
	r.mu.RUnlock()

	if client != nil {
		data, err := client.Get(ctx, r.key(reportID)).Bytes()
		if err == nil {
			var report models.QualityReport
			if jsonErr := json.Unmarshal(data, &report); jsonErr == nil {
				return &report, nil
			}
			r.logger.WithField("report_id", reportID).Warn("Corrupt cache entry, falling through")
		} else if err != goredis.Nil {
			r.logger.WithField("error", err).Warn("Cache read failed, falling through")
		}
	}

	report, err := r.backing.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, report)
	return report, nil
}

// List is served by the backing store; listings are not cached.
func (r *ReportCache) List(ctx context.Context, limit int) ([]*models.QualityReport, error) {
	return r.backing.List(ctx, limit)
}

// Delete removes the report from the backing store and evicts the cache key.
func (r *ReportCache) Delete(ctx context.Context, reportID string) error {
	if err := r.backing.Delete(ctx, reportID); err != nil {
		return err
	}

	r.mu.RLock()
	client := r.client
	r.mu.RUnlock()

	if client != nil {
		if err := client.Del(ctx, r.key(reportID)).Err(); err != nil {
			r.logger.WithField("report_id", reportID).Warn("Cannot evict cache entry")
		}
	}
	return nil
}

func (r *ReportCache) cacheSet(ctx context.Context, report *models.QualityReport) {
	r.mu.RLock()
	client := r.client
	r.mu.RUnlock()

	if client == nil || report == nil {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := client.Set(ctx, r.key(report.ReportID), data, r.config.TTL).Err(); err != nil {
		r.logger.WithField("report_id", report.ReportID).Warn("Cannot populate cache entry")
	}
}

func (r *ReportCache) key(reportID string) string {
	prefix := r.config.KeyPrefix
	if prefix == "" {
		prefix = "datawatch"
	}
	return prefix + ":report:" + reportID
}
