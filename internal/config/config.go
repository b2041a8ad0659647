// Package config loads datawatch configuration from an optional YAML file
// and DATAWATCH_* environment variables, with sensible defaults for local
// use.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/datawatch/datawatch/internal/quality"
	"github.com/datawatch/datawatch/internal/storage"
	"github.com/datawatch/datawatch/internal/storage/implementations/file"
	"github.com/datawatch/datawatch/internal/storage/implementations/postgres"
	"github.com/datawatch/datawatch/internal/storage/implementations/redis"
	"github.com/datawatch/datawatch/internal/storage/implementations/s3"
)

// Config is the full runtime configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Data    DataConfig    `mapstructure:"data"`
	Quality QualityConfig `mapstructure:"quality"`
	Storage StorageConfig `mapstructure:"storage"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the host:port listen address.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig configures the shared logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DataConfig configures the on-disk data layout and intake limits.
type DataConfig struct {
	UploadDir     string `mapstructure:"upload_dir"`
	BaselineDir   string `mapstructure:"baseline_dir"`
	MetadataDir   string `mapstructure:"metadata_dir"`
	ReportDir     string `mapstructure:"report_dir"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
}

// QualityConfig configures analyzer thresholds and score weights.
type QualityConfig struct {
	MissingWarnThreshold  float64       `mapstructure:"missing_warn_threshold"`
	MissingErrorThreshold float64       `mapstructure:"missing_error_threshold"`
	OutlierMethod         string        `mapstructure:"outlier_method"`
	IQRMultiplier         float64       `mapstructure:"iqr_multiplier"`
	ZScoreThreshold       float64       `mapstructure:"z_score_threshold"`
	Weights               WeightsConfig `mapstructure:"weights"`
}

// WeightsConfig holds the four quality score component weights.
type WeightsConfig struct {
	Missing   float64 `mapstructure:"missing"`
	Duplicate float64 `mapstructure:"duplicate"`
	Outlier   float64 `mapstructure:"outlier"`
	Schema    float64 `mapstructure:"schema"`
}

// ScoringWeights converts the config weights into scorer weights.
func (w WeightsConfig) ScoringWeights() quality.ScoringWeights {
	return quality.ScoringWeights{
		Missing:   w.Missing,
		Duplicate: w.Duplicate,
		Outlier:   w.Outlier,
		Schema:    w.Schema,
	}
}

// StorageConfig configures the report store backend.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	S3       S3Config       `mapstructure:"s3"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// PostgresConfig configures the PostgreSQL report backend.
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// S3Config configures the S3 report backend.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	Prefix          string `mapstructure:"prefix"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// CacheConfig configures the optional Redis report cache.
type CacheConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	TTL          time.Duration `mapstructure:"ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// ReportStoreConfig converts the loaded configuration into the storage
// factory config, using the file backend rooted at the report dir by default.
func (c *Config) ReportStoreConfig() *storage.Config {
	cfg := &storage.Config{
		Backend: c.Storage.Backend,
		File:    &file.FileStoreConfig{Directory: c.Data.ReportDir},
		Postgres: &postgres.PostgresConfig{
			Host:            c.Storage.Postgres.Host,
			Port:            c.Storage.Postgres.Port,
			Database:        c.Storage.Postgres.Database,
			Username:        c.Storage.Postgres.Username,
			Password:        c.Storage.Postgres.Password,
			SSLMode:         c.Storage.Postgres.SSLMode,
			ConnectTimeout:  c.Storage.Postgres.ConnectTimeout,
			QueryTimeout:    c.Storage.Postgres.QueryTimeout,
			MaxConnections:  c.Storage.Postgres.MaxConnections,
			MaxIdleConns:    c.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: c.Storage.Postgres.ConnMaxLifetime,
		},
		S3: &s3.S3Config{
			Region:          c.Storage.S3.Region,
			Bucket:          c.Storage.S3.Bucket,
			AccessKeyID:     c.Storage.S3.AccessKeyID,
			SecretAccessKey: c.Storage.S3.SecretAccessKey,
			Endpoint:        c.Storage.S3.Endpoint,
			ForcePathStyle:  c.Storage.S3.ForcePathStyle,
			Prefix:          c.Storage.S3.Prefix,
			MaxRetries:      c.Storage.S3.MaxRetries,
		},
	}

	if c.Storage.Cache.Enabled {
		cfg.Cache = &storage.CacheConfig{
			Enabled: true,
			Redis: &redis.RedisCacheConfig{
				Addr:         c.Storage.Cache.Addr,
				Password:     c.Storage.Cache.Password,
				DB:           c.Storage.Cache.DB,
				DialTimeout:  c.Storage.Cache.DialTimeout,
				ReadTimeout:  c.Storage.Cache.ReadTimeout,
				WriteTimeout: c.Storage.Cache.WriteTimeout,
				PoolSize:     c.Storage.Cache.PoolSize,
				TTL:          c.Storage.Cache.TTL,
				KeyPrefix:    c.Storage.Cache.KeyPrefix,
			},
		}
	}

	return cfg
}

// Load reads configuration from cfgFile (or ./datawatch.yaml when empty) and
// the environment, applying defaults for anything unset.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("datawatch")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("DATAWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("data.upload_dir", "data/uploads")
	v.SetDefault("data.baseline_dir", "data/baselines")
	v.SetDefault("data.metadata_dir", "data/metadata")
	v.SetDefault("data.report_dir", "data/reports")
	v.SetDefault("data.max_file_size_mb", 500)

	v.SetDefault("quality.missing_warn_threshold", 10.0)
	v.SetDefault("quality.missing_error_threshold", 50.0)
	v.SetDefault("quality.outlier_method", "iqr")
	v.SetDefault("quality.iqr_multiplier", 1.5)
	v.SetDefault("quality.z_score_threshold", 3.0)
	v.SetDefault("quality.weights.missing", 30.0)
	v.SetDefault("quality.weights.duplicate", 25.0)
	v.SetDefault("quality.weights.outlier", 25.0)
	v.SetDefault("quality.weights.schema", 20.0)

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.database", "datawatch")
	v.SetDefault("storage.postgres.username", "datawatch")
	v.SetDefault("storage.postgres.ssl_mode", "disable")
	v.SetDefault("storage.postgres.connect_timeout", "5s")
	v.SetDefault("storage.postgres.query_timeout", "30s")
	v.SetDefault("storage.postgres.max_connections", 10)
	v.SetDefault("storage.postgres.max_idle_conns", 5)
	v.SetDefault("storage.postgres.conn_max_lifetime", "30m")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.max_retries", 3)
	v.SetDefault("storage.cache.enabled", false)
	v.SetDefault("storage.cache.addr", "localhost:6379")
	v.SetDefault("storage.cache.pool_size", 10)
	v.SetDefault("storage.cache.ttl", "1h")
	v.SetDefault("storage.cache.key_prefix", "datawatch")
}
