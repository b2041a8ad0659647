package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/pkg/errors"
	"github.com/datawatch/datawatch/pkg/models"
)

// PostgresConfig holds configuration for PostgreSQL report storage.
type PostgresConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	ConnectTimeout  time.Duration `json:"connect_timeout"`
	QueryTimeout    time.Duration `json:"query_timeout"`
	MaxConnections  int           `json:"max_connections"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// PostgresStore persists quality reports in a single quality_reports table
// with the full report as a JSONB payload.
type PostgresStore struct {
	config *PostgresConfig
	db     *sql.DB
	logger *logrus.Logger
	mu     sync.RWMutex
	closed bool
}

const createTableStmt = `
CREATE TABLE IF NOT EXISTS quality_reports (
    id         TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    payload    JSONB NOT NULL
)`

// NewPostgresStore creates a PostgreSQL report store.
func NewPostgresStore(config *PostgresConfig, logger *logrus.Logger) (*PostgresStore, error) {
	if config == nil {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "postgres config cannot be nil")
	}
	if config.Host == "" || config.Database == "" {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "postgres host and database are required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &PostgresStore{config: config, logger: logger}, nil
}

// Connect opens the connection pool and ensures the reports table exists.
func (p *PostgresStore) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		return nil
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.config.Host,
		p.config.Port,
		p.config.Username,
		p.config.Password,
		p.config.Database,
		p.config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed,
			"cannot open database connection")
	}

	db.SetMaxOpenConns(p.config.MaxConnections)
	db.SetMaxIdleConns(p.config.MaxIdleConns)
	db.SetConnMaxLifetime(p.config.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, p.config.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed,
			"cannot reach database")
	}

	if _, err := db.ExecContext(ctx, createTableStmt); err != nil {
		db.Close()
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"cannot create quality_reports table")
	}

	p.db = db

	p.logger.WithFields(logrus.Fields{
		"host":     p.config.Host,
		"port":     p.config.Port,
		"database": p.config.Database,
	}).Info("Connected to PostgreSQL")

	return nil
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	if p.db != nil {
		err := p.db.Close()
		p.db = nil
		p.closed = true

		if err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed,
				"cannot close database connection")
		}
	}

	p.logger.Info("PostgreSQL connection closed")
	return nil
}

// Ping verifies the database connection.
func (p *PostgresStore) Ping(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || p.db == nil {
		return errors.NewStorageError(errors.CodeConnectionFailed, "database not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.QueryTimeout)
	defer cancel()

	if err := p.db.PingContext(ctx); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed,
			"database ping failed")
	}
	return nil
}

// Save upserts the report payload keyed by report id.
func (p *PostgresStore) Save(ctx context.Context, report *models.QualityReport) error {
	if report == nil || report.ReportID == "" {
		return errors.NewValidationError(errors.CodeInvalidInput, "report with a report id is required")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || p.db == nil {
		return errors.NewStorageError(errors.CodeConnectionFailed, "database not connected")
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError,
			"cannot marshal quality report")
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.QueryTimeout)
	defer cancel()

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO quality_reports (id, created_at, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
		report.ReportID, report.Timestamp, payload)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			fmt.Sprintf("cannot save report %s", report.ReportID))
	}

	p.logger.WithField("report_id", report.ReportID).Debug("Report saved")
	return nil
}

// Get retrieves a report payload by id.
func (p *PostgresStore) Get(ctx context.Context, reportID string) (*models.QualityReport, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || p.db == nil {
		return nil, errors.NewStorageError(errors.CodeConnectionFailed, "database not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.QueryTimeout)
	defer cancel()

	var payload []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT payload FROM quality_reports WHERE id = $1`, reportID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.NewStorageError(errors.CodeReportNotFound,
			fmt.Sprintf("report %s not found", reportID))
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("cannot read report %s", reportID))
	}

	var report models.QualityReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			fmt.Sprintf("report %s is corrupt", reportID))
	}
	return &report, nil
}

// List returns reports newest first.
func (p *PostgresStore) List(ctx context.Context, limit int) ([]*models.QualityReport, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || p.db == nil {
		return nil, errors.NewStorageError(errors.CodeConnectionFailed, "database not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.QueryTimeout)
	defer cancel()

	query := `SELECT payload FROM quality_reports ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			"cannot list reports")
	}
	defer rows.Close()

	var reports []*models.QualityReport
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
				"cannot scan report row")
		}

		var report models.QualityReport
		if err := json.Unmarshal(payload, &report); err != nil {
			p.logger.WithField("error", err).Warn("Skipping corrupt report payload")
			continue
		}
		reports = append(reports, &report)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			"report listing failed")
	}
	return reports, nil
}

// Delete removes a report row.
func (p *PostgresStore) Delete(ctx context.Context, reportID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || p.db == nil {
		return errors.NewStorageError(errors.CodeConnectionFailed, "database not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.QueryTimeout)
	defer cancel()

	result, err := p.db.ExecContext(ctx,
		`DELETE FROM quality_reports WHERE id = $1`, reportID)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeDeleteFailed,
			fmt.Sprintf("cannot delete report %s", reportID))
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NewStorageError(errors.CodeReportNotFound,
			fmt.Sprintf("report %s not found", reportID))
	}

	p.logger.WithField("report_id", reportID).Debug("Report deleted")
	return nil
}
