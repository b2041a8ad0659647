package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/datawatch/datawatch/internal/config"
	"github.com/datawatch/datawatch/internal/dataset"
	"github.com/datawatch/datawatch/internal/observability/logging"
	"github.com/datawatch/datawatch/internal/observability/metrics"
	"github.com/datawatch/datawatch/internal/quality"
	"github.com/datawatch/datawatch/internal/server"
	"github.com/datawatch/datawatch/internal/storage"
	"github.com/datawatch/datawatch/internal/versioning"
)

const version = "0.1.0"

func main() {
	cfgFile := flag.String("config", "", "config file (default ./datawatch.yaml)")
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		logrus.WithError(err).Fatal("Cannot load configuration")
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.WithField("version", version).Info("Starting datawatch server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := dataset.NewFileReader(logger)

	engine := quality.NewEngine(
		quality.MissingConfig{
			WarnThreshold:  cfg.Quality.MissingWarnThreshold,
			ErrorThreshold: cfg.Quality.MissingErrorThreshold,
		},
		quality.OutlierConfig{
			Method:          quality.OutlierMethod(cfg.Quality.OutlierMethod),
			IQRMultiplier:   cfg.Quality.IQRMultiplier,
			ZScoreThreshold: cfg.Quality.ZScoreThreshold,
		},
		cfg.Quality.Weights.ScoringWeights(),
		quality.NewIsolationForest(logger),
		logger,
	)

	versions, err := versioning.NewManager(cfg.Data.BaselineDir, reader, logger)
	if err != nil {
		logger.WithError(err).Fatal("Cannot initialize versioning manager")
	}

	reports, err := storage.NewReportStore(cfg.ReportStoreConfig(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Cannot configure report store")
	}
	if err := reports.Connect(ctx); err != nil {
		logger.WithError(err).Fatal("Cannot connect report store")
	}
	defer reports.Close()

	prom := metrics.NewPrometheusMetrics(logger)
	prom.SetBaselineVersions(len(versions.List()))

	srv, err := server.NewServer(&server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Address:         cfg.Server.Address(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxRequestSize:  cfg.Data.MaxFileSizeMB * 1024 * 1024,
		EnableCORS:      true,
		UploadDir:       cfg.Data.UploadDir,
		MetadataDir:     cfg.Data.MetadataDir,
	}, server.Dependencies{
		Reader:   reader,
		Engine:   engine,
		Versions: versions,
		Reports:  reports,
		Metrics:  prom,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Cannot create HTTP server")
	}

	go func() {
		if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")

	if err := srv.Stop(context.Background()); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	logger.Info("Server stopped")
}
