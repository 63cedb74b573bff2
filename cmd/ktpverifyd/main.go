package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ktp-verify/internal/common"
	"ktp-verify/internal/export"
	"ktp-verify/internal/facestore"
	"ktp-verify/internal/metrics"
	"ktp-verify/internal/pipeline"
	"ktp-verify/internal/repository"
	"ktp-verify/internal/server"
	"ktp-verify/internal/validator"
	"ktp-verify/internal/vision/gemini"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("creating DB pool", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("DB health failed", "error", err)
		os.Exit(1)
	}

	records := repository.NewKTPRepository(pool, logger)
	logs := repository.NewProcessingLogRepository(pool, logger)

	// The face store is optional infrastructure: the service still verifies
	// cards when the object store is down, it just skips the face crop.
	var faces pipeline.FaceSaver
	if store, err := facestore.New(facestore.Config{
		Endpoint:  cfg.FaceStore.Endpoint,
		AccessKey: cfg.FaceStore.AccessKey,
		SecretKey: cfg.FaceStore.SecretKey,
		Region:    cfg.FaceStore.Region,
		Bucket:    cfg.FaceStore.Bucket,
		UseSSL:    cfg.FaceStore.UseSSL,
	}, logger); err != nil {
		logger.Warn("face store unavailable, continuing without it", "error", err)
	} else if err := store.EnsureBucket(ctx); err != nil {
		logger.Warn("face store bucket check failed, continuing without it", "error", err)
	} else {
		faces = store
	}

	extractor := gemini.NewClient(gemini.Config{
		APIKey:  cfg.Vision.APIKey,
		BaseURL: cfg.Vision.BaseURL,
		Model:   cfg.Vision.Model,
		Timeout: cfg.Vision.Timeout,
	}, logger)
	m := metrics.New()

	verifier := pipeline.NewVerifier(
		logger,
		pipeline.Config{
			MaxUploadBytes: cfg.Pipeline.MaxUploadBytes,
			RequestTimeout: cfg.Pipeline.RequestTimeout,
		},
		extractor,
		validator.New(validator.Config{StrictNIK: cfg.Pipeline.StrictNIK}),
		records,
		logs,
		faces,
		m,
	)

	handler := server.NewHandler(
		logger,
		verifier,
		records,
		logs,
		export.NewService(records, logger),
		pool,
		cfg.Pipeline.MaxUploadBytes,
	)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.NewRouter(handler),
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	logger.Info("stopped")
}
