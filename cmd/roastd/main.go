// Package main wires together the roast service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/siteroast/siteroast/internal/api"
	"github.com/siteroast/siteroast/internal/capture"
	"github.com/siteroast/siteroast/internal/clock/system"
	"github.com/siteroast/siteroast/internal/config"
	"github.com/siteroast/siteroast/internal/critic"
	"github.com/siteroast/siteroast/internal/gate"
	"github.com/siteroast/siteroast/internal/id/uuid"
	"github.com/siteroast/siteroast/internal/logging"
	"github.com/siteroast/siteroast/internal/metrics"
	"github.com/siteroast/siteroast/internal/ratelimit"
	"github.com/siteroast/siteroast/internal/roast"
	"github.com/siteroast/siteroast/internal/storage/gcs"
	"github.com/siteroast/siteroast/internal/storage/local"
	storagememory "github.com/siteroast/siteroast/internal/storage/memory"
	storememory "github.com/siteroast/siteroast/internal/store/memory"
	"github.com/siteroast/siteroast/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	var records roast.RecordStore
	if cfg.DB.DSN != "" {
		pgStore, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			logger.Fatal("postgres init failed", zap.Error(err))
		}
		defer pgStore.Close()
		records = pgStore
	} else {
		logger.Warn("db.dsn not set, using in-memory record store")
		records = storememory.NewRecordStore()
	}

	capturer, err := capture.New(capture.Config{
		UserAgent:   cfg.Capture.UserAgent,
		NavTimeout:  cfg.NavTimeout(),
		SettleDelay: time.Duration(cfg.Capture.SettleMs) * time.Millisecond,
		MaxWidth:    cfg.Capture.MaxWidth,
		JPEGQuality: cfg.Capture.JPEGQuality,
	})
	if err != nil {
		logger.Fatal("capturer init failed", zap.Error(err))
	}
	defer capturer.Close()

	criticClient := critic.New(critic.Config{
		APIKey:   cfg.Gemini.APIKey,
		Model:    cfg.Gemini.Model,
		Endpoint: cfg.Gemini.Endpoint,
		Timeout:  time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second,
	}, logger.Named("critic"))

	clock := system.New()
	limiter := ratelimit.New(ratelimit.Config{
		Window:    cfg.RateWindow(),
		Max:       cfg.RateLimit.MaxRequests,
		AllowList: cfg.RateLimit.AllowList,
	}, clock)

	svc := roast.NewService(
		gate.New(),
		capturer,
		criticClient,
		blobs,
		records,
		uuid.New(),
		clock,
		roast.ServiceConfig{
			BlobPrefix:  cfg.Storage.Prefix,
			ContentType: cfg.Storage.ContentType,
		},
		logger.Named("roast"),
	)

	apiServer := api.NewServer(svc, records, limiter, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newBlobStore(ctx context.Context, cfg config.Config) (roast.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		return gcs.New(client, gcs.Config{
			Bucket:        cfg.Storage.GCSBucket,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
	case "local":
		return local.New(local.Config{
			BaseDir: cfg.Storage.LocalDir,
			BaseURL: cfg.Storage.PublicBaseURL,
		})
	case "memory":
		return storagememory.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
