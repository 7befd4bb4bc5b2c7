package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"

	"github.com/aliskhannn/watermark-relay/internal/api/handlers/group"
	"github.com/aliskhannn/watermark-relay/internal/api/handlers/health"
	"github.com/aliskhannn/watermark-relay/internal/api/handlers/process"
	"github.com/aliskhannn/watermark-relay/internal/api/router"
	"github.com/aliskhannn/watermark-relay/internal/api/server"
	"github.com/aliskhannn/watermark-relay/internal/asset"
	"github.com/aliskhannn/watermark-relay/internal/capability"
	"github.com/aliskhannn/watermark-relay/internal/config"
	"github.com/aliskhannn/watermark-relay/internal/infra/kafka/consumer"
	"github.com/aliskhannn/watermark-relay/internal/infra/kafka/producer"
	"github.com/aliskhannn/watermark-relay/internal/kafka/handlers/message"
	"github.com/aliskhannn/watermark-relay/internal/model"
	"github.com/aliskhannn/watermark-relay/internal/processor"
	grouprepo "github.com/aliskhannn/watermark-relay/internal/repository/group"
	"github.com/aliskhannn/watermark-relay/internal/service/watermark"
	"github.com/aliskhannn/watermark-relay/internal/storage/file"
	"github.com/aliskhannn/watermark-relay/internal/storage/s3"
	"github.com/aliskhannn/watermark-relay/internal/text"
	"github.com/aliskhannn/watermark-relay/internal/video"
)

// assetStore is implemented by both the local and the MinIO asset backends.
type assetStore interface {
	Save(ctx context.Context, name string, src io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	LocalPath(ctx context.Context, ref string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// groupPersister is implemented by the file and the PostgreSQL config backends.
type groupPersister interface {
	Save(ctx context.Context, cfg model.GroupConfig) error
	Delete(ctx context.Context, groupID int64) error
	LoadAll(ctx context.Context) ([]model.GroupConfig, error)
}

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		zlog.Logger.Warn().Str("level", cfg.Logging.Level).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Check which media backends this host supports.
	caps := capability.Probe(cfg.Watermark.FFmpegPath)

	// Retry strategy for Kafka and other external calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Initialize asset storage.
	var assets assetStore
	switch cfg.Storage.Backend {
	case "minio":
		assets, err = s3.NewStorage(ctx, cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.BucketName, cfg.Minio.UseSSL, cfg.Storage.AssetsDir)
	default:
		assets, err = file.NewStorage(cfg.Storage.AssetsDir)
	}
	if err != nil {
		zlog.Logger.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to initialize asset storage")
	}

	// Initialize group config persistence.
	var (
		persister groupPersister
		db        *dbpg.DB
	)
	switch cfg.Store.Backend {
	case "postgres":
		db, err = connectDB(cfg.Database)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
		}

		pg := grouprepo.NewPostgresPersister(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to prepare database schema")
		}
		persister = pg
	default:
		persister, err = grouprepo.NewFilePersister(cfg.Storage.ConfigDir)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to initialize config dir")
		}
	}

	store := grouprepo.NewStore(persister, assets)

	// Load group configs while removing transcoder scratch files left by a previous crash.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := store.Load(gctx)
		if err != nil {
			return err
		}
		zlog.Logger.Info().Int("groups", n).Msg("group configs loaded")
		return nil
	})
	g.Go(func() error {
		n, err := video.SweepScratch(cfg.Storage.TempDir)
		if err != nil {
			zlog.Logger.Warn().Err(err).Msg("failed to sweep scratch dir")
			return nil
		}
		if n > 0 {
			zlog.Logger.Info().Int("removed", n).Msg("removed stale scratch files")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load group configs")
	}

	// Initialize processors and the facade.
	cache := asset.NewCache(assets)
	images := processor.New(cache, cfg.Watermark.FontPath)
	videos, err := video.New(assets, video.Options{
		FFmpegPath:    caps.FFmpegPath,
		Available:     caps.Transcoder,
		ScratchDir:    cfg.Storage.TempDir,
		FontPath:      cfg.Watermark.FontPath,
		MaxConcurrent: cfg.Watermark.MaxConcurrentTranscodes,
	})
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to initialize video watermarker")
	}

	service := watermark.NewService(store, images, videos, text.New(), assets, cache, watermark.Options{
		MaxUploadMB:  cfg.Watermark.MaxUploadMB,
		Capabilities: caps.Capabilities,
	})

	// Start the Kafka relay in a separate goroutine.
	var (
		wg sync.WaitGroup
		p  *producer.Producer
		c  *consumer.Consumer
	)
	if cfg.Kafka.Enabled {
		p = producer.New(&cfg.Kafka, strategy)
		c = consumer.New(&cfg.Kafka, strategy, message.NewHandler(service, p))

		wg.Add(1)
		go c.Consume(ctx, &wg)
	}

	// Start HTTP server in a separate goroutine.
	r := router.Setup(router.Handlers{
		Health:  health.NewHandler(service),
		Group:   group.NewHandler(service, cfg.Watermark.MaxUploadMB),
		Process: process.NewHandler(service, cfg.Server.MaxBodyMB),
	})
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.HTTPPort).Msg("starting server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Wait for Kafka consumer goroutine to finish.
	wg.Wait()

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Close Kafka producer and consumer clients.
	if p != nil {
		if err := p.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
		}
	}
	if c != nil {
		if err := c.Client.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
		}
	}

	// Close master and slave databases.
	if db != nil {
		if err := db.Master.Close(); err != nil {
			zlog.Logger.Printf("failed to close master DB: %v", err)
		}
		for i, s := range db.Slaves {
			if err := s.Close(); err != nil {
				zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
			}
		}
	}
}

// connectDB opens the master and replica connections.
func connectDB(cfg config.Database) (*dbpg.DB, error) {
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}

	// Collect slave DSNs for replica connections.
	slaveDSNs := make([]string, 0, len(cfg.Slaves))
	for _, s := range cfg.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	return dbpg.New(cfg.Master.DSN(), slaveDSNs, opts)
}
