package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kbforge/kbforge/internal/config"
	db "github.com/kbforge/kbforge/internal/core/database"
	"github.com/kbforge/kbforge/internal/core/ingestion_engine"
	"github.com/kbforge/kbforge/internal/core/llm"
	objectclient "github.com/kbforge/kbforge/internal/core/object-client"
	"github.com/kbforge/kbforge/internal/queue"
)

// App wires the ingestion worker: persistence, object storage, embedder,
// queue consumer, dispatcher and the observer HTTP server.
type App struct {
	DBClient   *db.DatabaseClient
	Embedder   *llm.GeminiEmbedder
	Writer     *ingestion_engine.ChunkWriter
	Ingestor   *ingestion_engine.Ingestor
	Queue      *queue.RedisQueue
	Dispatcher *queue.Dispatcher
	Server     *Server

	logger *zap.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(appCtx, cfg, logger)
	if err != nil {
		return nil, err
	}

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(appCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("queue backend ready", zap.String("stream", cfg.JobStream))

	progress := queue.NewRedisProgress(redisClient, cfg.ProgressChannel, logger)

	writer, err := ingestion_engine.NewChunkWriter(dbClient, cfg.WriterConcurrency, progress, logger)
	if err != nil {
		return nil, err
	}

	ingCfg := &ingestion_engine.IngestConfig{
		ChunkSize:     cfg.ChunkSize,
		ChunkOverlap:  cfg.ChunkOverlap,
		BatchSize:     cfg.EmbedBatchSize,
		MinContentLen: cfg.MinContentLen,
	}

	ingestor, err := ingestion_engine.NewIngestor(
		dbClient,
		objClient,
		ingestion_engine.NewHTTPFetcher(30*time.Second),
		ingestion_engine.NewDocconvExtractor(logger),
		ingestion_engine.NewBatchEmbedder(embedder, cfg.EmbedBatchSize),
		writer,
		ingCfg,
		logger,
	)
	if err != nil {
		return nil, err
	}

	jobQueue := queue.NewRedisQueue(redisClient, cfg.JobStream, cfg.ConsumerGroup, cfg.ConsumerName, logger)
	dispatcher := queue.NewDispatcher(jobQueue, dbClient, cfg.MaxCrawlDepth, logger)
	server := NewServer(cfg, dbClient, progress, logger)

	return &App{
		DBClient:   dbClient.(*db.DatabaseClient),
		Embedder:   embedder,
		Writer:     writer,
		Ingestor:   ingestor,
		Queue:      jobQueue,
		Dispatcher: dispatcher,
		Server:     server,
		logger:     logger,
	}, nil
}

// Run drives the consumer loop and the HTTP server until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Queue.Run(gctx, a.Ingestor.ProcessJob)
	})

	g.Go(func() error {
		return a.Server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Close() {
	if a.Writer != nil {
		a.Writer.Release()
	}
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.Queue != nil {
		_ = a.Queue.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
