package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"healthshield-ai/internal/ai"
	"healthshield-ai/internal/app"
	"healthshield-ai/internal/cache"
	"healthshield-ai/internal/config"
	"healthshield-ai/internal/memstore"
	"healthshield-ai/internal/model"
	"healthshield-ai/internal/platform/database"
	"healthshield-ai/internal/platform/gcs"
	"healthshield-ai/internal/platform/logger"
	"healthshield-ai/internal/platform/qdrant"
	rabbitmqClient "healthshield-ai/internal/platform/rabbitmq"
	redisClient "healthshield-ai/internal/platform/redis"
	"healthshield-ai/internal/platform/tracing"
	"healthshield-ai/internal/rag"
	"healthshield-ai/internal/repository"
	"healthshield-ai/internal/transport/http/handler"
	"healthshield-ai/internal/worker"
)

type App struct {
	Config *config.Config
	Log    *logger.Logger

	DB      *gorm.DB
	Redis   *redis.Client
	MQConn  *amqp.Connection
	Bucket  *gcs.BlobStore
	Vectors *qdrant.VectorIndex

	IndexWorker     *worker.IndexWorker
	LocalDispatcher *worker.LocalDispatcher

	DocumentService *app.DocumentService
	ChatService     *app.ChatService
	IndexService    *app.IndexService

	shutdownTracing func(context.Context) error
	StartedAt       time.Time
}

// New connects every configured backend and wires the services. On error the
// resources opened so far are released.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Log: log, StartedAt: time.Now()}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.shutdownTracing, err = tracing.Init(ctx, log, tracing.Config{
		ServiceName:  cfg.App.Name,
		Environment:  cfg.App.Env,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		Insecure:     cfg.Tracing.Insecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, err
	}

	documents, err := a.openDocumentStore(ctx)
	if err != nil {
		return nil, err
	}
	blobs, err := a.openBlobStore(ctx)
	if err != nil {
		return nil, err
	}
	vectors, err := a.openVectorIndex(ctx)
	if err != nil {
		return nil, err
	}

	var listCache app.DocumentListCache
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		a.Redis, err = redisClient.New(ctx, log, redisClient.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		listCache = cache.NewDocumentCache(a.Redis, time.Duration(cfg.Redis.DocumentListTTLSeconds)*time.Second)
	}

	llm := ai.NewClient(ai.ClientConfig{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		EmbeddingRPS:   cfg.LLM.EmbeddingRPS,
		Timeout:        time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		log.Warn("llm api key is not configured; chat and indexing will fail until it is set")
	}

	indexer := rag.NewIndexer(log, llm, vectors, cfg.RAG.IndexConcurrency)
	a.IndexService = app.NewIndexService(log, blobs, documents, indexer, cfg.RAG.ChunkSize)

	dispatcher, err := a.startIndexing(ctx)
	if err != nil {
		return nil, err
	}

	a.DocumentService = app.NewDocumentService(log, blobs, documents, listCache, dispatcher, cfg.App.MaxUploadBytes)
	a.ChatService = app.NewChatService(
		log,
		rag.NewRetriever(llm, vectors, cfg.RAG.TopK),
		blobs,
		documents,
		app.NewClientSessions(llm),
		SafetySettings(cfg.Safety),
		cfg.Chat.RelayBuffer,
	)
	return a, nil
}

func (a *App) openDocumentStore(ctx context.Context) (app.DocumentStore, error) {
	dbCfg := database.Config{Driver: a.Config.Metadata.Driver}
	switch dbCfg.Driver {
	case "memory":
		a.Log.Warn("metadata store is in memory; documents are lost on restart")
		return memstore.NewDocumentStore(), nil
	case database.DriverPostgres:
		dbCfg.DSN = a.Config.PostgresDSN()
	case database.DriverSQLite:
		dbCfg.DSN = a.Config.Metadata.SQLitePath
	default:
		dbCfg.DSN = a.Config.MySQLDSN()
	}
	var err error
	a.DB, err = database.Open(ctx, a.Log, dbCfg)
	if err != nil {
		return nil, err
	}
	if err := a.DB.AutoMigrate(&model.Document{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return repository.NewDocumentRepository(a.DB), nil
}

func (a *App) openBlobStore(ctx context.Context) (app.BlobStore, error) {
	if a.Config.Storage.Mode == "memory" {
		a.Log.Warn("blob store is in memory; uploads are lost on restart")
		return memstore.NewBlobStore(), nil
	}
	bucket, err := gcs.New(ctx, a.Log, gcs.Config{
		Bucket:          a.Config.Storage.Bucket,
		EmulatorHost:    a.Config.Storage.EmulatorHost,
		CredentialsFile: a.Config.Storage.CredentialsFile,
	})
	if err != nil {
		return nil, err
	}
	a.Bucket = bucket
	return bucket, nil
}

func (a *App) openVectorIndex(ctx context.Context) (rag.VectorIndex, error) {
	if a.Config.Vector.Provider == "memory" {
		return memstore.NewVectorIndex(), nil
	}
	index, err := qdrant.NewVectorIndex(a.Log, qdrant.Config{
		URL:         a.Config.Vector.URL,
		APIKey:      a.Config.Vector.APIKey,
		Collection:  a.Config.Vector.Collection,
		VectorDim:   a.Config.Vector.Dimension,
		IndexedKeys: []string{rag.MetaOwnerID, rag.MetaDocumentID},
	})
	if err != nil {
		return nil, err
	}
	if err := index.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	a.Vectors = index
	return index, nil
}

// startIndexing prefers the RabbitMQ queue and falls back to in-process
// goroutines when no broker is configured.
func (a *App) startIndexing(ctx context.Context) (app.IndexDispatcher, error) {
	timeout := time.Duration(a.Config.RAG.IndexTimeoutSeconds) * time.Second
	if strings.TrimSpace(a.Config.RabbitMQ.URL) == "" {
		a.LocalDispatcher = worker.NewLocalDispatcher(a.Log, a.IndexService, timeout)
		return a.LocalDispatcher, nil
	}

	conn, err := rabbitmqClient.New(ctx, a.Log, a.Config.RabbitMQ.URL, a.Config.RabbitMQ.IndexQueue)
	if err != nil {
		return nil, err
	}
	a.MQConn = conn
	a.IndexWorker = worker.NewIndexWorker(a.Log, conn, a.IndexService, a.Config.RabbitMQ.IndexQueue, timeout)
	if err := a.IndexWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start index worker failed: %w", err)
	}
	return rabbitmqClient.NewIndexPublisher(conn, a.Config.RabbitMQ.IndexQueue), nil
}

// SafetySettings maps configured thresholds onto the generation API's harm
// categories. Blank thresholds are left to the provider default.
func SafetySettings(cfg config.SafetyConfig) []ai.SafetySetting {
	pairs := []ai.SafetySetting{
		{Category: "HARM_CATEGORY_HARASSMENT", Threshold: cfg.Harassment},
		{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: cfg.HateSpeech},
		{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: cfg.SexuallyExplicit},
		{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: cfg.DangerousContent},
	}
	out := make([]ai.SafetySetting, 0, len(pairs))
	for _, p := range pairs {
		if strings.TrimSpace(p.Threshold) != "" {
			out = append(out, p)
		}
	}
	return out
}

// HealthChecks lists a probe for every external backend in use.
func (a *App) HealthChecks() []handler.HealthCheck {
	var checks []handler.HealthCheck
	if a.DB != nil {
		checks = append(checks, handler.HealthCheck{Name: "metadata", Check: func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}})
	}
	if a.Redis != nil {
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}})
	}
	if a.MQConn != nil {
		checks = append(checks, handler.HealthCheck{Name: "rabbitmq", Check: func(context.Context) error {
			if a.MQConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}})
	}
	if a.Vectors != nil {
		checks = append(checks, handler.HealthCheck{Name: "vector", Check: a.Vectors.Ping})
	}
	if a.Bucket != nil {
		checks = append(checks, handler.HealthCheck{Name: "storage", Check: a.Bucket.Ping})
	}
	return checks
}

// Close drains background indexing before closing the backends it uses.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.LocalDispatcher != nil {
		a.LocalDispatcher.Close(ctx)
	}
	if a.IndexWorker != nil {
		a.IndexWorker.Close()
	}
	if a.MQConn != nil {
		errs = append(errs, a.MQConn.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Bucket != nil {
		errs = append(errs, a.Bucket.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if a.shutdownTracing != nil {
		errs = append(errs, a.shutdownTracing(ctx))
	}
	return errors.Join(errs...)
}
