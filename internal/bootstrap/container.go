package bootstrap

import (
	"context"
	"time"

	"clinical-intake-be/internal/config"
	"clinical-intake-be/internal/controller"
	"clinical-intake-be/internal/handler"
	"clinical-intake-be/internal/pkg/logger"
	"clinical-intake-be/internal/repository/memory"
	"clinical-intake-be/internal/repository/unitofwork"
	"clinical-intake-be/internal/service"
	"clinical-intake-be/internal/websocket"
	"clinical-intake-be/pkg/ai/pipeline"
	"clinical-intake-be/pkg/llm/factory"
	pktNats "clinical-intake-be/pkg/nats"
	"clinical-intake-be/pkg/rag/message"
	"clinical-intake-be/pkg/rag/retrieval"
	"clinical-intake-be/pkg/utils/async"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Logger logger.ILogger

	// Controllers
	IntakeController controller.IIntakeController
	AlertHandler     *handler.AlertHandler

	// Background workers, started by main
	ConsumerService service.IConsumerService
	AlertService    *service.AlertService
	WebSocketHub    *websocket.Hub
	Executor        *async.Executor

	closers []func()
}

func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config) (*Container, error) {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	alertLogger := logger.NewIsolatedLogger(cfg.App.AlertLogFilePath)

	c := &Container{Logger: sysLogger}

	// Storage
	uowFactory := unitofwork.NewRepositoryFactory(db)
	store := message.NewStore(uowFactory)

	// Providers
	llmProvider, err := factory.NewLLMProvider(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize LLM provider", goerr.V("provider", cfg.Ai.LLMProvider))
	}
	embeddingProvider, err := factory.NewEmbeddingProvider(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize embedding provider", goerr.V("provider", cfg.Ai.EmbeddingProvider))
	}

	// Vector index
	var (
		index  retrieval.Index
		writer retrieval.Writer
	)
	if cfg.Pipeline.VectorIndex == "memory" {
		memIndex := memory.NewEmbeddingIndex()
		index, writer = memIndex, memIndex
		sysLogger.Warn("BOOT", "Using in-process vector index, embeddings are lost on restart", nil)
	} else {
		repoIndex := retrieval.NewRepositoryIndex(uowFactory)
		index, writer = repoIndex, repoIndex
	}
	retriever := retrieval.NewStore(embeddingProvider, index, sysLogger, cfg.Pipeline.EmbeddingTimeout, cfg.Ai.EmbeddingDimensions)
	indexer := retrieval.NewIndexer(embeddingProvider, writer, sysLogger, cfg.Pipeline.EmbeddingTimeout, cfg.Ai.EmbeddingDimensions, cfg.Ai.EmbeddingMaxInput)

	// Embedding queue
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	publisherService := service.NewPublisherService(pubSub, cfg.Pipeline.EmbeddingTopic)
	embeddingQueue := service.NewEmbeddingQueue(publisherService, sysLogger)
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.Pipeline.EmbeddingTopic, indexer, cfg.Pipeline.EmbeddingWorkers, sysLogger)

	// Domain events
	var eventPublisher pipeline.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("BOOT", "NATS publisher unavailable, domain events disabled", logger.ErrorDetails(err, nil))
	} else {
		eventPublisher = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("BOOT", "NATS subscriber unavailable", logger.ErrorDetails(err, nil))
	} else {
		c.closers = append(c.closers, natsSub.Close)
	}

	// Pipeline
	c.Executor = async.NewExecutor(sysLogger)
	finalizer := pipeline.NewFinalizer(store, store, llmProvider, eventPublisher, sysLogger, pipeline.FinalizerConfig{
		ModelTimeout:  cfg.Pipeline.ModelTimeout,
		OnModelMarker: cfg.Pipeline.FinalizeOnModelMarker,
	})
	processor := pipeline.NewProcessor(pipeline.Dependencies{
		Turns:     store,
		Retriever: retriever,
		Model:     llmProvider,
		Queue:     embeddingQueue,
		Executor:  c.Executor,
		Finalizer: finalizer,
		Logger:    sysLogger,
		Locker:    memory.NewSessionLockRepository(cfg.Pipeline.SessionLockTTL),
		Events:    eventPublisher,
	}, pipeline.Config{
		ContextLimit: cfg.Pipeline.ContextLimit,
		ModelTimeout: cfg.Pipeline.ModelTimeout,
	})

	intakeService := service.NewIntakeService(uowFactory, store, processor, finalizer, sysLogger)
	c.IntakeController = controller.NewIntakeController(intakeService, cfg.App.JwtSecret, sysLogger)

	// Reviewer alerts
	rdb := newRedisClient(ctx, cfg.App.RedisURL, sysLogger)
	if rdb != nil {
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}
	c.WebSocketHub = websocket.NewHub(rdb, alertLogger)
	c.AlertHandler = handler.NewAlertHandler(c.WebSocketHub, cfg.App.JwtSecret, alertLogger)
	c.AlertService = service.NewAlertService(natsSub, store, c.WebSocketHub, alertLogger)

	return c, nil
}

// newRedisClient returns nil when Redis is not reachable; alerts then stay on this instance.
func newRedisClient(ctx context.Context, url string, log logger.ILogger) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("BOOT", "Failed to parse Redis URL, using it as address", logger.ErrorDetails(err, nil))
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("BOOT", "Redis unavailable, alert fan-out is local only", logger.ErrorDetails(err, nil))
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// Close releases brokers and connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
