package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/septivank/meter-verification-engine/internal/config"
	"github.com/septivank/meter-verification-engine/internal/consensus"
	"github.com/septivank/meter-verification-engine/internal/db"
	"github.com/septivank/meter-verification-engine/internal/fraud"
	"github.com/septivank/meter-verification-engine/internal/lock"
	"github.com/septivank/meter-verification-engine/internal/metrics"
	"github.com/septivank/meter-verification-engine/internal/mq"
	"github.com/septivank/meter-verification-engine/internal/ocr"
	"github.com/septivank/meter-verification-engine/internal/repository"
	"github.com/septivank/meter-verification-engine/internal/service"
	"github.com/septivank/meter-verification-engine/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startWorker(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	processor *service.ProcessorService,
) (*mq.Consumer, error) {
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:     conn,
		Queue:          cfg.RabbitMQ.VerifyQueue,
		DLQQueue:       cfg.RabbitMQ.DLQQueue,
		Exchange:       cfg.RabbitMQ.VerifyExchange,
		RoutingKey:     cfg.RabbitMQ.VerifyRoutingKey,
		PrefetchCount:  cfg.RabbitMQ.PrefetchCount,
		ProcessTimeout: cfg.Pipeline.ProcessTimeout,
		Logger:         logger,
		Handler:        processor.ProcessMessage,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting verification consumer",
				zap.String("queue", cfg.RabbitMQ.VerifyQueue),
				zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
			return consumer.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("verifier stopped gracefully")
			return nil
		},
	})

	return consumer, nil
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL, int32(cfg.Database.MaxConns))
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *pgxpool.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideFraudEngine creates the fraud scoring engine
func ProvideFraudEngine(cfg *config.Config, logger *zap.Logger) *fraud.Engine {
	engine := fraud.NewEngine(fraud.Options{
		Enabled:            cfg.Fraud.Enabled,
		TypicalConsumption: cfg.Fraud.TypicalConsumption,
		MaxImageAge:        cfg.Fraud.MaxImageAge,
		MaxImagePixels:     cfg.Fraud.MaxImagePixels,
	})
	if !engine.Enabled() {
		logger.Warn("fraud detection disabled, every reading scores 0")
	}
	return engine
}

// ProvideReadingSelector wires server OCR behind the client-reading shortcut
func ProvideReadingSelector(cfg *config.Config, logger *zap.Logger) *ocr.Selector {
	var extractor ocr.Extractor
	if cfg.OCR.Endpoint != "" {
		extractor = ocr.NewHTTPClient(ocr.ClientConfig{
			Endpoint:   cfg.OCR.Endpoint,
			APIKey:     cfg.OCR.APIKey,
			EngineName: cfg.OCR.EngineName,
			Timeout:    cfg.OCR.Timeout,
		}, logger)
	} else {
		logger.Warn("OCR_ENDPOINT not set, only confident client readings can be verified")
	}
	return ocr.NewSelector(extractor, cfg.OCR.ClientConfidenceThreshold)
}

// ProvideUploader creates the image store. Without a bucket images get placeholder references.
func ProvideUploader(cfg *config.Config, logger *zap.Logger) (storage.Uploader, error) {
	if cfg.Storage.Bucket == "" {
		logger.Warn("STORAGE_BUCKET not set, images will not be stored")
		return nil, nil
	}

	uploader, err := storage.NewS3Uploader(context.Background(), storage.S3Config{
		Endpoint:   cfg.Storage.Endpoint,
		Region:     cfg.Storage.Region,
		Bucket:     cfg.Storage.Bucket,
		AccessKey:  cfg.Storage.AccessKey,
		SecretKey:  cfg.Storage.SecretKey,
		Prefix:     cfg.Storage.Prefix,
		GatewayURL: cfg.Storage.GatewayURL,
	}, logger)
	if err != nil {
		return nil, err
	}
	return uploader, nil
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates the verification event publisher
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.EventsExchange, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

// ProvideConsensusLog creates the consensus log, or nil when it is disabled
func ProvideConsensusLog(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (consensus.Submitter, error) {
	if !cfg.Consensus.Enabled {
		logger.Warn("consensus logging disabled")
		return nil, nil
	}

	log, err := consensus.NewAMQPLog(conn, cfg.Consensus.Exchange, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create consensus log: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return log.Close()
		},
	})
	return log, nil
}

// ProvideTopicResolver maps meter regions to consensus topics
func ProvideTopicResolver(cfg *config.Config) consensus.TopicResolver {
	return consensus.NewStaticTopicResolver(cfg.Consensus.Topics, cfg.Consensus.DefaultTopic)
}

// ProvideRedisClient creates the lock client, or nil when REDIS_URL is unset
func ProvideRedisClient(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	if cfg.Redis.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to ping redis: %w", err)
			}
			logger.Info("connected to redis", zap.String("addr", opts.Addr))
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

// ProvideMeterLocker creates the per-meter lock, or nil without redis
func ProvideMeterLocker(client *redis.Client, cfg *config.Config) service.MeterLocker {
	locker := lock.NewMeterLocker(client, cfg.Redis.LockTTL)
	if locker == nil {
		return nil
	}
	return locker
}

// ProvidePipeline creates the verification pipeline
func ProvidePipeline(
	repo *repository.Repository,
	selector *ocr.Selector,
	engine *fraud.Engine,
	uploader storage.Uploader,
	submitter consensus.Submitter,
	topics consensus.TopicResolver,
	locker service.MeterLocker,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *service.Pipeline {
	return service.NewPipeline(service.PipelineDeps{
		Meters:    repo,
		History:   repo,
		Records:   repo,
		Selector:  selector,
		Scorer:    engine,
		Uploader:  uploader,
		Consensus: submitter,
		Topics:    topics,
		Locker:    locker,
		Metrics:   m,
		Logger:    logger,
		Options: service.PipelineOptions{
			HistoryLimit:     cfg.Pipeline.HistoryLimit,
			StorageTimeout:   cfg.Storage.Timeout,
			ConsensusTimeout: cfg.Consensus.Timeout,
		},
	})
}

// ProvideProcessorService creates a new processor service instance
func ProvideProcessorService(pipeline *service.Pipeline, publisher *mq.Publisher, cfg *config.Config, logger *zap.Logger) *service.ProcessorService {
	return service.NewProcessorService(pipeline, publisher, service.RoutingKeys{
		Completed: cfg.RabbitMQ.CompletedRoutingKey,
		Rejected:  cfg.RabbitMQ.RejectedRoutingKey,
	}, logger)
}
