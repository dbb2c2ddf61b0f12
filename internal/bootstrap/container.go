// Package bootstrap wires configuration into the services shared by the
// server, the worker and the CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/feichai0017/sit-pipeline/api/handlers"
	cfg "github.com/feichai0017/sit-pipeline/config"
	"github.com/feichai0017/sit-pipeline/internal/agent"
	"github.com/feichai0017/sit-pipeline/internal/agent/candidate"
	"github.com/feichai0017/sit-pipeline/internal/agent/phrase"
	"github.com/feichai0017/sit-pipeline/internal/repository"
	"github.com/feichai0017/sit-pipeline/internal/service/scan"
	"github.com/feichai0017/sit-pipeline/internal/service/sit"
	"github.com/feichai0017/sit-pipeline/internal/utils/validator"
	"github.com/feichai0017/sit-pipeline/pkg/events"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
	"github.com/feichai0017/sit-pipeline/pkg/queue"
	"github.com/feichai0017/sit-pipeline/pkg/storage"
)

const (
	DispatchQueue = "queue"
	DispatchLocal = "local"
)

// NewLogger builds the process logger writing to stdout and a rotated file
// under logs/.
func NewLogger(component string) (logger.Logger, error) {
	c := cfg.GetServerConfig()
	return logger.NewLogger(
		logger.WithLevel(c.LogLevel),
		logger.WithEncoding(c.LogEncoding),
		logger.WithOutputPaths([]string{"stdout", "logs/" + component + ".log"}),
		logger.WithInitialFields(map[string]interface{}{"component": component}),
	)
}

type Container struct {
	Logger       logger.Logger
	DB           *gorm.DB
	Storage      storage.Storage
	Redis        *redis.Client
	Queue        *queue.AsynqQueue
	Events       events.Publisher
	Orchestrator *scan.Orchestrator
	ScanService  *scan.Service
	SitService   *sit.Service

	closers []func()
}

// New wires every dependency. dispatch selects how created scans reach the
// orchestrator: through the asynq queue or on an in-process goroutine.
func New(ctx context.Context, log logger.Logger, dispatch string) (_ *Container, err error) {
	c := &Container{Logger: log}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	serverCfg := cfg.GetServerConfig()
	dbCfg := cfg.GetDatabaseConfig()

	// 初始化数据库
	c.DB, err = repository.NewGormDB(dbCfg, serverCfg.LogLevel)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func() {
		if sqlDB, err := c.DB.DB(); err == nil {
			sqlDB.Close()
		}
	})

	// 初始化存储
	storageCfg := cfg.GetStorageConfig()
	c.Storage, err = storage.NewStorage(ctx, storage.StorageType(storageCfg.Type), storageCfg.Root, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var notifiers scan.Notifiers
	var status scan.StatusReader
	if dispatch == DispatchQueue {
		redisCfg := cfg.GetRedisConfig()
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		c.closers = append(c.closers, func() { c.Redis.Close() })
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		cache := queue.NewStatusCache(c.Redis, redisCfg.StatusTTL)
		status = cache
		notifiers = append(notifiers, scan.NewCacheNotifier(cache, log))

		c.Queue = queue.NewAsynqQueue(&queue.QueueConfig{
			RedisAddr:      redisCfg.Addr,
			RedisPassword:  redisCfg.Password,
			RedisDB:        redisCfg.DB,
			ProcessTimeout: redisCfg.TaskTimeout,
		})
		c.closers = append(c.closers, func() { c.Queue.Close() })
	}

	c.Events = events.NopPublisher{}
	if natsCfg := cfg.GetNATSConfig(); natsCfg.Enabled {
		pub, err := events.NewNATSPublisher(natsCfg.URL, natsCfg.Stream, log)
		if err != nil {
			return nil, err
		}
		c.Events = pub
		c.closers = append(c.closers, pub.Close)
		notifiers = append(notifiers, scan.NewEventNotifier(pub, log))
	}

	// 初始化处理器
	extractor, err := agent.NewExtractor(ctx, log, cfg.GetOCRConfig(), cfg.GetTextractConfig())
	if err != nil {
		return nil, err
	}
	miner := candidate.NewMiner(log, agent.NewEntityExtractor(cfg.GetOllamaConfig()))
	scorer := phrase.NewCommandScorer(log, cfg.GetPhraseScorerConfig())

	scanRepo := repository.NewScanRepository(c.DB)
	c.Orchestrator = scan.NewOrchestrator(scanRepo, c.Storage, extractor, miner, scorer, notifiers, log)

	var dispatcher scan.Dispatcher
	switch dispatch {
	case DispatchQueue:
		dispatcher = scan.NewQueueDispatcher(c.Queue)
	case DispatchLocal:
		local := scan.NewLocalDispatcher(c.Orchestrator, log)
		// in-flight scans finish before the database closes
		c.closers = append(c.closers, local.Wait)
		dispatcher = local
	default:
		return nil, fmt.Errorf("unknown dispatch mode %q", dispatch)
	}

	v := validator.NewUploadValidator(log, &validator.ValidatorConfig{
		MaxFileSize: serverCfg.MaxFileSize,
		MaxFiles:    serverCfg.MaxFiles,
	})
	c.ScanService = scan.NewService(scanRepo, c.Storage, v, dispatcher, status, notifiers, log,
		&scan.ServiceConfig{WatchInterval: serverCfg.WatchInterval})
	c.SitService = sit.NewService(repository.NewSitRepository(c.DB), log)
	return c, nil
}

// HealthChecks probes the database and, when configured, redis.
func (c *Container) HealthChecks() map[string]handlers.Check {
	checks := map[string]handlers.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := c.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if c.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return c.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
