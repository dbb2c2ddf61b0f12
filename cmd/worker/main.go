package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cfg "github.com/feichai0017/sit-pipeline/config"
	"github.com/feichai0017/sit-pipeline/internal/bootstrap"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
	"github.com/feichai0017/sit-pipeline/pkg/queue"
	"github.com/feichai0017/sit-pipeline/pkg/worker"
)

func main() {
	// 初始化日志
	log, err := bootstrap.NewLogger("worker")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := bootstrap.New(ctx, log, bootstrap.DispatchQueue)
	if err != nil {
		log.Error("Failed to initialize services", logger.Error(err))
		os.Exit(1)
	}
	defer c.Close()

	redisCfg := cfg.GetRedisConfig()
	scanWorker := worker.NewScanWorker(&worker.Config{
		RedisAddr:     redisCfg.Addr,
		RedisPassword: redisCfg.Password,
		RedisDB:       redisCfg.DB,
		Concurrency:   redisCfg.Concurrency,
		Queues:        queue.Queues,
	}, c.Orchestrator, log)

	// 启动 worker
	if err := scanWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Worker started", logger.Int("concurrency", redisCfg.Concurrency))

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// 优雅关闭
	log.Info("Shutting down worker...")
	scanWorker.Stop()
	log.Info("Worker stopped")
}
