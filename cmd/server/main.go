package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/sit-pipeline/api/handlers"
	"github.com/feichai0017/sit-pipeline/api/routes"
	cfg "github.com/feichai0017/sit-pipeline/config"
	"github.com/feichai0017/sit-pipeline/internal/bootstrap"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

func main() {
	serverCfg := cfg.GetServerConfig()

	// init logger
	log, err := bootstrap.NewLogger("server")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := bootstrap.New(ctx, log, serverCfg.Dispatch)
	if err != nil {
		log.Fatal("Failed to initialize services", logger.Error(err))
	}
	defer c.Close()

	gin.SetMode(serverCfg.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = 32 << 20
	h := handlers.NewHandlers(c.ScanService, c.SitService, handlers.NewHealthHandler(c.HealthChecks()), log)
	routes.SetupRoutes(r, h, log)

	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// start server
	go func() {
		log.Info("Server starting",
			logger.String("addr", serverCfg.Addr),
			logger.String("dispatch", serverCfg.Dispatch),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", logger.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
