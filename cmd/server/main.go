package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/pe-report-extractor/internal/config"
	"github.com/garyjia/pe-report-extractor/internal/container"
	httpapi "github.com/garyjia/pe-report-extractor/internal/interfaces/http"
	"github.com/garyjia/pe-report-extractor/pkg/utils"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to the YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting PE report extractor",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg, logger, container.Options{Workers: true, Notifications: true})
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}

	mode := cfg.Server.Mode
	if cfg.Logger.Level == "debug" {
		mode = gin.DebugMode
	}

	handlers := httpapi.NewHandlers(
		c.Pipeline(),
		c.Engine(),
		httpapi.Dirs{Upload: cfg.Storage.UploadDir, Output: cfg.Storage.OutputDir},
		logger,
	)
	handlers.SetComponentCheck(func(ctx context.Context) (bool, any) {
		h := c.Health(ctx)
		return h.Overall, h.Components
	})
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Mode:            mode,
		MaxFiles:        cfg.Extraction.MaxFiles,
	}, handlers, logger)

	// Blocks until SIGINT/SIGTERM, then drains in-flight requests.
	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server stopped with error", zap.Error(err))
	}

	logger.Info("Shutting down...")
	if err := c.Close(); err != nil {
		logger.Error("Shutdown completed with errors", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server exited successfully")
}
