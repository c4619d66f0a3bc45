package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fabiofalopes/ann-tfc/internal/config"
	"github.com/fabiofalopes/ann-tfc/internal/repository"
	"github.com/fabiofalopes/ann-tfc/internal/server"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Logging.Development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
		gin.SetMode(gin.ReleaseMode)
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting annotation backend...", zap.String("database", cfg.Database.Type))

	if cfg.Database.Type == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.URL), 0o755); err != nil {
			logger.Fatal("Failed to create data directory", zap.Error(err))
		}
	}

	db, err := repository.NewDB(cfg.Database.Type, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := repository.MigrateDB(db, cfg.Database.Type, logger); err != nil {
			logger.Fatal("Failed to run database migrations", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(db, cfg, logger)
	if err := srv.Bootstrap(ctx); err != nil {
		logger.Fatal("Failed to create first admin user", zap.Error(err))
	}

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
