package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fitbook/fitbook-server/cmd/api"
	"github.com/fitbook/fitbook-server/config"
	"github.com/fitbook/fitbook-server/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger := api.NewLogger(cfg.Environment)
	defer logger.Sync()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations(cfg, logger)
			return
		default:
			logger.Fatal("unknown command", zap.String("command", os.Args[1]))
		}
	}

	startServer(cfg, logger)
}

func runMigrations(cfg *config.Config, logger *zap.Logger) {
	DB, err := db.NewPSQLStorage(cfg.DBURL)
	if err != nil {
		logger.Fatal("database initialization error", zap.Error(err))
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
	}()

	logger.Info("connected to the database for migrations")

	if err := db.Migrate(DB); err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}
	logger.Info("migrations completed successfully")
}

func startServer(cfg *config.Config, logger *zap.Logger) {
	DB, err := db.NewPSQLStorage(cfg.DBURL)
	if err != nil {
		logger.Fatal("database initialization error", zap.Error(err))
	}
	defer func() {
		sqlDB, _ := DB.DB()
		sqlDB.Close()
		logger.Info("database connection closed")
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	server := api.NewAPIServer(":"+cfg.ServerPort, DB, logger)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")
}
