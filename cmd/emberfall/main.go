package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/emberfall/emberfall/server/internal/config"
	"github.com/emberfall/emberfall/server/internal/content"
	"github.com/emberfall/emberfall/server/internal/database"
	"github.com/emberfall/emberfall/server/internal/logger"
	"github.com/emberfall/emberfall/server/internal/server"
)

func main() {
	// Parse command-line flags
	serverConfigFile := flag.String("config", "data/server.yaml", "Path to server config YAML file")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	dataDir := flag.String("data-dir", "", "Path to data directory (overrides config)")
	address := flag.String("address", "", "Listen address (overrides config)")
	flag.Parse()

	// Initialize logger first (before any logging)
	logConfig, _ := logger.LoadConfig(*loggingConfig)
	logger.Initialize(logConfig)

	logger.Info("Starting Emberfall server")

	cfg, err := config.LoadConfig(*serverConfigFile)
	if err != nil {
		logger.Warning("Failed to load server config, using defaults",
			"path", *serverConfigFile, "error", err)
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}
	if *address != "" {
		cfg.HTTP.Address = *address
	}

	if len(cfg.WebSocket.AllowedOrigins) == 0 {
		logger.Info("WebSocket CORS policy", "mode", "same-origin")
	} else if len(cfg.WebSocket.AllowedOrigins) == 1 && cfg.WebSocket.AllowedOrigins[0] == "*" {
		logger.Warning("WebSocket CORS allows all origins (not recommended for production)")
	} else {
		logger.Info("WebSocket CORS policy", "allowed_origins", cfg.WebSocket.AllowedOrigins)
	}

	catalog, err := content.Load(cfg.Data.Dir)
	if err != nil {
		log.Fatalf("Failed to load content: %v", err)
	}
	logger.Info("Content loaded", "dir", cfg.Data.Dir)

	dialect := database.DialectType(cfg.Database.Driver)
	dsn := cfg.Database.Path
	if dialect == database.DialectPostgres {
		dsn = cfg.Database.DSN
	}
	store, err := database.Open(dialect, dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	// Recover from an unclean shutdown: nobody is online at startup.
	if err := store.ClearAllOnline(); err != nil {
		logger.Warning("Failed to clear online flags", "error", err)
	}

	srv := server.NewServer(cfg, catalog, store)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	srv.Shutdown()
	logger.Info("Shutdown complete")
}
