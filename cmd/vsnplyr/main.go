package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vsnplyr/internal/config"
	"vsnplyr/internal/database"
	"vsnplyr/internal/gateway"
	"vsnplyr/internal/library"
	"vsnplyr/internal/live"
	"vsnplyr/internal/logging"
	"vsnplyr/internal/server"
	"vsnplyr/internal/session"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := "./config.toml"

	// Initialize basic logger for startup
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}

	configured, logFile, err := logging.New(cfg.Logging)
	if err != nil {
		logger.WithError(err).Fatal("Error configuring logging")
	}
	defer logFile.Close()
	logger = configured

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := live.NewBus(logger)

	if cfg.Live.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Live.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("Invalid Redis URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		if err := live.NewRedisRelay(rdb, cfg.Live.Channel, bus, logger).Run(ctx); err != nil {
			logger.WithError(err).Fatal("Error starting Redis change relay")
		}
	}

	db, err := database.NewDatabase(cfg.Database.Path, database.Options{
		MaxConnections: cfg.Database.MaxConnections,
	}, logger, bus)
	if err != nil {
		logger.WithError(err).Fatal("Error initializing database")
	}
	defer db.Close()

	gw := gateway.New(db, logger)

	if cfg.Library.Enabled {
		lib := library.New(cfg.Library, gw, logger)
		if _, err := os.Stat(cfg.Library.Path); os.IsNotExist(err) {
			logger.WithField("library_path", cfg.Library.Path).Warn("Music directory does not exist, local library disabled")
		} else {
			if cfg.Library.ScanOnStartup {
				if _, err := lib.Scan(ctx); err != nil {
					logger.WithError(err).Error("Error scanning music library")
				}
			}
			if cfg.Library.WatchForChanges {
				if err := lib.Watch(ctx); err != nil {
					logger.WithError(err).Warn("Could not start file watcher")
				} else {
					defer lib.Wait()
				}
			}
		}
	}

	ps := server.NewPlaylistServer(cfg, gw, db, bus, session.NewRegistry(), logger)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	errs := make(chan error, 1)
	go func() {
		errs <- ps.Start()
	}()

	select {
	case <-c:
		logger.Info("Received shutdown signal")
	case err := <-errs:
		if err != nil {
			logger.WithError(err).Error("Server stopped")
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := ps.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Server did not shut down cleanly")
	}
	cancel()
}
