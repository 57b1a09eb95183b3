package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sorter_server/config"
	"sorter_server/internal/bootstrap"
	"sorter_server/pkg/logger"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "sorter",
	})

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	mode := flag.String("mode", "all", "Run mode: api, worker, all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	switch *mode {
	case "api":
		runAPI(cfg)
	case "worker":
		runWorker(cfg)
	case "all":
		// the scan loop runs alongside the API in one process
		go runWorker(cfg)
		runAPI(cfg)
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runAPI(cfg *config.Config) {
	app, cleanup, err := bootstrap.NewAPI(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize API: %v", err)
	}
	defer cleanup()

	go stopOnSignal("api", app.Shutdown)

	addr := ":" + cfg.Port
	logger.Info("Sorter API listening on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}

func runWorker(cfg *config.Config) {
	worker, cleanup, err := bootstrap.NewWorker(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize scan worker: %v", err)
	}
	defer cleanup()

	go stopOnSignal("scan worker", func() error {
		worker.Stop()
		return nil
	})

	logger.Info("Scan worker starting")
	worker.Start()
}

// stopOnSignal blocks until SIGINT or SIGTERM, then races stop against
// the shutdown timeout. A hung stop forces the process down.
func stopOnSignal(name string, stop func() error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down %s (timeout %v)", name, shutdownTimeout)

	done := make(chan error, 1)
	go func() { done <- stop() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("%s shutdown error: %v", name, err)
			return
		}
		logger.Info("%s shut down cleanly", name)
	case <-time.After(shutdownTimeout):
		logger.Warn("%s shutdown timed out, forcing exit", name)
		os.Exit(1)
	}
}
