// Package bootstrap wires configuration, adapters and services into the
// API server and the scan worker.
package bootstrap

import (
	"sorter_server/adapter/in/http"
	"sorter_server/config"
	"sorter_server/infra/middleware"
	"sorter_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "sorter-api",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:   5 * 1024 * 1024,
		ReadBufferSize:  16384,
		WriteBufferSize: 16384,
	})

	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(cors.New())

	// Probes
	http.NewHealthHandler(deps.DB, deps.Redis).Register(app)

	// API routes
	api := app.Group("/api")
	http.NewScanHandler(deps.ScanController, deps.RescanController).Register(api)
	http.NewSuggestionHandler(deps.SuggestionService).Register(api)
	http.NewFilterHandler(deps.FilterStore).Register(api)
	http.NewCatalogHandler(deps.CatalogStore).Register(api)
	http.NewSettingsHandler(deps.Settings, deps.Mailbox).Register(api)

	shutdown := func() {
		if deps.ScanController.Stop() {
			logger.Info("Scan loop stopped")
		}
		deps.RescanController.Stop()
		cleanup()
	}
	return app, shutdown, nil
}
