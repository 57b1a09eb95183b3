package bootstrap

import (
	"context"
	"time"

	"sorter_server/adapter/out/mailbox"
	"sorter_server/adapter/out/persistence"
	"sorter_server/config"
	"sorter_server/core/agent/llm"
	"sorter_server/core/port/out"
	"sorter_server/core/service/catalog"
	"sorter_server/core/service/classification"
	"sorter_server/core/service/filter"
	"sorter_server/core/service/pipeline"
	"sorter_server/core/service/scan"
	"sorter_server/core/service/settings"
	"sorter_server/core/service/suggestion"
	"sorter_server/infra/database"
	"sorter_server/pkg/cache"
	"sorter_server/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Dependencies holds every wired collaborator shared by the API and the
// scan worker.
type Dependencies struct {
	Config *config.Config
	DB     *pgxpool.Pool
	SQLDB  *sqlx.DB
	Redis  *redis.Client

	// Repositories
	SuggestionRepo out.SuggestionRepository
	ProfileRepo    out.FolderProfileRepository
	ProcessedRepo  out.ProcessedRepository
	FilterHitRepo  out.FilterHitRepository
	SettingsRepo   out.SettingsRepository

	// Adapters
	Mailbox   out.Mailbox
	Parser    out.MessageParser
	LLMClient *llm.Client
	Cache     out.Cache

	// Services
	Settings          *settings.Resolver
	CatalogStore      *catalog.Store
	FilterStore       *filter.Store
	Handler           *pipeline.Handler
	Scanner           *scan.Scanner
	ScanController    *scan.ScanController
	RescanController  *scan.RescanController
	SuggestionService *suggestion.Service
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	// Database (pgxpool for health checks)
	db, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx for adapters)
	sqlDB, err := database.NewSQLX(cfg.DatabaseURL)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	// Redis (optional; overview cache degrades to direct reads)
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Redis connection failed, overview cache disabled")
		} else {
			deps.Redis = redisClient
			deps.Cache = cache.NewRedisCache(redisClient)
			cleanups = append(cleanups, func() { redisClient.Close() })
		}
	}

	// Repositories
	deps.SuggestionRepo = persistence.NewSuggestionAdapter(sqlDB, cfg.PendingListLimit)
	deps.ProfileRepo = persistence.NewProfileAdapter(sqlDB)
	deps.ProcessedRepo = persistence.NewProcessedAdapter(sqlDB)
	deps.FilterHitRepo = persistence.NewFilterHitAdapter(sqlDB)
	deps.SettingsRepo = persistence.NewSettingsAdapter(sqlDB)

	// Runtime settings and catalog/filter stores
	deps.Settings = settings.NewResolver(cfg, deps.SettingsRepo)
	deps.CatalogStore = catalog.NewStore(deps.SettingsRepo)
	deps.FilterStore = filter.NewStore(deps.SettingsRepo)

	// Mailbox
	deps.Mailbox = mailbox.NewAdapter(cfg, deps.Settings)
	deps.Parser = mailbox.NewParser()

	// LLM client (OpenAI-compatible endpoint, e.g. Ollama)
	deps.LLMClient = llm.NewClient(llm.ClientConfig{
		BaseURL:       cfg.LLMBaseURL,
		APIKey:        cfg.LLMAPIKey,
		ChatModel:     cfg.ClassifierModel,
		ModelResolver: deps.Settings.ClassifierModel,
		EmbedModel:    cfg.EmbedModel,
		MaxTokens:     cfg.LLMMaxTokens,
		Temperature:   cfg.LLMTemperature,
		Timeout:       time.Duration(cfg.LLMTimeoutSec) * time.Second,
	})

	// Classification
	classifier := classification.NewClassifier(
		deps.LLMClient,
		deps.CatalogStore,
		classification.PromptSizing{
			ContextWindowTokens: cfg.ContextWindowTokens,
			ReservedTokens:      cfg.ReservedTokens,
			BodySnippetChars:    cfg.BodySnippetChars,
			CatalogPathFloor:    cfg.CatalogPathFloor,
			MatchThreshold:      cfg.MatchThreshold,
		},
		classification.Thresholds{
			Match:  cfg.MatchThreshold,
			Create: cfg.CreateThreshold,
			Max:    cfg.MaxSuggestions,
		},
		cfg.PlaceholderTokens,
	)

	// Message pipeline
	deps.Handler = pipeline.NewHandler(cfg, pipeline.HandlerDeps{
		Parser:      deps.Parser,
		Mailbox:     deps.Mailbox,
		Filters:     deps.FilterStore,
		Embedder:    deps.LLMClient,
		Classifier:  classifier,
		Tagger:      pipeline.NewTagger(deps.Mailbox, deps.Settings, deps.CatalogStore),
		Suggestions: deps.SuggestionRepo,
		Profiles:    deps.ProfileRepo,
		Processed:   deps.ProcessedRepo,
		FilterHits:  deps.FilterHitRepo,
		Settings:    deps.Settings,
	})

	// Scan orchestration
	deps.Scanner = scan.NewScanner(
		deps.Mailbox,
		deps.Handler,
		deps.SuggestionRepo,
		deps.ProcessedRepo,
		deps.Settings,
	)
	deps.ScanController = scan.NewScanController(deps.Scanner, deps.Settings)
	deps.RescanController = scan.NewRescanController(deps.Scanner)

	// Suggestion reads and decisions
	deps.SuggestionService = suggestion.NewService(
		deps.SuggestionRepo,
		deps.ProfileRepo,
		deps.Mailbox,
		deps.Settings,
		deps.Cache,
		cfg.OverviewCacheTTL,
	)

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	return deps, cleanup, nil
}

func (d *Dependencies) HealthCheck(ctx context.Context) error {
	if err := d.DB.Ping(ctx); err != nil {
		return err
	}
	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}
