// Package container wires configuration into the extraction components and
// manages their lifecycle.
package container

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/pe-report-extractor/internal/config"
	"github.com/garyjia/pe-report-extractor/internal/llm"
	"github.com/garyjia/pe-report-extractor/internal/notify"
	"github.com/garyjia/pe-report-extractor/internal/persistence/sqlite"
	"github.com/garyjia/pe-report-extractor/internal/prompt"
	"github.com/garyjia/pe-report-extractor/internal/storage"
	"github.com/garyjia/pe-report-extractor/internal/structuring"
	"github.com/garyjia/pe-report-extractor/internal/template"
	"github.com/garyjia/pe-report-extractor/internal/worker"
	"github.com/garyjia/pe-report-extractor/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB    *database.DB
	Jobs  *sqlite.JobRepository
	Cache *sqlite.CacheStore
}

// StorageBundle holds storage-related components.
type StorageBundle struct {
	Workspaces *storage.Workspaces
	Outputs    *storage.OutputStore
}

// ProvideDatabase opens the SQLite database, applies the embedded
// migrations and creates the repositories.
func ProvideDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if _, err := migrator.Run(ctx, sqlite.Migrations, sqlite.MigrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:    db,
		Jobs:  sqlite.NewJobRepository(db, logger),
		Cache: sqlite.NewCacheStore(db, cfg.Structuring.Cache.TTL, logger),
	}, nil
}

// ProvideStorage creates the upload workspaces and the output store.
func ProvideStorage(cfg *config.StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &StorageBundle{
		Workspaces: storage.NewWorkspaces(cfg.UploadDir, logger),
		Outputs:    storage.NewOutputStore(cfg.OutputDir, logger),
	}, nil
}

// ProvideLLM registers a client for every provider that has a key and is
// referenced by a configured model.
func ProvideLLM(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*llm.Router, error) {
	models := cfg.Structuring.Models
	router := llm.NewRouter(models, logger)

	needed := make(map[llm.Provider]bool)
	for _, m := range models {
		needed[m.ResolvedProvider()] = true
	}

	for p := range needed {
		key := cfg.Providers.KeyFor(p)
		if key == "" {
			logger.Warn("No API key for LLM provider; its models will be skipped",
				zap.String("provider", string(p)))
			continue
		}

		var (
			client llm.ChatClient
			err    error
		)
		switch p {
		case llm.ProviderGroq:
			client, err = llm.NewOpenAICompatible(cfg.Providers.Groq.Client(), logger)
		case llm.ProviderOpenAI:
			client, err = llm.NewOpenAICompatible(cfg.Providers.OpenAI.Client(), logger)
		case llm.ProviderGemini:
			client, err = llm.NewGemini(ctx, key, logger)
		default:
			err = fmt.Errorf("unsupported provider %q", p)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", p, err)
		}
		router.Register(p, client)
	}
	return router, nil
}

// ProvideCache selects the structuring cache backend.
func ProvideCache(cfg config.CacheConfig, db *DatabaseBundle) (structuring.Cache, error) {
	switch cfg.Backend {
	case config.CacheMemory, "":
		return structuring.NewMemoryCache(cfg.Capacity, cfg.TTL), nil
	case config.CacheSQLite:
		if db == nil {
			return nil, fmt.Errorf("sqlite cache requires the database")
		}
		return db.Cache, nil
	case config.CacheNone:
		return structuring.NoopCache{}, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// ProvideEngine builds the prompt builder, validator and structuring engine.
func ProvideEngine(client llm.ChatClient, cache structuring.Cache, cfg *config.StructuringConfig, logger *zap.Logger) (*structuring.Engine, error) {
	var overrides *prompt.Overrides
	if cfg.PromptsPath != "" {
		o, err := prompt.LoadOverrides(cfg.PromptsPath)
		if err != nil {
			return nil, err
		}
		overrides = o
	}

	builder, err := prompt.NewBuilder(prompt.Options{
		Budget:    cfg.PromptBudget,
		Variant:   template.ParseVariant(cfg.PromptVariant),
		Overrides: overrides,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt builder: %w", err)
	}

	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}

	return structuring.NewEngine(client, builder, structuring.NewValidator(rules), cache, cfg.EngineConfig(), logger)
}

// ProvideNotifier returns the Lark notifier, or a no-op one when Lark is
// not configured.
func ProvideNotifier(cfg *config.NotifyConfig, logger *zap.Logger) (notify.Notifier, error) {
	n, err := notify.NewLarkNotifier(cfg.Lark, logger)
	if errors.Is(err, notify.ErrNotConfigured) {
		logger.Info("Lark notifications disabled")
		return notify.Noop{}, nil
	}
	if err != nil {
		return nil, err
	}
	logger.Info("Lark notifications enabled", zap.String("chat_id", cfg.Lark.ChatID))
	return n, nil
}

// ProvideWorkers registers the background janitor. The SQLite cache is
// purged only when it is the active backend.
func ProvideWorkers(db *DatabaseBundle, st *StorageBundle, cache structuring.Cache, cfg *config.Config, logger *zap.Logger) *worker.Manager {
	var purger worker.CachePurger
	if c, ok := cache.(*sqlite.CacheStore); ok {
		purger = c
	}

	m := worker.NewManager(logger)
	m.Register(worker.NewJanitor(st.Outputs, db.Jobs, purger, cfg.Janitor, logger))
	return m
}
