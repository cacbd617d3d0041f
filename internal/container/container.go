package container

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/pe-report-extractor/internal/config"
	"github.com/garyjia/pe-report-extractor/internal/llm"
	"github.com/garyjia/pe-report-extractor/internal/notify"
	"github.com/garyjia/pe-report-extractor/internal/pdf"
	"github.com/garyjia/pe-report-extractor/internal/pipeline"
	"github.com/garyjia/pe-report-extractor/internal/structuring"
	"github.com/garyjia/pe-report-extractor/internal/worker"
	"github.com/garyjia/pe-report-extractor/internal/workbook"
)

// Options selects optional components.
type Options struct {
	// Workers starts the background janitor.
	Workers bool
	// Notifications enables the completion notifier.
	Notifications bool
}

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger
	opts   Options

	db       *DatabaseBundle
	storage  *StorageBundle
	llm      *llm.Router
	cache    structuring.Cache
	engine   *structuring.Engine
	pipeline *pipeline.Service
	workers  *worker.Manager

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
		opts:   opts,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database and repositories
// 2. Storage
// 3. LLM clients and structuring engine
// 4. Extraction pipeline
// 5. Workers
func (c *Container) Start(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	defer func() {
		if err != nil {
			c.teardown()
		}
	}()

	c.logger.Info("Starting container initialization")

	if c.db, err = ProvideDatabase(ctx, c.config, c.logger); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if c.storage, err = ProvideStorage(&c.config.Storage, c.logger); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Storage initialized")

	if err = c.initStructuring(ctx); err != nil {
		return fmt.Errorf("failed to initialize structuring: %w", err)
	}
	c.logger.Info("Structuring engine initialized",
		zap.String("cache_backend", c.config.Structuring.Cache.Backend),
		zap.Int("models", len(c.config.Structuring.Models)))

	if err = c.initPipeline(); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	c.logger.Info("Extraction pipeline initialized")

	if c.opts.Workers {
		c.workers = ProvideWorkers(c.db, c.storage, c.cache, c.config, c.logger)
		if err = c.workers.StartAll(ctx); err != nil {
			return fmt.Errorf("failed to start workers: %w", err)
		}
		c.logger.Info("Workers started", zap.Int("count", c.workers.Count()))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

func (c *Container) initStructuring(ctx context.Context) error {
	router, err := ProvideLLM(ctx, c.config, c.logger)
	if err != nil {
		return err
	}
	c.llm = router

	cache, err := ProvideCache(c.config.Structuring.Cache, c.db)
	if err != nil {
		return err
	}
	c.cache = cache

	engine, err := ProvideEngine(router, cache, &c.config.Structuring, c.logger)
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

func (c *Container) initPipeline() error {
	var notifier notify.Notifier
	if c.opts.Notifications {
		n, err := ProvideNotifier(&c.config.Notify, c.logger)
		if err != nil {
			return err
		}
		notifier = n
	}

	c.pipeline = pipeline.NewService(
		c.config.Extraction,
		pdf.NewTextExtractor(nil, c.logger),
		c.engine,
		workbook.NewRenderer(c.logger),
		c.storage.Workspaces,
		c.storage.Outputs,
		c.db.Jobs,
		notifier,
		c.logger,
	)
	return nil
}

// Close stops workers, waits for pending notifications and closes the
// database.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) teardown() error {
	if c.workers != nil {
		c.workers.StopAll()
		c.workers = nil
	}
	if c.pipeline != nil {
		c.pipeline.Wait()
	}
	if c.db != nil {
		if err := c.db.DB.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
		c.db = nil
	}
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of the local components. The LLM providers
// are checked separately because that costs a model call.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	if c.db == nil {
		set("database", false, "not initialized")
	} else if err := c.db.DB.PingContext(ctx); err != nil {
		set("database", false, fmt.Sprintf("ping failed: %v", err))
	} else {
		set("database", true, "")
	}

	if c.engine == nil {
		set("structuring", false, "not initialized")
	} else {
		set("structuring", true, fmt.Sprintf("cache backend: %s", c.config.Structuring.Cache.Backend))
	}

	if c.opts.Workers {
		if c.workers == nil {
			set("workers", false, "not initialized")
		} else {
			running := c.workers.Running()
			set("workers", len(running) == c.workers.Count(),
				fmt.Sprintf("running: %s", strings.Join(running, ", ")))
		}
	}
	return status
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config { return c.config }

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger { return c.logger }

// Pipeline returns the extraction service.
func (c *Container) Pipeline() *pipeline.Service { return c.pipeline }

// Engine returns the structuring engine.
func (c *Container) Engine() *structuring.Engine { return c.engine }

// Cache returns the active structuring cache.
func (c *Container) Cache() structuring.Cache { return c.cache }
