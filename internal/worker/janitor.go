package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/pe-report-extractor/internal/persistence/sqlite"
)

// Janitor defaults.
const (
	DefaultJanitorInterval = 15 * time.Minute
	DefaultOutputMaxAge    = 24 * time.Hour
	sweepTimeout           = time.Minute
)

// OutputFiles is the workbook directory the janitor cleans.
type OutputFiles interface {
	Remove(path string) error
	Prune(maxAge time.Duration) (int, error)
}

// ExpiringJobs lists and deletes finished job rows.
type ExpiringJobs interface {
	ListExpired(ctx context.Context, now time.Time) ([]*sqlite.Job, error)
	Delete(ctx context.Context, id string) error
}

// CachePurger drops expired structuring cache entries.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// JanitorConfig holds janitor configuration
type JanitorConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	OutputMaxAge time.Duration `mapstructure:"output_max_age"`
}

// SweepResult counts what one sweep removed.
type SweepResult struct {
	Jobs         int
	Outputs      int
	CacheEntries int
}

// Janitor periodically deletes expired jobs with their workbooks, orphaned
// workbooks past the maximum age, and expired cache rows.
type Janitor struct {
	outputs OutputFiles
	jobs    ExpiringJobs
	cache   CachePurger
	cfg     JanitorConfig
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewJanitor creates a janitor. A nil cache skips cache purging.
func NewJanitor(outputs OutputFiles, jobs ExpiringJobs, cache CachePurger, cfg JanitorConfig, logger *zap.Logger) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultJanitorInterval
	}
	if cfg.OutputMaxAge <= 0 {
		cfg.OutputMaxAge = DefaultOutputMaxAge
	}
	return &Janitor{
		outputs: outputs,
		jobs:    jobs,
		cache:   cache,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Start begins sweeping immediately and then on every interval.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.isRunning {
		return fmt.Errorf("janitor is already running")
	}

	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})
	j.isRunning = true

	j.logger.Info("Janitor started",
		zap.Duration("interval", j.cfg.Interval),
		zap.Duration("output_max_age", j.cfg.OutputMaxAge))

	go j.loop(ctx, j.done)
	return nil
}

// Stop cancels the loop and waits for an in-progress sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.isRunning {
		j.mu.Unlock()
		return
	}
	j.isRunning = false
	j.cancel()
	done := j.done
	j.mu.Unlock()

	<-done
	j.logger.Info("Janitor stopped")
}

// Name returns the worker name for identification
func (j *Janitor) Name() string {
	return "Janitor"
}

func (j *Janitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	j.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup pass. Failures of one step are logged and do not
// stop the others.
func (j *Janitor) Sweep(ctx context.Context) SweepResult {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	var res SweepResult

	expired, err := j.jobs.ListExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("Failed to list expired jobs", zap.Error(err))
	}
	for _, job := range expired {
		if job.OutputPath != "" {
			if err := j.outputs.Remove(job.OutputPath); err != nil {
				j.logger.Warn("Failed to remove expired workbook",
					zap.String("job_id", job.ID),
					zap.Error(err))
				continue
			}
			res.Outputs++
		}
		if err := j.jobs.Delete(ctx, job.ID); err != nil {
			j.logger.Warn("Failed to delete expired job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		res.Jobs++
	}

	pruned, err := j.outputs.Prune(j.cfg.OutputMaxAge)
	if err != nil {
		j.logger.Error("Failed to prune outputs", zap.Error(err))
	}
	res.Outputs += pruned

	if j.cache != nil {
		n, err := j.cache.PurgeExpired(ctx)
		if err != nil {
			j.logger.Error("Failed to purge structuring cache", zap.Error(err))
		}
		res.CacheEntries = n
	}

	if res.Jobs+res.Outputs+res.CacheEntries > 0 {
		j.logger.Info("Janitor sweep completed",
			zap.Int("jobs", res.Jobs),
			zap.Int("outputs", res.Outputs),
			zap.Int("cache_entries", res.CacheEntries))
	}
	return res
}
