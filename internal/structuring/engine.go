// Package structuring turns document text into a validated record by
// prompting a model, recovering JSON from its answer and checking the
// result against the template.
package structuring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/garyjia/pe-report-extractor/internal/llm"
	"github.com/garyjia/pe-report-extractor/internal/prompt"
	"github.com/garyjia/pe-report-extractor/internal/record"
	"github.com/garyjia/pe-report-extractor/internal/template"
)

// Config tunes the retry loop. Zero values select the defaults; a negative
// RateLimitRetries disables backoff. RateLimitRetries bounds the number of
// backoff waits of one request, across all models.
type Config struct {
	Models           []llm.ModelSpec
	Rounds           int
	RateLimitRetries int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	Temperature      float32
	JSONMode         bool
}

func (c Config) withDefaults() Config {
	if len(c.Models) == 0 {
		c.Models = llm.DefaultModels()
	}
	if c.Rounds <= 0 {
		c.Rounds = DefaultRounds
	}
	switch {
	case c.RateLimitRetries == 0:
		c.RateLimitRetries = DefaultRateLimitRetries
	case c.RateLimitRetries < 0:
		c.RateLimitRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.Temperature <= 0 {
		c.Temperature = llm.DefaultTemperature
	}
	return c
}

// MaxBackoff is the total time a request may wait on rate limits.
func (c Config) MaxBackoff() time.Duration {
	c = c.withDefaults()
	return totalBackoff(c.RateLimitRetries, c.BaseDelay, c.MaxDelay)
}

// Outcome labels of an Attempt.
const (
	OutcomeAccepted    = "accepted"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
	OutcomeInvalid     = "invalid"
)

// Attempt records one model call.
type Attempt struct {
	Round   int           `json:"round"`
	Model   string        `json:"model"`
	Outcome string        `json:"outcome"`
	Stage   ParseStage    `json:"stage,omitempty"`
	Wait    time.Duration `json:"wait,omitempty"`
	Err     string        `json:"error,omitempty"`
}

// Result is an accepted record and how it was obtained.
type Result struct {
	Record      record.Value
	Fingerprint string
	CacheHit    bool
	Model       string
	Stage       ParseStage
	DataPoints  int
	Truncated   bool
	Attempts    []Attempt
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSleeper replaces the timer used between rate-limited attempts.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) { e.sleeper = s }
}

// WithClock replaces the time source used for metadata timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs structuring requests. It is safe for concurrent use.
type Engine struct {
	client    llm.ChatClient
	builder   *prompt.Builder
	validator *Validator
	cache     Cache
	cfg       Config
	schemas   map[template.ID]*jsonschema.Schema
	sleeper   Sleeper
	now       func() time.Time
	stats     counters
	inflight  singleflight.Group
	logger    *zap.Logger
}

// NewEngine wires an engine. A nil cache disables caching.
func NewEngine(client llm.ChatClient, builder *prompt.Builder, validator *Validator, cache Cache, cfg Config, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if cache == nil {
		cache = NoopCache{}
	}
	if validator == nil {
		validator = NewValidator(nil)
	}

	schemas := make(map[template.ID]*jsonschema.Schema)
	for _, t := range template.All() {
		s, err := t.CompileJSONSchema()
		if err != nil {
			return nil, err
		}
		schemas[t.ID] = s
	}

	e := &Engine{
		client:    client,
		builder:   builder,
		validator: validator,
		cache:     cache,
		cfg:       cfg.withDefaults(),
		schemas:   schemas,
		sleeper:   timerSleeper{},
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Structure combines texts into one prompt for template id and returns an
// accepted record, from cache when the same input was structured before.
func (e *Engine) Structure(ctx context.Context, texts []string, id template.ID) (*Result, error) {
	tmpl, err := template.Lookup(id)
	if err != nil {
		return nil, err
	}

	p, err := e.builder.Build(texts, tmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	e.stats.total.Add(1)
	if strings.TrimSpace(p.CombinedText) == "" {
		e.stats.failed.Add(1)
		return nil, &FailedError{TemplateID: id, Cause: CauseNoInput, LastErr: ErrNoInput}
	}

	key := Fingerprint(p.CombinedText, id)
	if rec, ok := e.cachedRecord(ctx, key); ok {
		e.stats.cacheHits.Add(1)
		e.stats.succeeded.Add(1)
		e.logger.Info("Structuring cache hit",
			zap.Int("template_id", int(id)),
			zap.String("fingerprint", key[:12]))
		return &Result{
			Record:      rec,
			Fingerprint: key,
			CacheHit:    true,
			DataPoints:  record.StripMetadata(rec).DataPoints(),
			Truncated:   p.Truncated,
		}, nil
	}

	res, err := e.structureOnce(ctx, tmpl, p, key)
	if err != nil {
		e.stats.failed.Add(1)
		return nil, err
	}
	e.stats.succeeded.Add(1)
	return res, nil
}

// structureOnce collapses concurrent requests for the same fingerprint into
// one run. Each caller waits on its own context. When the run was cut short
// by the context of the caller that started it, the others start over.
func (e *Engine) structureOnce(ctx context.Context, tmpl template.Template, p prompt.Prompt, key string) (*Result, error) {
	for {
		ch := e.inflight.DoChan(key, func() (any, error) {
			return e.run(ctx, tmpl, p, key)
		})

		select {
		case <-ctx.Done():
			return nil, &FailedError{
				TemplateID: tmpl.ID,
				Cause:      contextCause(ctx.Err()),
				LastErr:    ctx.Err(),
				aborted:    true,
			}
		case r := <-ch:
			if r.Err != nil {
				var fe *FailedError
				if errors.As(r.Err, &fe) && fe.aborted && ctx.Err() == nil {
					e.logger.Debug("Shared structuring run aborted by its starter, retrying",
						zap.String("fingerprint", key[:12]))
					continue
				}
				return nil, r.Err
			}

			res := *r.Val.(*Result)
			if r.Shared {
				res.Record = res.Record.Clone()
				res.Attempts = append([]Attempt(nil), res.Attempts...)
			}
			return &res, nil
		}
	}
}

func (e *Engine) cachedRecord(ctx context.Context, key string) (record.Value, bool) {
	rec, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("Structuring cache read failed", zap.Error(err))
		return record.Value{}, false
	}
	return rec, ok
}

func (e *Engine) run(ctx context.Context, tmpl template.Template, p prompt.Prompt, key string) (*Result, error) {
	plan := newAttemptPlan(e.cfg.Models, e.cfg.Rounds, e.cfg.RateLimitRetries, e.cfg.BaseDelay, e.cfg.MaxDelay)
	var attempts []Attempt
	var lastErr error
	lastRateLimited := false

	fail := func(cause Cause, err error) (*Result, error) {
		models := make([]string, 0, len(e.cfg.Models))
		for _, m := range e.cfg.Models {
			models = append(models, m.Name)
		}
		fe := &FailedError{
			TemplateID: tmpl.ID,
			Attempts:   len(attempts),
			Models:     models,
			Cause:      cause,
			LastErr:    err,
			aborted:    ctx.Err() != nil,
		}
		e.logger.Error("Structuring failed",
			zap.Int("template_id", int(tmpl.ID)),
			zap.Int("attempts", len(attempts)),
			zap.String("cause", string(cause)),
			zap.Error(err))
		return nil, fe
	}

	for {
		model, ok := plan.current()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return fail(contextCause(err), err)
		}

		attempt := Attempt{Round: plan.round + 1, Model: model.Name}
		e.stats.modelCalls.Add(1)
		resp, err := e.client.Complete(ctx, llm.Request{
			Model:       model.Name,
			System:      p.System,
			Prompt:      p.Text,
			Temperature: e.cfg.Temperature,
			MaxTokens:   model.MaxTokens,
			JSONMode:    e.cfg.JSONMode,
		})

		switch {
		case err != nil && llm.IsRateLimited(err):
			e.stats.rateLimits.Add(1)
			lastErr, lastRateLimited = err, true
			wait := plan.rateLimited()
			attempt.Outcome, attempt.Err, attempt.Wait = OutcomeRateLimited, err.Error(), wait
			attempts = append(attempts, attempt)

			if wait == 0 {
				e.logger.Warn("Model rate limited, backoff allowance spent, trying next model",
					zap.String("model", model.Name),
					zap.Int("round", attempt.Round))
				continue
			}
			e.logger.Warn("Model rate limited, backing off",
				zap.String("model", model.Name),
				zap.Int("round", attempt.Round),
				zap.Duration("wait", wait))
			if serr := e.sleeper.Sleep(ctx, wait); serr != nil {
				return fail(contextCause(serr), serr)
			}

		case err != nil:
			lastErr, lastRateLimited = err, false
			attempt.Outcome, attempt.Err = OutcomeError, err.Error()
			attempts = append(attempts, attempt)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail(contextCause(ctxErr), err)
			}
			e.logger.Warn("Model call failed, trying next model",
				zap.String("model", model.Name),
				zap.Error(err))
			plan.advance()

		default:
			rec, stage := ParseResponse(resp.Content)
			attempt.Stage = stage
			if verr := e.validator.Validate(rec, tmpl.ID); verr != nil {
				lastErr, lastRateLimited = verr, false
				attempt.Outcome, attempt.Err = OutcomeInvalid, verr.Error()
				attempts = append(attempts, attempt)
				e.logger.Warn("Model response rejected",
					zap.String("model", model.Name),
					zap.String("stage", string(stage)),
					zap.String("excerpt", excerpt(resp.Content, 200)),
					zap.Error(verr))
				plan.advance()
				continue
			}

			attempt.Outcome = OutcomeAccepted
			attempts = append(attempts, attempt)
			return e.accept(ctx, tmpl, p, key, rec, model.Name, stage, attempts), nil
		}
	}

	cause := CauseHard
	if lastRateLimited {
		cause = CauseRateLimited
	}
	if lastErr == nil {
		lastErr = ErrNoModels
	}
	return fail(cause, lastErr)
}

func (e *Engine) accept(ctx context.Context, tmpl template.Template, p prompt.Prompt, key string, rec record.Value, model string, stage ParseStage, attempts []Attempt) *Result {
	points := rec.DataPoints()
	warnings := e.schemaWarnings(tmpl.ID, rec)

	out := record.WithMetadata(rec, record.Metadata{
		ExtractionTimestamp: e.now().UTC(),
		TemplateName:        tmpl.Name,
		TemplateID:          int(tmpl.ID),
		TemplateVersion:     tmpl.Version,
		ProcessorVersion:    record.ProcessorVersion,
		DataPoints:          points,
		Model:               model,
		SchemaWarnings:      warnings,
	})

	if err := e.cache.Set(ctx, key, out); err != nil {
		e.logger.Warn("Structuring cache write failed", zap.Error(err))
	}

	e.logger.Info("Structured record accepted",
		zap.Int("template_id", int(tmpl.ID)),
		zap.String("model", model),
		zap.String("stage", string(stage)),
		zap.Int("data_points", points),
		zap.Int("schema_warnings", warnings),
		zap.Int("attempts", len(attempts)))

	return &Result{
		Record:      out,
		Fingerprint: key,
		Model:       model,
		Stage:       stage,
		DataPoints:  points,
		Truncated:   p.Truncated,
		Attempts:    attempts,
	}
}

// schemaWarnings counts type mismatches against the template's JSON Schema.
// They are advisory and never reject a record.
func (e *Engine) schemaWarnings(id template.ID, rec record.Value) int {
	schema, ok := e.schemas[id]
	if !ok {
		return 0
	}
	err := schema.Validate(rec.ToAny())
	if err == nil {
		return 0
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return 1
	}
	n := leafCauses(ve)
	e.logger.Debug("Record deviates from template schema",
		zap.Int("template_id", int(id)),
		zap.Int("warnings", n))
	return n
}

func leafCauses(ve *jsonschema.ValidationError) int {
	if len(ve.Causes) == 0 {
		return 1
	}
	n := 0
	for _, c := range ve.Causes {
		n += leafCauses(c)
	}
	return n
}

func contextCause(err error) Cause {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CauseTimeout
	case errors.Is(err, context.Canceled):
		return CauseCanceled
	}
	return CauseHard
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats(ctx context.Context) Stats {
	s := e.stats.snapshot()
	s.SupportedTemplates = len(template.All())
	if n, err := e.cache.Len(ctx); err == nil {
		s.CacheSize = n
	}
	return s
}

// ClearCache drops every cached record and returns how many were removed.
func (e *Engine) ClearCache(ctx context.Context) (int, error) {
	n, err := e.cache.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear structuring cache: %w", err)
	}
	e.logger.Info("Structuring cache cleared", zap.Int("entries", n))
	return n, nil
}

// HealthCheck sends a tiny completion to the first configured model.
func (e *Engine) HealthCheck(ctx context.Context) (string, error) {
	model := e.cfg.Models[0]
	_, err := e.client.Complete(ctx, llm.Request{
		Model:       model.Name,
		System:      "Reply with OK.",
		Prompt:      "ping",
		Temperature: e.cfg.Temperature,
		MaxTokens:   5,
	})
	if err != nil {
		return model.Name, fmt.Errorf("model %s unreachable: %w", model.Name, err)
	}
	return model.Name, nil
}

// Models returns the candidate list in priority order.
func (e *Engine) Models() []llm.ModelSpec {
	return append([]llm.ModelSpec(nil), e.cfg.Models...)
}
