package structuring

import (
	"context"
	"time"

	"github.com/garyjia/pe-report-extractor/internal/llm"
)

// Retry defaults.
const (
	DefaultRounds           = 3
	DefaultRateLimitRetries = 3
	DefaultBaseDelay        = 2 * time.Second
	DefaultMaxDelay         = 60 * time.Second
)

// totalBackoff is the longest a request can spend waiting on rate limits.
func totalBackoff(retries int, base, max time.Duration) time.Duration {
	var total time.Duration
	for d := base; retries > 0; retries-- {
		total += d
		d = min(d*2, max)
	}
	return total
}

// Sleeper waits between rate-limited attempts.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// attemptPlan walks candidate models round by round. A rate-limited call
// backs off and retries the same model while the request's backoff
// allowance lasts; once it is spent, or on any other failure, the plan moves
// to the next model without waiting. The delay is shared by the whole
// request and only grows.
type attemptPlan struct {
	models           []llm.ModelSpec
	rounds           int
	rateLimitRetries int
	maxDelay         time.Duration

	round    int
	index    int
	backoffs int
	delay    time.Duration
}

func newAttemptPlan(models []llm.ModelSpec, rounds, rateLimitRetries int, base, max time.Duration) *attemptPlan {
	return &attemptPlan{
		models:           models,
		rounds:           rounds,
		rateLimitRetries: rateLimitRetries,
		maxDelay:         max,
		delay:            base,
	}
}

// current returns the model to call next, or false when the plan is spent.
func (p *attemptPlan) current() (llm.ModelSpec, bool) {
	if p.round >= p.rounds || len(p.models) == 0 {
		return llm.ModelSpec{}, false
	}
	return p.models[p.index], true
}

// rateLimited records a throttled call. It returns how long to wait before
// calling the same model again, or zero when the backoff allowance is spent
// and the plan has moved on.
func (p *attemptPlan) rateLimited() time.Duration {
	if p.backoffs >= p.rateLimitRetries {
		p.advance()
		return 0
	}
	p.backoffs++
	wait := p.delay
	p.delay = min(p.delay*2, p.maxDelay)
	return wait
}

// advance moves to the next model, wrapping into the next round.
func (p *attemptPlan) advance() {
	p.index++
	if p.index >= len(p.models) {
		p.index = 0
		p.round++
	}
}
