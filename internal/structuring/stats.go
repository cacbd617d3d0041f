package structuring

import "sync/atomic"

// Stats is a point-in-time copy of the engine counters.
type Stats struct {
	TotalRequests         int64 `json:"total_requests"`
	SuccessfulExtractions int64 `json:"successful_extractions"`
	FailedExtractions     int64 `json:"failed_extractions"`
	CacheHits             int64 `json:"cache_hits"`
	CacheSize             int   `json:"cache_size"`
	SupportedTemplates    int   `json:"supported_templates"`
	RateLimitEvents       int64 `json:"rate_limit_events"`
	ModelCalls            int64 `json:"model_calls"`
}

type counters struct {
	total      atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	cacheHits  atomic.Int64
	rateLimits atomic.Int64
	modelCalls atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		TotalRequests:         c.total.Load(),
		SuccessfulExtractions: c.succeeded.Load(),
		FailedExtractions:     c.failed.Load(),
		CacheHits:             c.cacheHits.Load(),
		RateLimitEvents:       c.rateLimits.Load(),
		ModelCalls:            c.modelCalls.Load(),
	}
}
