package llm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Router dispatches each request to the client registered for the model's
// provider.
type Router struct {
	mu      sync.RWMutex
	clients map[Provider]ChatClient
	models  map[string]Provider
	logger  *zap.Logger
}

// NewRouter creates a router that knows the providers of models.
func NewRouter(models []ModelSpec, logger *zap.Logger) *Router {
	r := &Router{
		clients: make(map[Provider]ChatClient),
		models:  make(map[string]Provider, len(models)),
		logger:  logger,
	}
	for _, m := range models {
		r.models[m.Name] = m.ResolvedProvider()
	}
	return r
}

// Register binds a client to a provider, replacing any previous one.
func (r *Router) Register(p Provider, c ChatClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[p] = c
	r.logger.Info("LLM provider registered", zap.String("provider", string(p)))
}

// Has reports whether a client is registered for p.
func (r *Router) Has(p Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[p]
	return ok
}

// Complete implements ChatClient.
func (r *Router) Complete(ctx context.Context, req Request) (Response, error) {
	p := r.providerFor(req.Model)

	r.mu.RLock()
	c, ok := r.clients[p]
	r.mu.RUnlock()
	if !ok {
		return Response{}, fmt.Errorf("%w: %s (provider %s)", ErrNoProvider, req.Model, p)
	}
	return c.Complete(ctx, req)
}

func (r *Router) providerFor(model string) Provider {
	if p, ok := r.models[model]; ok {
		return p
	}
	return ModelSpec{Name: model}.ResolvedProvider()
}
