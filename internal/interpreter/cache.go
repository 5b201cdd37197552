package interpreter

import (
	"context"
	"sync"
	"tcav-panel/pkg/api"

	"golang.org/x/sync/singleflight"
)

type SpecSource interface {
	ModelSpec(ctx context.Context, model string) (api.ModelSpec, error)
}

// CapabilityCache memoizes model specs. Concurrent lookups of the same model
// share one upstream request.
type CapabilityCache struct {
	source SpecSource
	group  singleflight.Group

	mu    sync.RWMutex
	specs map[string]api.ModelSpec
}

func NewCapabilityCache(source SpecSource) *CapabilityCache {
	return &CapabilityCache{source: source, specs: make(map[string]api.ModelSpec)}
}

func (c *CapabilityCache) ModelSpec(ctx context.Context, model string) (api.ModelSpec, error) {
	c.mu.RLock()
	spec, ok := c.specs[model]
	c.mu.RUnlock()
	if ok {
		return spec, nil
	}

	v, err, _ := c.group.Do(model, func() (any, error) {
		spec, err := c.source.ModelSpec(ctx, model)
		if err != nil {
			return api.ModelSpec{}, err
		}

		c.mu.Lock()
		c.specs[model] = spec
		c.mu.Unlock()
		return spec, nil
	})
	if err != nil {
		return api.ModelSpec{}, err
	}
	return v.(api.ModelSpec), nil
}

// Invalidate drops the cached spec of model, e.g. after it was reloaded.
func (c *CapabilityCache) Invalidate(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.specs, model)
}
