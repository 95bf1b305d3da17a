package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrPricingNotFound indicates no registered model covers the requested one.
var ErrPricingNotFound = errors.New("pricing not found")

// InMemoryPricingRegistry keeps prices in a map guarded by a read-write lock.
type InMemoryPricingRegistry struct {
	mu      sync.RWMutex
	pricing map[string]PricingConfig
}

// NewInMemoryPricingRegistry creates an empty registry.
func NewInMemoryPricingRegistry() *InMemoryPricingRegistry {
	return &InMemoryPricingRegistry{
		pricing: make(map[string]PricingConfig),
	}
}

// GetPricing tries an exact match first, then the longest registered model id
// that prefixes model at a '-' boundary.
func (r *InMemoryPricingRegistry) GetPricing(_ context.Context, model string) (PricingConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if config, ok := r.pricing[model]; ok {
		return config, nil
	}

	best := ""
	for id := range r.pricing {
		if len(id) > len(best) && strings.HasPrefix(model, id+"-") {
			best = id
		}
	}
	if best == "" {
		return PricingConfig{}, fmt.Errorf("%w for model %s", ErrPricingNotFound, model)
	}
	return r.pricing[best], nil
}

// RegisterPricing sets or replaces the price for a model.
func (r *InMemoryPricingRegistry) RegisterPricing(_ context.Context, model string, config PricingConfig) error {
	if model == "" {
		return errors.New("model cannot be empty")
	}
	if config.InputCostPer1K < 0 || config.OutputCostPer1K < 0 {
		return fmt.Errorf("negative price for model %s", model)
	}

	r.mu.Lock()
	r.pricing[model] = config
	r.mu.Unlock()
	return nil
}
