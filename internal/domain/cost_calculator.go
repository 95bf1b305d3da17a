package domain

import (
	"context"
	"errors"
)

const tokensToPerK = 1000.0

// StandardCostCalculator prefers the provider's own figure and falls back to
// the pricing registry.
type StandardCostCalculator struct {
	pricingRegistry PricingRegistry
}

// NewStandardCostCalculator creates a new cost calculator.
func NewStandardCostCalculator(registry PricingRegistry) *StandardCostCalculator {
	return &StandardCostCalculator{
		pricingRegistry: registry,
	}
}

// Calculate returns usage.CostUSD when set. Otherwise it prices the tokens;
// unpriced models cost 0 so a missing price never fails a request.
func (c *StandardCostCalculator) Calculate(ctx context.Context, model string, usage Usage) (float64, error) {
	if usage.CostUSD != nil {
		return *usage.CostUSD, nil
	}
	if model == "" {
		return 0, errors.New("model cannot be empty")
	}
	if usage.TokensIn < 0 || usage.TokensOut < 0 {
		return 0, errors.New("token counts cannot be negative")
	}
	if c.pricingRegistry == nil {
		return 0, nil
	}

	pricing, err := c.pricingRegistry.GetPricing(ctx, model)
	if errors.Is(err, ErrPricingNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return pricing.Cost(usage), nil
}
