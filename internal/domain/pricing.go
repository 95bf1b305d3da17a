package domain

import "context"

// PricingConfig is the USD price of 1K tokens in each direction.
type PricingConfig struct {
	InputCostPer1K  float64
	OutputCostPer1K float64
}

// Cost prices a usage record.
func (p PricingConfig) Cost(usage Usage) float64 {
	return float64(usage.TokensIn)/tokensToPerK*p.InputCostPer1K +
		float64(usage.TokensOut)/tokensToPerK*p.OutputCostPer1K
}

// CostCalculator turns token usage into USD.
type CostCalculator interface {
	// Calculate returns the provider-reported cost when present, otherwise a
	// cost derived from the model's pricing.
	Calculate(ctx context.Context, model string, usage Usage) (float64, error)
}

// PricingRegistry resolves model identifiers to prices.
type PricingRegistry interface {
	// GetPricing returns the price for a model. Dated or suffixed variants
	// ("gpt-4o-2024-08-06") resolve to the longest registered prefix.
	GetPricing(ctx context.Context, model string) (PricingConfig, error)

	// RegisterPricing sets the price for a model.
	RegisterPricing(ctx context.Context, model string, config PricingConfig) error
}
