package echo

import (
	"context"
	"fmt"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

// RegisterPricing registers zero pricing for every echo model.
func (p *Provider) RegisterPricing(ctx context.Context, registry domain.PricingRegistry) error {
	for _, model := range p.SupportedModels(ctx) {
		if err := registry.RegisterPricing(ctx, model, domain.PricingConfig{}); err != nil {
			return fmt.Errorf("failed to register echo pricing: %w", err)
		}
	}
	return nil
}
