package domain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

func TestStandardCostCalculator_Calculate(t *testing.T) {
	ctx := context.Background()
	registry := domain.NewInMemoryPricingRegistry()
	require.NoError(t, registry.RegisterPricing(ctx, "gpt-4o", domain.PricingConfig{
		InputCostPer1K:  0.0025,
		OutputCostPer1K: 0.01,
	}))
	require.NoError(t, registry.RegisterPricing(ctx, "gpt-4o-mini", domain.PricingConfig{
		InputCostPer1K:  0.00015,
		OutputCostPer1K: 0.0006,
	}))

	calculator := domain.NewStandardCostCalculator(registry)
	reported := 0.5

	tests := []struct {
		name         string
		model        string
		usage        domain.Usage
		expectedCost float64
		expectError  bool
	}{
		{
			name:         "should price tokens from the registry",
			model:        "gpt-4o",
			usage:        domain.Usage{TokensIn: 1000, TokensOut: 500},
			expectedCost: 0.0075,
		},
		{
			name:         "should prefer the provider-reported cost",
			model:        "gpt-4o",
			usage:        domain.Usage{TokensIn: 1000, TokensOut: 500, CostUSD: &reported},
			expectedCost: 0.5,
		},
		{
			name:         "should resolve a dated variant to its base model",
			model:        "gpt-4o-2024-08-06",
			usage:        domain.Usage{TokensIn: 1000, TokensOut: 500},
			expectedCost: 0.0075,
		},
		{
			name:         "should resolve to the longest registered prefix",
			model:        "gpt-4o-mini-2024-07-18",
			usage:        domain.Usage{TokensIn: 1000, TokensOut: 1000},
			expectedCost: 0.00075,
		},
		{
			name:         "should cost zero for an unpriced model",
			model:        "claude-unknown",
			usage:        domain.Usage{TokensIn: 1000, TokensOut: 500},
			expectedCost: 0,
		},
		{
			name:        "should reject an empty model",
			model:       "",
			usage:       domain.Usage{TokensIn: 1},
			expectError: true,
		},
		{
			name:        "should reject negative token counts",
			model:       "gpt-4o",
			usage:       domain.Usage{TokensIn: -1},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost, err := calculator.Calculate(ctx, tt.model, tt.usage)

			if tt.expectError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.InDelta(t, tt.expectedCost, cost, 1e-9)
		})
	}
}

func TestInMemoryPricingRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("should not match a prefix without a dash boundary", func(t *testing.T) {
		registry := domain.NewInMemoryPricingRegistry()
		require.NoError(t, registry.RegisterPricing(ctx, "gpt-4", domain.PricingConfig{InputCostPer1K: 0.03}))

		_, err := registry.GetPricing(ctx, "gpt-4o")
		require.ErrorIs(t, err, domain.ErrPricingNotFound)

		got, err := registry.GetPricing(ctx, "gpt-4-turbo")
		require.NoError(t, err)
		require.InDelta(t, 0.03, got.InputCostPer1K, 1e-9)
	})

	t.Run("should overwrite an existing price", func(t *testing.T) {
		registry := domain.NewInMemoryPricingRegistry()
		require.NoError(t, registry.RegisterPricing(ctx, "m", domain.PricingConfig{InputCostPer1K: 0.01}))
		require.NoError(t, registry.RegisterPricing(ctx, "m", domain.PricingConfig{InputCostPer1K: 0.05}))

		got, err := registry.GetPricing(ctx, "m")
		require.NoError(t, err)
		require.InDelta(t, 0.05, got.InputCostPer1K, 1e-9)
	})

	t.Run("should reject empty models and negative prices", func(t *testing.T) {
		registry := domain.NewInMemoryPricingRegistry()
		require.Error(t, registry.RegisterPricing(ctx, "", domain.PricingConfig{}))
		require.Error(t, registry.RegisterPricing(ctx, "m", domain.PricingConfig{OutputCostPer1K: -1}))
	})
}
