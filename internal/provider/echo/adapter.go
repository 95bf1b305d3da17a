// Package echo provides a model client that echoes its prompt back. It makes no
// external calls and returns deterministic responses, so development setups
// can map every routing tier onto it.
package echo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
)

const (
	providerName = "echo"
	modelName    = "echo4"
)

// Provider implements domain.ModelClient for echo testing.
type Provider struct {
	name            string
	supportedModels map[string]bool
}

var _ domain.ModelClient = (*Provider)(nil)

// NewProvider creates a new echo client serving the given models, or echo4
// when none are named.
func NewProvider(models ...string) *Provider {
	if len(models) == 0 {
		models = []string{modelName}
	}

	supported := make(map[string]bool, len(models))
	for _, m := range models {
		if m != "" {
			supported[m] = true
		}
	}

	return &Provider{
		name:            providerName,
		supportedModels: supported,
	}
}

// Invoke returns the rendered prompt as the response text.
func (p *Provider) Invoke(ctx context.Context, call *domain.ModelCall) (*domain.ModelResponse, error) {
	if call == nil {
		return nil, errors.New("call cannot be nil")
	}

	if !p.supportedModels[call.ModelID] {
		return nil, fmt.Errorf("model %s is not supported by echo provider", call.ModelID)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	echoContent := buildEchoContent(call.Prompt)
	tokens := countTokens(echoContent)

	observability.FromContext(ctx).Debug("echo completed",
		observability.Int("prompt_tokens", tokens),
		observability.Int("completion_tokens", tokens),
	)

	return &domain.ModelResponse{
		Text: echoContent,
		Usage: domain.Usage{
			TokensIn:  tokens,
			TokensOut: tokens,
		},
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// IsModelSupported checks if the provider supports the given model.
func (p *Provider) IsModelSupported(_ context.Context, model string) bool {
	return p.supportedModels[model]
}

// SupportedModels returns a sorted list of all models this provider supports.
func (p *Provider) SupportedModels(_ context.Context) []string {
	models := make([]string, 0, len(p.supportedModels))
	for model := range p.supportedModels {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// buildEchoContent renders the prompt as role-tagged lines.
func buildEchoContent(prompt domain.Prompt) string {
	var builder strings.Builder
	if prompt.System != "" {
		builder.WriteString(fmt.Sprintf("[system]: %s\n", prompt.System))
	}
	if prompt.User != "" {
		builder.WriteString(fmt.Sprintf("[user]: %s\n", prompt.User))
	}
	return builder.String()
}

// countTokens performs simple word-based token counting.
func countTokens(content string) int {
	if content == "" {
		return 0
	}
	return len(strings.Fields(content))
}
