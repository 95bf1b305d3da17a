// Package openai provides a model invocation client for the OpenAI API using
// the official SDK. Requests pass through a client-side rate limiter before
// they reach the API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
)

const providerName = "openai"

// Provider implements domain.ModelClient for OpenAI.
type Provider struct {
	client  openai.Client
	name    string
	limiter *rate.Limiter
	models  map[string]domain.PricingConfig
}

var _ domain.ModelClient = (*Provider)(nil)

// NewProvider creates a new OpenAI model client.
func NewProvider(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(max(config.MaxRetries, 0)),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), max(config.Burst, 1))
	}

	return &Provider{
		client:  openai.NewClient(opts...),
		name:    providerName,
		limiter: limiter,
		models:  modelPricing(),
	}, nil
}

// Invoke sends a system/user prompt pair as a chat completion.
func (p *Provider) Invoke(ctx context.Context, call *domain.ModelCall) (*domain.ModelResponse, error) {
	if call == nil {
		return nil, errors.New("call cannot be nil")
	}

	logger := observability.FromContext(ctx)

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("OpenAI rate limiter: %w", err)
	}

	callOpts := []option.RequestOption{}
	if call.Timeout > 0 {
		callOpts = append(callOpts, option.WithRequestTimeout(call.Timeout))
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if call.Prompt.System != "" {
		messages = append(messages, openai.SystemMessage(call.Prompt.System))
	}
	messages = append(messages, openai.UserMessage(call.Prompt.User))

	logger.Debug("calling OpenAI API")
	start := time.Now()

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(call.ModelID),
		Messages: messages,
	}, callOpts...)
	if err != nil {
		logger.Error("OpenAI API call failed", observability.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	logger.Debug("OpenAI API call succeeded",
		observability.Int("prompt_tokens", int(resp.Usage.PromptTokens)),
		observability.Int("completion_tokens", int(resp.Usage.CompletionTokens)),
	)

	return p.toDomainResponse(call.ModelID, resp, time.Since(start)), nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// IsModelSupported checks if the provider has pricing for the given model.
func (p *Provider) IsModelSupported(_ context.Context, model string) bool {
	_, ok := p.models[model]
	return ok
}

// SupportedModels returns the models this provider serves.
func (p *Provider) SupportedModels(_ context.Context) []string {
	models := make([]string, 0, len(p.models))
	for model := range p.models {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// toDomainResponse converts the SDK response, pricing it from the requested
// model when the response model is unknown.
func (p *Provider) toDomainResponse(requested string, resp *openai.ChatCompletion, elapsed time.Duration) *domain.ModelResponse {
	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	pricing, ok := p.models[resp.Model]
	if !ok {
		pricing = p.models[requested]
	}
	usage := domain.Usage{
		TokensIn:  int(resp.Usage.PromptTokens),
		TokensOut: int(resp.Usage.CompletionTokens),
	}
	cost := pricing.Cost(usage)
	usage.CostUSD = &cost

	return &domain.ModelResponse{
		Text:      content,
		Usage:     usage,
		LatencyMS: elapsed.Milliseconds(),
	}
}
