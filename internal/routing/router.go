package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
)

// IntelligentRouter picks a model per request after consulting the cache.
type IntelligentRouter struct {
	assessor  *ComplexityAssessor
	table     *Table
	models    TierModels
	cache     domain.ResponseCache
	assembler domain.PromptAssembler
}

// NewRouter creates a new router. cache may be nil.
func NewRouter(
	assessor *ComplexityAssessor,
	table *Table,
	models TierModels,
	cache domain.ResponseCache,
	assembler domain.PromptAssembler,
) *IntelligentRouter {
	return &IntelligentRouter{
		assessor:  assessor,
		table:     table,
		models:    models,
		cache:     cache,
		assembler: assembler,
	}
}

// Route selects a model. A cache hit returns before any rule is evaluated or
// template rendered. Cache failures degrade to a miss.
func (r *IntelligentRouter) Route(ctx context.Context, req *domain.TaskRequest) (*domain.RoutingDecision, error) {
	if req == nil {
		return nil, errors.New("route request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	complexity := r.assessor.Assess(req.Content, req.DocumentType)

	var cacheKey string
	if r.cache != nil {
		lookup := domain.LookupFor(req)
		cacheKey = r.cache.Key(lookup)

		cached, err := r.cache.Get(ctx, lookup)
		switch {
		case err == nil && cached != nil:
			logger.Info("cache HIT", observability.String("cache_key", cacheKey))
			return &domain.RoutingDecision{
				ModelID:      cached.ModelID,
				Tier:         r.models.TierOf(cached.ModelID),
				Rule:         "cache",
				Complexity:   complexity,
				CacheKey:     cacheKey,
				Cached:       true,
				CachedResult: cached,
			}, nil
		case err != nil && !errors.Is(err, domain.ErrCacheMiss):
			logger.Warn("cache unavailable, treating as miss", observability.Error(err))
		default:
			logger.Info("cache MISS", observability.String("cache_key", cacheKey))
		}
	}

	decision := &domain.RoutingDecision{
		Complexity: complexity,
		CacheKey:   cacheKey,
		Cached:     false,
	}

	if req.ForceModel != "" {
		decision.ModelID = req.ForceModel
		decision.Tier = r.models.TierOf(req.ForceModel)
		decision.Rule = "forced"
	} else {
		rule := r.table.Select(RuleInput{
			TaskType:   req.TaskType,
			Complexity: complexity,
			Priorities: req.Priorities,
		})
		decision.ModelID = r.models.Model(rule.Tier)
		decision.Tier = rule.Tier
		decision.Rule = rule.Name
	}

	if decision.ModelID == "" {
		return nil, fmt.Errorf("no model configured for tier %s", decision.Tier)
	}

	prompt, err := r.assemble(req)
	if err != nil {
		return nil, fmt.Errorf("prompt assembly failed: %w", err)
	}
	decision.Prompt = prompt

	logger.Info("routed request",
		observability.String("complexity", complexity.String()),
		observability.String("rule", decision.Rule),
		observability.String("tier", string(decision.Tier)),
		observability.String("model_id", decision.ModelID),
		observability.Float64("priority_cost", req.Priorities.Cost),
		observability.Float64("priority_speed", req.Priorities.Speed),
		observability.Float64("priority_accuracy", req.Priorities.Accuracy))

	return decision, nil
}

// optionAssembler is implemented by assemblers that expose option flags to templates.
type optionAssembler interface {
	AssembleWithOptions(
		taskType domain.TaskType,
		docType domain.DocumentType,
		content string,
		examples []domain.FewShotExample,
		options map[string]string,
	) (*domain.Prompt, error)
}

func (r *IntelligentRouter) assemble(req *domain.TaskRequest) (*domain.Prompt, error) {
	if oa, ok := r.assembler.(optionAssembler); ok {
		return oa.AssembleWithOptions(req.TaskType, req.DocumentType, req.Content, req.FewShotExamples, req.Options)
	}
	return r.assembler.Assemble(req.TaskType, req.DocumentType, req.Content, req.FewShotExamples)
}
