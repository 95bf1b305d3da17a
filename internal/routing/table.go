package routing

import (
	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

// DefaultCostThreshold is the cost weight at which SIMPLE work goes to the economy tier.
const DefaultCostThreshold = 0.6

// RuleInput is everything a rule may inspect. Content is deliberately absent:
// it only reaches the table through Complexity.
type RuleInput struct {
	TaskType   domain.TaskType
	Complexity domain.ComplexityTier
	Priorities domain.Priorities
}

// Rule is one predicate/result row of the decision table.
type Rule struct {
	Name  string
	Match func(in RuleInput) bool
	Tier  domain.ModelTier
}

// Table is evaluated top to bottom; the first matching rule wins.
type Table struct {
	rules    []Rule
	fallback Rule
}

// NewTable builds a table. The fallback applies when no rule matches.
func NewTable(fallback Rule, rules ...Rule) *Table {
	return &Table{rules: rules, fallback: fallback}
}

// DefaultTable returns the production decision table. Speed priority has no
// arm of its own.
func DefaultTable(costThreshold float64) *Table {
	if costThreshold <= 0 {
		costThreshold = DefaultCostThreshold
	}

	return NewTable(
		Rule{
			Name:  "balanced-default",
			Match: func(RuleInput) bool { return true },
			Tier:  domain.TierBalanced,
		},
		Rule{
			Name: "simple-cost-sensitive",
			Match: func(in RuleInput) bool {
				return in.Complexity == domain.ComplexitySimple && in.Priorities.Cost >= costThreshold
			},
			Tier: domain.TierEconomy,
		},
		Rule{
			Name:  "risk-assessment-reasoning",
			Match: func(in RuleInput) bool { return in.TaskType == domain.TaskRiskAssessment },
			Tier:  domain.TierReasoning,
		},
		Rule{
			Name:  "action-items-structured",
			Match: func(in RuleInput) bool { return in.TaskType == domain.TaskActionItems },
			Tier:  domain.TierStructured,
		},
	)
}

// Rules returns the ordered rules followed by the fallback.
func (t *Table) Rules() []Rule {
	out := make([]Rule, 0, len(t.rules)+1)
	out = append(out, t.rules...)
	return append(out, t.fallback)
}

// Select returns the first matching rule, or the fallback.
func (t *Table) Select(in RuleInput) Rule {
	for _, rule := range t.rules {
		if rule.Match(in) {
			return rule
		}
	}
	return t.fallback
}

// TierModels maps each tier to a concrete model identifier.
type TierModels map[domain.ModelTier]string

// Model returns the model for a tier, falling back to the balanced model.
func (m TierModels) Model(tier domain.ModelTier) string {
	if id, ok := m[tier]; ok && id != "" {
		return id
	}
	return m[domain.TierBalanced]
}

// TierOf returns the tier a model is configured for, if any.
func (m TierModels) TierOf(model string) domain.ModelTier {
	for _, tier := range []domain.ModelTier{
		domain.TierEconomy, domain.TierReasoning, domain.TierStructured, domain.TierBalanced,
	} {
		if m[tier] == model {
			return tier
		}
	}
	return ""
}
