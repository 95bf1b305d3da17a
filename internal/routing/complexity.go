package routing

import (
	"strings"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

const (
	defaultSimpleMaxWords   = 500
	defaultModerateMaxWords = 2000
)

// documentFloors is the minimum tier per document type.
//
//nolint:gochecknoglobals // fixed escalation table
var documentFloors = map[domain.DocumentType]domain.ComplexityTier{
	domain.DocTechnicalSpec: domain.ComplexityModerate,
	domain.DocRequirements:  domain.ComplexityModerate,
}

// ComplexityAssessor classifies content by word count with per-document floors.
type ComplexityAssessor struct {
	simpleMaxWords   int
	moderateMaxWords int
}

// NewComplexityAssessor creates an assessor. Non-positive thresholds use defaults.
func NewComplexityAssessor(simpleMaxWords, moderateMaxWords int) *ComplexityAssessor {
	if simpleMaxWords <= 0 {
		simpleMaxWords = defaultSimpleMaxWords
	}
	if moderateMaxWords <= simpleMaxWords {
		moderateMaxWords = max(defaultModerateMaxWords, simpleMaxWords+1)
	}
	return &ComplexityAssessor{
		simpleMaxWords:   simpleMaxWords,
		moderateMaxWords: moderateMaxWords,
	}
}

// Assess is a pure function of its inputs. Empty content is SIMPLE regardless
// of document type.
func (a *ComplexityAssessor) Assess(content string, docType domain.DocumentType) domain.ComplexityTier {
	words := len(strings.Fields(content))
	if words == 0 {
		return domain.ComplexitySimple
	}

	tier := domain.ComplexityComplex
	switch {
	case words <= a.simpleMaxWords:
		tier = domain.ComplexitySimple
	case words <= a.moderateMaxWords:
		tier = domain.ComplexityModerate
	}

	if floor, ok := documentFloors[docType]; ok && tier < floor {
		return floor
	}
	return tier
}
