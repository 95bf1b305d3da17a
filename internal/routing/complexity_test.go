package routing_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/routing"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestComplexityAssessor_Assess(t *testing.T) {
	assessor := routing.NewComplexityAssessor(500, 2000)

	tests := []struct {
		name     string
		content  string
		docType  domain.DocumentType
		expected domain.ComplexityTier
	}{
		{"empty content is simple", "", domain.DocMeetingNotes, domain.ComplexitySimple},
		{"empty technical spec is still simple", "   \n\t", domain.DocTechnicalSpec, domain.ComplexitySimple},
		{"short meeting notes are simple", words(50), domain.DocMeetingNotes, domain.ComplexitySimple},
		{"boundary at simple threshold", words(500), domain.DocStatusReport, domain.ComplexitySimple},
		{"just above simple threshold", words(501), domain.DocStatusReport, domain.ComplexityModerate},
		{"boundary at moderate threshold", words(2000), domain.DocProjectPlan, domain.ComplexityModerate},
		{"long document is complex", words(2001), domain.DocUnknown, domain.ComplexityComplex},
		{"short technical spec escalates to moderate", words(10), domain.DocTechnicalSpec, domain.ComplexityModerate},
		{"short requirements escalate to moderate", words(10), domain.DocRequirements, domain.ComplexityModerate},
		{"long technical spec stays complex", words(3000), domain.DocTechnicalSpec, domain.ComplexityComplex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, assessor.Assess(tt.content, tt.docType))
		})
	}
}

func TestComplexityAssessor_Defaults(t *testing.T) {
	t.Run("should apply default thresholds for non-positive inputs", func(t *testing.T) {
		assessor := routing.NewComplexityAssessor(0, 0)

		require.Equal(t, domain.ComplexitySimple, assessor.Assess(words(500), domain.DocUnknown))
		require.Equal(t, domain.ComplexityModerate, assessor.Assess(words(2000), domain.DocUnknown))
		require.Equal(t, domain.ComplexityComplex, assessor.Assess(words(2001), domain.DocUnknown))
	})

	t.Run("should be deterministic", func(t *testing.T) {
		assessor := routing.NewComplexityAssessor(10, 20)
		content := words(15)

		first := assessor.Assess(content, domain.DocStatusReport)
		for range 10 {
			require.Equal(t, first, assessor.Assess(content, domain.DocStatusReport))
		}
	})
}
