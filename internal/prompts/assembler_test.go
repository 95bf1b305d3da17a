package prompts_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/prompts"
)

func newAssembler(t *testing.T) *prompts.Assembler {
	t.Helper()
	reg, err := prompts.LoadDefault()
	require.NoError(t, err)
	return prompts.NewAssembler(reg)
}

func TestAssembler_Assemble(t *testing.T) {
	t.Run("should use document specific template when present", func(t *testing.T) {
		a := newAssembler(t)

		p, err := a.Assemble(domain.TaskSummary, domain.DocMeetingNotes, "we agreed to ship friday", nil)

		require.NoError(t, err)
		require.Contains(t, p.User, "Meeting notes:")
		require.Contains(t, p.User, "(5 words)")
		require.Contains(t, p.User, "we agreed to ship friday")
		require.Contains(t, p.System, "decisions")
	})

	t.Run("should fall back to task default template", func(t *testing.T) {
		a := newAssembler(t)

		p, err := a.Assemble(domain.TaskSummary, domain.DocStatusReport, "all green", nil)

		require.NoError(t, err)
		require.Contains(t, p.System, "status report documents")
		require.Contains(t, p.User, "Summarize the following status report (2 words).")
	})

	t.Run("should render few shot examples in order", func(t *testing.T) {
		a := newAssembler(t)
		examples := []domain.FewShotExample{
			{Input: "first in", Output: "first out"},
			{Input: "second in", Output: "second out"},
		}

		p, err := a.Assemble(domain.TaskActionItems, domain.DocMeetingNotes, "Bob to send the deck", examples)

		require.NoError(t, err)
		require.Contains(t, p.User, "Example 1 input:\nfirst in")
		require.Contains(t, p.User, "Example 2 output:\nsecond out")
		require.Less(t, strings.Index(p.User, "first in"), strings.Index(p.User, "second in"))
	})

	t.Run("should omit examples section without examples", func(t *testing.T) {
		a := newAssembler(t)

		p, err := a.Assemble(domain.TaskSynthesis, domain.DocProjectPlan, "phase one", nil)

		require.NoError(t, err)
		require.NotContains(t, p.User, "Examples:")
	})

	t.Run("should expose option flags to templates", func(t *testing.T) {
		a := newAssembler(t)

		p, err := a.AssembleWithOptions(domain.TaskSummary, domain.DocStatusReport, "all green", nil,
			map[string]string{"summary_length": "short"})

		require.NoError(t, err)
		require.Contains(t, p.User, "Target length: short.")
	})

	t.Run("should return template not found for unknown task", func(t *testing.T) {
		a := newAssembler(t)

		p, err := a.Assemble(domain.TaskType("translation"), domain.DocUnknown, "hola", nil)

		require.Nil(t, p)
		require.ErrorIs(t, err, domain.ErrTemplateNotFound)

		var notFound *domain.TemplateNotFoundError
		require.ErrorAs(t, err, &notFound)
		require.Equal(t, domain.TaskType("translation"), notFound.TaskType)
	})
}

func TestLoad(t *testing.T) {
	t.Run("should load every embedded template", func(t *testing.T) {
		reg, err := prompts.LoadDefault()

		require.NoError(t, err)
		require.Equal(t, 7, reg.Len())
		for _, task := range []domain.TaskType{
			domain.TaskSummary, domain.TaskActionItems, domain.TaskRiskAssessment, domain.TaskQA, domain.TaskSynthesis,
		} {
			_, lookupErr := reg.Lookup(task, domain.DocUnknown)
			require.NoError(t, lookupErr, "task %s needs a default template", task)
		}
	})

	t.Run("should reject duplicate templates", func(t *testing.T) {
		yaml := `
templates:
  - task: qa
    system: a
    user: b
  - task: qa
    system: c
    user: d
`
		_, err := prompts.Load(strings.NewReader(yaml))

		require.Error(t, err)
		require.Contains(t, err.Error(), "duplicate template")
	})

	t.Run("should reject malformed template syntax", func(t *testing.T) {
		yaml := `
templates:
  - task: qa
    system: "{{.Content"
    user: b
`
		_, err := prompts.Load(strings.NewReader(yaml))

		require.Error(t, err)
	})
}
