package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

func TestFingerprinter_Key(t *testing.T) {
	base := domain.CacheLookup{
		TaskType: domain.TaskSummary,
		Content:  "Ship the beta on Friday.",
	}

	t.Run("should be deterministic and namespaced", func(t *testing.T) {
		f := domain.Fingerprinter{}
		key := f.Key(base)

		require.Equal(t, key, f.Key(base))
		require.True(t, strings.HasPrefix(key, "taskcache:shared:summary:"))
		require.True(t, strings.HasPrefix(key, f.Prefix()))
	})

	t.Run("should ignore whitespace differences", func(t *testing.T) {
		f := domain.Fingerprinter{}
		other := base
		other.Content = "  Ship   the beta\non Friday.\t"

		require.Equal(t, f.Key(base), f.Key(other))
	})

	t.Run("should differ by task type", func(t *testing.T) {
		f := domain.Fingerprinter{}
		other := base
		other.TaskType = domain.TaskActionItems

		require.NotEqual(t, f.Key(base), f.Key(other))
	})

	t.Run("should include options independent of map order", func(t *testing.T) {
		f := domain.Fingerprinter{}
		a := base
		a.Options = map[string]string{"summary_length": "short", "tone": "formal"}
		b := base
		b.Options = map[string]string{"tone": "formal", "summary_length": "short"}
		c := base
		c.Options = map[string]string{"summary_length": "long", "tone": "formal"}

		require.Equal(t, f.Key(a), f.Key(b))
		require.NotEqual(t, f.Key(a), f.Key(c))
		require.NotEqual(t, f.Key(base), f.Key(a))
	})

	t.Run("should separate tenants only when scoped", func(t *testing.T) {
		a := base
		a.TenantID = "acme"
		b := base
		b.TenantID = "globex"

		shared := domain.Fingerprinter{}
		require.Equal(t, shared.Key(a), shared.Key(b))

		scoped := domain.Fingerprinter{TenantScoped: true}
		require.NotEqual(t, scoped.Key(a), scoped.Key(b))
		require.True(t, strings.HasPrefix(scoped.Key(a), "taskcache:t=acme:"))
	})

	t.Run("should hash only the prefix plus total length", func(t *testing.T) {
		f := domain.Fingerprinter{PrefixBytes: 8}
		a := base
		a.Content = "abcdefgh-tail-one"
		b := base
		b.Content = "abcdefgh-tail-two"
		c := base
		c.Content = "abcdefgh-longer-tail"

		require.Equal(t, f.Key(a), f.Key(b))
		require.NotEqual(t, f.Key(a), f.Key(c))

		full := domain.Fingerprinter{}
		require.NotEqual(t, full.Key(a), full.Key(b))
	})

	t.Run("should differ by document type", func(t *testing.T) {
		f := domain.Fingerprinter{}
		notes := base
		notes.DocumentType = domain.DocMeetingNotes
		report := base
		report.DocumentType = domain.DocStatusReport
		unknown := base
		unknown.DocumentType = domain.DocUnknown

		require.NotEqual(t, f.Key(notes), f.Key(report))
		require.Equal(t, f.Key(base), f.Key(unknown))
	})

	t.Run("should include few-shot examples in order", func(t *testing.T) {
		f := domain.Fingerprinter{}
		one := base
		one.FewShotExamples = []domain.FewShotExample{{Input: "notes", Output: "summary"}}
		swapped := base
		swapped.FewShotExamples = []domain.FewShotExample{{Input: "notessummary", Output: ""}}
		two := base
		two.FewShotExamples = []domain.FewShotExample{
			{Input: "a", Output: "b"},
			{Input: "c", Output: "d"},
		}
		reversed := base
		reversed.FewShotExamples = []domain.FewShotExample{
			{Input: "c", Output: "d"},
			{Input: "a", Output: "b"},
		}

		require.NotEqual(t, f.Key(base), f.Key(one))
		require.NotEqual(t, f.Key(one), f.Key(swapped))
		require.NotEqual(t, f.Key(two), f.Key(reversed))
		require.Equal(t, f.Key(one), f.Key(one))
	})

	t.Run("should bound the prefix on normalized content", func(t *testing.T) {
		f := domain.Fingerprinter{PrefixBytes: 8}
		a := base
		a.Content = "  abcd   efgh-tail-one"
		b := base
		b.Content = "abcd efgh-tail-two"

		require.Equal(t, f.Key(a), f.Key(b))
	})

	t.Run("should use the configured namespace", func(t *testing.T) {
		f := domain.Fingerprinter{Namespace: "pm"}
		require.True(t, strings.HasPrefix(f.Key(base), "pm:shared:"))
		require.Equal(t, "pm:", f.Prefix())
	})
}

func TestNormalizeContent(t *testing.T) {
	t.Run("should collapse whitespace runs and trim", func(t *testing.T) {
		require.Equal(t, "a b c", domain.NormalizeContent("\n a \t\tb\r\n c  "))
		require.Empty(t, domain.NormalizeContent(" \n\t"))
	})

	t.Run("should match field splitting on unicode whitespace", func(t *testing.T) {
		in := "résumé\u00a0draft\u2003 v2 \u0085end"
		require.Equal(t, strings.Join(strings.Fields(in), " "), domain.NormalizeContent(in))
	})
}
