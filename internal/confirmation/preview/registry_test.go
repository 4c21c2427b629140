package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_KnownFormatters(t *testing.T) {
	r := DefaultRegistry(nil)

	out := r.Format("jira", "create_jira_issue", map[string]any{
		"project": "OPS", "summary": "Bug in login", "description": "details here",
	})
	assert.Contains(t, out, "Create Jira Issue")
	assert.Contains(t, out, "OPS")
	assert.Contains(t, out, "Bug in login")
}

func TestDefaultRegistry_CaseInsensitiveLookup(t *testing.T) {
	r := DefaultRegistry(nil)

	out := r.Format("JIRA", "Create_Jira_Issue", map[string]any{"project": "OPS"})
	assert.Contains(t, out, "Create Jira Issue")
}

func TestRegistry_GenericFallback(t *testing.T) {
	r := NewRegistry(nil)

	out := r.Format("acme", "do_something", map[string]any{"b": 2, "a": 1})
	assert.Contains(t, out, "### do_something (acme)")
	// keys sorted: a before b
	aIdx := indexOf(out, "**a:**")
	bIdx := indexOf(out, "**b:**")
	require.GreaterOrEqual(t, aIdx, 0)
	require.GreaterOrEqual(t, bIdx, 0)
	assert.Less(t, aIdx, bIdx)
}

func TestRegistry_FormatDoesNotMutateParameters(t *testing.T) {
	r := DefaultRegistry(nil)
	params := map[string]any{"project": "OPS", "summary": "x", "description": "y"}
	before := map[string]any{}
	for k, v := range params {
		before[k] = v
	}

	_ = r.Format("jira", "create_jira_issue", params)

	assert.Equal(t, before, params)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
