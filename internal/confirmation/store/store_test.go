package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vitaliisemenov/agent-confirmation/internal/cache"
	"github.com/vitaliisemenov/agent-confirmation/internal/metrics"
)

var actionIDPattern = regexp.MustCompile(`^action_[0-9a-f]{12}$`)

func newTestStore(ttl time.Duration) *Store {
	provider := cache.NewMemoryProvider(Namespace, ttl, nil)
	return New(provider, ttl, nil, nil)
}

func TestStore_StoreAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(time.Minute)

	actionID, err := s.Store(ctx, "alice", "sess-1", "jira", "create_jira_issue", "create", "low",
		map[string]any{"project": "OPS"})
	require.NoError(t, err)
	assert.Regexp(t, actionIDPattern, actionID)

	action, err := s.Get(ctx, actionID)
	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Equal(t, "alice", action.UserID)
	assert.Equal(t, "jira", action.Integration)
	assert.Equal(t, "OPS", action.Parameters["project"])
}

func TestStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(time.Minute)

	action, err := s.Get(ctx, "action_000000000000")
	require.NoError(t, err)
	assert.Nil(t, action)
}

func TestStore_GetExpiredReturnsNilAndCleansUp(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(10 * time.Millisecond)

	actionID, err := s.Store(ctx, "bob", "", "email", "send_email", "send", "medium", nil)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	action, err := s.Get(ctx, actionID)
	require.NoError(t, err)
	assert.Nil(t, action)

	actions, err := s.GetByUser(ctx, "bob", nil)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(time.Minute)

	actionID, err := s.Store(ctx, "carol", "", "github", "create_github_issue", "create", "low", nil)
	require.NoError(t, err)

	ok, err := s.Delete(ctx, actionID, "carol")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, actionID, "carol")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_GetByUserFiltersBySession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(time.Minute)

	_, err := s.Store(ctx, "dave", "sess-a", "jira", "create_jira_issue", "create", "low", nil)
	require.NoError(t, err)
	_, err = s.Store(ctx, "dave", "sess-b", "jira", "create_jira_issue", "create", "low", nil)
	require.NoError(t, err)

	all, err := s.GetByUser(ctx, "dave", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sessA := "sess-a"
	filtered, err := s.GetByUser(ctx, "dave", &sessA)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "sess-a", filtered[0].SessionID)
}

func TestStore_GetByUserExcludesOtherUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(time.Minute)

	_, err := s.Store(ctx, "erin", "", "jira", "create_jira_issue", "create", "low", nil)
	require.NoError(t, err)
	_, err = s.Store(ctx, "frank", "", "jira", "create_jira_issue", "create", "low", nil)
	require.NoError(t, err)

	actions, err := s.GetByUser(ctx, "erin", nil)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "erin", actions[0].UserID)
}

func TestStore_ClearAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(time.Minute)

	_, err := s.Store(ctx, "gina", "", "jira", "create_jira_issue", "create", "low", nil)
	require.NoError(t, err)

	n, err := s.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_InstrumentsCacheOps(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	provider := cache.NewMemoryProvider(Namespace, time.Minute, nil)
	s := New(provider, time.Minute, nil, m)

	actionID, err := s.Store(ctx, "harold", "", "jira", "create_jira_issue", "create", "low", nil)
	require.NoError(t, err)
	_, err = s.Get(ctx, actionID)
	require.NoError(t, err)
	_, err = s.Delete(ctx, actionID, "harold")
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "confirmation_cache_op_duration_seconds")
	require.NoError(t, err)
	assert.Greater(t, count, 0, "store operations must be observed on the cache_op histogram")
}
