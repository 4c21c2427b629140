package store

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vitaliisemenov/agent-confirmation/internal/cache"
	"github.com/vitaliisemenov/agent-confirmation/internal/metrics"
)

// userIndexName is the secondary index every pending action is registered
// under, keyed by owning user_id. Mirrors the original store's
// USER_INDEX_PREFIX.
const userIndexName = "user_actions"

// Namespace is the cache.Provider namespace this store always uses.
const Namespace = "confirmation"

// Store is a typed façade over a cache.Provider, persisting PendingAction
// records and the user_actions secondary index.
type Store struct {
	provider cache.Provider
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New constructs a Store. ttl is applied to every record on Store and is
// the sole expiry authority; callers never extend it. m may be nil — every
// Metrics method is a documented no-op on a nil receiver.
func New(provider cache.Provider, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{provider: provider, ttl: ttl, logger: logger, metrics: m}
}

// timeOp runs fn, recording its wall-clock duration against the named
// cache.Provider operation regardless of outcome.
func (s *Store) timeOp(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveCacheOp(op, time.Since(start))
	return err
}

// generateActionID produces an "action_<12 lowercase hex>" identifier, the
// Go equivalent of the original's uuid.uuid4().hex[:12].
func generateActionID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "action_" + hex[:12]
}

// Store persists a new pending action and returns its generated action_id.
func (s *Store) Store(ctx context.Context, userID, sessionID, integration, toolName, actionType, riskLevel string, parameters map[string]any) (string, error) {
	actionID := generateActionID()
	now := time.Now().UTC()

	action := &PendingAction{
		ActionID:    actionID,
		UserID:      userID,
		SessionID:   sessionID,
		Integration: integration,
		ToolName:    toolName,
		ActionType:  actionType,
		RiskLevel:   riskLevel,
		Parameters:  parameters,
		CreatedAt:   now.Format(time.RFC3339),
		ExpiresAt:   now.Add(s.ttl).Format(time.RFC3339),
	}

	err := s.timeOp("set", func() error {
		return s.provider.Set(ctx, actionID, action, s.ttl, map[string]string{userIndexName: userID})
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("stored pending action", "action_id", actionID, "user_id", userID, "tool_name", toolName, "risk_level", riskLevel)
	return actionID, nil
}

// Get retrieves a pending action by ID. A present-but-locally-expired
// record is defensively deleted and reported as absent, matching the
// original's "TTL should handle cleanup, but delete manually to be safe".
func (s *Store) Get(ctx context.Context, actionID string) (*PendingAction, error) {
	var action PendingAction
	var found bool
	err := s.timeOp("get", func() error {
		var getErr error
		found, getErr = s.provider.Get(ctx, actionID, true, &action)
		return getErr
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	if action.IsExpired(time.Now().UTC()) {
		s.logger.Warn("pending action expired, cleaning up", "action_id", actionID)
		delErr := s.timeOp("delete", func() error {
			_, err := s.provider.Delete(ctx, actionID, map[string]string{userIndexName: action.UserID})
			return err
		})
		if delErr != nil {
			s.logger.Warn("failed to delete expired action", "action_id", actionID, "error", delErr)
		}
		return nil, nil
	}

	return &action, nil
}

// Delete removes a pending action (used after confirmation or
// cancellation). ok is false if it had already been removed.
func (s *Store) Delete(ctx context.Context, actionID, userID string) (bool, error) {
	var ok bool
	err := s.timeOp("delete", func() error {
		var delErr error
		ok, delErr = s.provider.Delete(ctx, actionID, map[string]string{userIndexName: userID})
		return delErr
	})
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.Info("deleted pending action", "action_id", actionID)
	}
	return ok, nil
}

// GetByUser returns every live pending action owned by userID, optionally
// filtered to a single session, skipping and best-effort cleaning up any
// expired records encountered along the way.
func (s *Store) GetByUser(ctx context.Context, userID string, sessionID *string) ([]*PendingAction, error) {
	var raw []PendingAction
	err := s.timeOp("get_by_index", func() error {
		return s.provider.GetByIndex(ctx, userIndexName, userID, &raw)
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	actions := make([]*PendingAction, 0, len(raw))
	for i := range raw {
		action := raw[i]
		if action.IsExpired(now) {
			delErr := s.timeOp("delete", func() error {
				_, err := s.provider.Delete(ctx, action.ActionID, map[string]string{userIndexName: action.UserID})
				return err
			})
			if delErr != nil {
				s.logger.Warn("failed to clean up expired action during listing", "action_id", action.ActionID, "error", delErr)
			}
			continue
		}
		if sessionID != nil && action.SessionID != *sessionID {
			continue
		}
		actions = append(actions, &action)
	}
	return actions, nil
}

// ClearAll removes every pending action in the store's namespace. For
// tests; mirrors the original's clear_all "use with caution" warning.
func (s *Store) ClearAll(ctx context.Context) (int, error) {
	var n int
	err := s.timeOp("clear_namespace", func() error {
		var clearErr error
		n, clearErr = s.provider.ClearNamespace(ctx)
		return clearErr
	})
	if err != nil {
		return 0, err
	}
	s.logger.Warn("cleared all pending actions", "count", n)
	return n, nil
}
