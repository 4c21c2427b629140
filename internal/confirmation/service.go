// Package confirmation implements the two-phase confirmation core: an
// agent runtime calls PrepareAction to stage a mutating action and get a
// human-readable preview, then ConfirmAction or CancelAction to resolve it.
package confirmation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/vitaliisemenov/agent-confirmation/internal/apierr"
	"github.com/vitaliisemenov/agent-confirmation/internal/confirmation/preview"
	"github.com/vitaliisemenov/agent-confirmation/internal/confirmation/store"
	"github.com/vitaliisemenov/agent-confirmation/internal/metrics"
	"github.com/vitaliisemenov/agent-confirmation/pkg/logger"
)

// ensureRequestID returns ctx unchanged and its carried request ID if one is
// already attached, otherwise generates a fresh one and attaches it — every
// public Service entry point calls this so logs and error envelopes for a
// single call correlate under one ID.
func ensureRequestID(ctx context.Context) (context.Context, string) {
	if id := logger.GetRequestID(ctx); id != "" {
		return ctx, id
	}
	id := logger.GenerateRequestID()
	return logger.WithRequestID(ctx, id), id
}

// attachRequestID tags err with requestID if it is a *apierr.ConfirmationError,
// leaving any other error (or nil) untouched.
func attachRequestID(err error, requestID string) error {
	var cerr *apierr.ConfirmationError
	if errors.As(err, &cerr) {
		cerr.WithRequestID(requestID)
	}
	return err
}

// Executor performs the actual mutating side effect of a confirmed action.
// It is supplied by the agent runtime at PrepareAction time and closes only
// over its own tool_args-derived fields, never over shared state — the
// explicit replacement for the original implementation's placeholder
// executor stub.
type Executor func() (any, error)

// PrepareInput carries everything PrepareAction needs to stage an action.
type PrepareInput struct {
	UserID    string         `validate:"required"`
	SessionID *string        `validate:"omitempty"`
	ToolName  string         `validate:"required"`
	ToolArgs  map[string]any `validate:"-"`
	RiskLevel string         `validate:"required,oneof=low medium high"`
	Executor  Executor       `validate:"-"`
}

// PrepareResult is returned to the caller of PrepareAction.
type PrepareResult struct {
	ActionID  string `json:"action_id"`
	Preview   string `json:"preview"`
	ExpiresAt string `json:"expires_at"`
}

// ConfirmResult is returned to the caller of ConfirmAction.
type ConfirmResult struct {
	Result     any    `json:"result"`
	ActionID   string `json:"action_id"`
	ExecutedAt string `json:"executed_at"`
}

// CancelResult is returned to the caller of CancelAction.
type CancelResult struct {
	ActionID    string `json:"action_id"`
	CancelledAt string `json:"cancelled_at"`
}

// ListedAction is one entry returned by ListPendingActions.
type ListedAction struct {
	ActionID    string         `json:"action_id"`
	Integration string         `json:"integration"`
	ToolName    string         `json:"tool_name"`
	ActionType  string         `json:"action_type"`
	RiskLevel   string         `json:"risk_level"`
	Parameters  map[string]any `json:"parameters"`
	Preview     string         `json:"preview"`
	CreatedAt   string         `json:"created_at"`
	ExpiresAt   string         `json:"expires_at"`
}

// IntegrationResolver maps a tool name to the (integration, action_type)
// pair a PendingAction is tagged with.
type IntegrationResolver func(toolName string) (integration, actionType string)

// Service is the confirmation core. Besides the store it wraps, it holds the
// in-process executor map, the preview LRU and the per-user rate limiters —
// the executor map, not the store, is the source of truth for "has this
// action already been resolved".
type Service struct {
	store    *store.Store
	registry *preview.Registry
	resolve  IntegrationResolver
	logger   *slog.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate

	executorsMu sync.Mutex
	executors   map[string]Executor

	previewCache *lru.Cache[string, string]

	limitersMu         sync.Mutex
	limiters           *lru.Cache[string, *rate.Limiter]
	rateLimitPerMinute int
}

// Option configures optional Service behavior.
type Option func(*Service)

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithIntegrationResolver overrides the default tool_name -> (integration,
// action_type) lookup table.
func WithIntegrationResolver(resolver IntegrationResolver) Option {
	return func(s *Service) { s.resolve = resolver }
}

// WithPreviewCacheSize bounds the LRU of rendered previews consulted by
// ListPendingActions. 0 disables caching (every list re-renders).
func WithPreviewCacheSize(size int) Option {
	return func(s *Service) {
		if size <= 0 {
			s.previewCache = nil
			return
		}
		cache, _ := lru.New[string, string](size)
		s.previewCache = cache
	}
}

// WithRateLimit throttles PrepareAction to perMinute calls per user_id. 0
// disables the limiter.
func WithRateLimit(perMinute int) Option {
	return func(s *Service) {
		s.rateLimitPerMinute = perMinute
		if perMinute <= 0 {
			s.limiters = nil
			return
		}
		limiters, _ := lru.New[string, *rate.Limiter](4096)
		s.limiters = limiters
	}
}

// New constructs a Service. store and registry are mandatory explicit
// dependencies — there is no lazily-initialized global singleton here.
func New(st *store.Store, registry *preview.Registry, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	previewCache, _ := lru.New[string, string](1024)

	s := &Service{
		store:        st,
		registry:     registry,
		resolve:      defaultIntegrationResolver,
		logger:       logger,
		validate:     validator.New(),
		executors:    make(map[string]Executor),
		previewCache: previewCache,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultIntegrationResolver(toolName string) (string, string) {
	switch toolName {
	case "create_jira_issue":
		return "jira", "create"
	case "add_jira_comment":
		return "jira", "update"
	case "send_email":
		return "email", "send"
	case "create_github_issue":
		return "github", "create"
	case "create_confluence_page":
		return "confluence", "create"
	default:
		return "generic", "other"
	}
}

// PrepareAction validates input, stages a new pending action, renders its
// preview, and registers its executor for later claim by ConfirmAction or
// CancelAction.
func (s *Service) PrepareAction(ctx context.Context, input PrepareInput) (*PrepareResult, error) {
	ctx, requestID := ensureRequestID(ctx)
	log := logger.FromContext(ctx, s.logger)

	if err := s.validate.Struct(input); err != nil {
		return nil, attachRequestID(apierr.NewValidationError(err.Error()), requestID)
	}
	if input.Executor == nil {
		return nil, attachRequestID(apierr.NewValidationError("executor is required"), requestID)
	}
	if !s.allowPrepare(input.UserID) {
		return nil, attachRequestID(apierr.NewValidationError("rate limit exceeded for user"), requestID)
	}

	integration, actionType := s.resolve(input.ToolName)

	sessionID := ""
	if input.SessionID != nil {
		sessionID = *input.SessionID
	}

	actionID, err := s.store.Store(ctx, input.UserID, sessionID, integration, input.ToolName, actionType, input.RiskLevel, input.ToolArgs)
	if err != nil {
		log.Error("failed to store pending action", "error", err)
		return nil, attachRequestID(apierr.NewCacheUnavailable(err), requestID)
	}

	s.executorsMu.Lock()
	s.executors[actionID] = input.Executor
	s.executorsMu.Unlock()

	previewText := s.registry.Format(integration, input.ToolName, input.ToolArgs)
	if s.previewCache != nil {
		s.previewCache.Add(actionID, previewText)
	}

	action, getErr := s.store.Get(ctx, actionID)
	expiresAt := ""
	if getErr == nil && action != nil {
		expiresAt = action.ExpiresAt
	}

	s.metrics.ObservePrepared(input.RiskLevel)

	return &PrepareResult{ActionID: actionID, Preview: previewText, ExpiresAt: expiresAt}, nil
}

// claimExecutor atomically removes and returns the executor registered for
// actionID, if any. This compare-and-remove is the actual source of truth
// for "has this action already been resolved" — whichever of ConfirmAction
// or CancelAction claims it first wins a concurrent race; the loser sees
// ok=false and must report InvalidAction, never re-run the winner's path.
func (s *Service) claimExecutor(actionID string) (Executor, bool) {
	s.executorsMu.Lock()
	defer s.executorsMu.Unlock()
	executor, ok := s.executors[actionID]
	if ok {
		delete(s.executors, actionID)
	}
	return executor, ok
}

// ConfirmAction looks up a pending action, checks ownership, claims its
// executor, best-effort deletes the store record, and invokes the
// executor outside any lock.
func (s *Service) ConfirmAction(ctx context.Context, actionID, userID string) (*ConfirmResult, error) {
	ctx, requestID := ensureRequestID(ctx)
	log := logger.FromContext(ctx, s.logger)

	action, err := s.authorize(ctx, actionID, userID)
	if err != nil {
		return nil, attachRequestID(err, requestID)
	}

	executor, ok := s.claimExecutor(actionID)
	if !ok {
		log.Info("action already resolved, losing confirm race", "action_id", actionID)
		return nil, attachRequestID(apierr.NewInvalidAction(), requestID)
	}

	if _, err := s.store.Delete(ctx, actionID, action.UserID); err != nil {
		log.Warn("failed to delete confirmed action from store", "action_id", actionID, "error", err)
	}
	if s.previewCache != nil {
		s.previewCache.Remove(actionID)
	}

	result, err := executor()
	if err != nil {
		s.metrics.ObserveExecutionFailed()
		return nil, attachRequestID(apierr.NewExecutionFailed(err), requestID)
	}

	s.metrics.ObserveConfirmed()
	log.Info("action confirmed and executed", "action_id", actionID, "user_id", userID)
	return &ConfirmResult{
		Result:     result,
		ActionID:   actionID,
		ExecutedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// CancelAction looks up a pending action, checks ownership, claims (and
// discards) its executor, and deletes the store record without ever
// invoking the executor.
func (s *Service) CancelAction(ctx context.Context, actionID, userID string) (*CancelResult, error) {
	ctx, requestID := ensureRequestID(ctx)
	log := logger.FromContext(ctx, s.logger)

	action, err := s.authorize(ctx, actionID, userID)
	if err != nil {
		return nil, attachRequestID(err, requestID)
	}

	if _, ok := s.claimExecutor(actionID); !ok {
		log.Info("action already resolved, losing cancel race", "action_id", actionID)
		return nil, attachRequestID(apierr.NewInvalidAction(), requestID)
	}

	if _, err := s.store.Delete(ctx, actionID, action.UserID); err != nil {
		log.Warn("failed to delete cancelled action from store", "action_id", actionID, "error", err)
	}
	if s.previewCache != nil {
		s.previewCache.Remove(actionID)
	}

	s.metrics.ObserveCancelled()
	log.Info("action cancelled", "action_id", actionID, "user_id", userID)
	return &CancelResult{
		ActionID:    actionID,
		CancelledAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// authorize loads the action and verifies ownership, in that order, so a
// non-owner never learns anything beyond "permission denied" while the
// owner's logs carry both IDs for audit.
func (s *Service) authorize(ctx context.Context, actionID, userID string) (*store.PendingAction, error) {
	action, err := s.store.Get(ctx, actionID)
	if err != nil {
		return nil, apierr.NewCacheUnavailable(err)
	}
	if action == nil {
		s.metrics.ObserveExpired()
		return nil, apierr.NewInvalidAction()
	}
	if action.UserID != userID {
		logger.FromContext(ctx, s.logger).Warn("permission denied", "action_id", actionID, "owner_user_id", action.UserID, "requesting_user_id", userID)
		return nil, apierr.NewPermissionDenied()
	}
	return action, nil
}

// ListPendingActions returns every live action owned by userID, optionally
// filtered to one session, with each action's preview either served from
// the LRU populated at PrepareAction time or re-derived on a miss.
func (s *Service) ListPendingActions(ctx context.Context, userID string, sessionID *string) ([]ListedAction, error) {
	_, requestID := ensureRequestID(ctx)

	actions, err := s.store.GetByUser(ctx, userID, sessionID)
	if err != nil {
		return nil, attachRequestID(apierr.NewCacheUnavailable(err), requestID)
	}

	listed := make([]ListedAction, 0, len(actions))
	for _, action := range actions {
		listed = append(listed, ListedAction{
			ActionID:    action.ActionID,
			Integration: action.Integration,
			ToolName:    action.ToolName,
			ActionType:  action.ActionType,
			RiskLevel:   action.RiskLevel,
			Parameters:  action.Parameters,
			Preview:     s.previewFor(action),
			CreatedAt:   action.CreatedAt,
			ExpiresAt:   action.ExpiresAt,
		})
	}
	return listed, nil
}

func (s *Service) previewFor(action *store.PendingAction) string {
	if s.previewCache != nil {
		if cached, ok := s.previewCache.Get(action.ActionID); ok {
			return cached
		}
	}
	rendered := s.registry.Format(action.Integration, action.ToolName, action.Parameters)
	if s.previewCache != nil {
		s.previewCache.Add(action.ActionID, rendered)
	}
	return rendered
}

// allowPrepare consults (creating if absent) a per-user token bucket. It
// always allows the call when rate limiting is disabled.
func (s *Service) allowPrepare(userID string) bool {
	if s.limiters == nil {
		return true
	}
	s.limitersMu.Lock()
	limiter, ok := s.limiters.Get(userID)
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.rateLimitPerMinute)/rate.Limit(time.Minute/time.Second), s.rateLimitPerMinute)
		s.limiters.Add(userID, limiter)
	}
	s.limitersMu.Unlock()
	return limiter.Allow()
}
