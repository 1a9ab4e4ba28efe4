package authclient

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	triggerStartup = "startup"
	triggerStorage = "storage"
)

// Controller owns the in-memory auth state machine for one process. It
// orchestrates the session store, token codec, and backend actions on
// startup, on explicit login/register/logout, and on storage-change events
// from other processes. All state mutations go through a single commit path;
// subscribers receive value snapshots.
type Controller struct {
	mu      sync.Mutex
	machine *phaseMachine
	state   AuthState
	busy    bool
	unwatch func()

	store        SessionStore
	actions      *Actions
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time

	// deliverMu serializes subscriber delivery in commit order. It is
	// acquired before mu is released so notifications can never arrive
	// inverted relative to the commits that produced them.
	deliverMu sync.Mutex

	subMu       sync.Mutex
	subscribers map[int]func(AuthState)
	nextSubID   int
}

// ControllerOption customizes Controller construction.
type ControllerOption func(*Controller)

// WithLogger overrides the logger.
func WithLogger(logger Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish auth events.
func WithActivitySink(sink ActivitySink) ControllerOption {
	return func(c *Controller) {
		c.activitySink = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ControllerOption {
	return func(c *Controller) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewController returns a Controller in the Initializing phase. Call Start
// to restore any persisted session and begin watching for external changes.
func NewController(store SessionStore, actions *Actions, opts ...ControllerOption) *Controller {
	c := &Controller{
		machine:      newPhaseMachine(),
		state:        newInitialState(),
		store:        store,
		actions:      actions,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
		subscribers:  map[int]func(AuthState){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// State returns a snapshot of the current auth state.
func (c *Controller) State() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn to receive a snapshot after every committed state
// change. Snapshots arrive in commit order; fn must work off the received
// snapshot instead of calling back into the controller. The returned func
// cancels the subscription.
func (c *Controller) Subscribe(fn func(AuthState)) func() {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

// Start restores the persisted session and subscribes to external storage
// changes, so a login or logout performed by another process propagates here
// without a restart. Storage events run through the same re-establish path
// as startup.
func (c *Controller) Start(ctx context.Context) error {
	cancel, err := c.store.OnExternalChange(func(StorageChange) {
		c.reestablish(context.Background(), triggerStorage)
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to watch session storage")
	}

	c.mu.Lock()
	c.unwatch = cancel
	c.mu.Unlock()

	c.reestablish(ctx, triggerStartup)
	return nil
}

// Close cancels the storage watch. The controller keeps its last state.
func (c *Controller) Close() error {
	c.mu.Lock()
	cancel := c.unwatch
	c.unwatch = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Login submits credentials and commits the resulting session. A second
// submission while one is pending returns ErrActionInFlight and leaves
// state untouched.
func (c *Controller) Login(ctx context.Context, req LoginRequest) (*ActionResult, error) {
	if err := c.beginAction(); err != nil {
		return nil, err
	}
	defer c.endAction()

	result := c.actions.Login(ctx, req)
	if result.Success {
		c.persistAndCommit(ctx, result.Token, result.User)
		c.record(ctx, ActivityEventLoginSuccess, ActorRef{ID: result.User.ID.String(), Type: "user"}, result.User.ID.String(), map[string]any{
			"identifier": req.Email,
		})
		return result, nil
	}

	c.commit(PhaseUnauthenticated, func(s *AuthState) {
		s.User = nil
		s.Token = ""
		s.Loading = false
		s.Err = result.Message
	})
	c.record(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
		"identifier": req.Email,
		"message":    result.Message,
	})

	return result, nil
}

// Register submits a registration and commits the resulting session.
// Identical overlap policy as Login.
func (c *Controller) Register(ctx context.Context, req RegisterRequest) (*ActionResult, error) {
	if err := c.beginAction(); err != nil {
		return nil, err
	}
	defer c.endAction()

	result := c.actions.Register(ctx, req)
	if result.Success {
		c.persistAndCommit(ctx, result.Token, result.User)
		c.record(ctx, ActivityEventRegisterSuccess, ActorRef{ID: result.User.ID.String(), Type: "user"}, result.User.ID.String(), map[string]any{
			"identifier": req.Email,
		})
		return result, nil
	}

	c.commit(PhaseUnauthenticated, func(s *AuthState) {
		s.User = nil
		s.Token = ""
		s.Loading = false
		s.Err = result.Message
	})
	c.record(ctx, ActivityEventRegisterFailure, ActorRef{Type: "unknown"}, "", map[string]any{
		"identifier": req.Email,
		"message":    result.Message,
	})

	return result, nil
}

// Logout clears the persisted session and resets state. Idempotent: calling
// it when already unauthenticated clears storage again and changes nothing
// else.
func (c *Controller) Logout(ctx context.Context) error {
	userID := ""
	c.mu.Lock()
	if c.state.User != nil {
		userID = c.state.User.ID.String()
	}
	c.mu.Unlock()

	clearErr := c.store.Clear(ctx)
	if clearErr != nil {
		c.logger.Warn("logout failed to clear session storage: %v", clearErr)
	}

	c.commit(PhaseUnauthenticated, func(s *AuthState) {
		s.User = nil
		s.Token = ""
		s.Loading = false
		s.Err = ""
	})

	c.record(ctx, ActivityEventLogout, ActorRef{ID: userID, Type: "user"}, userID, nil)

	if clearErr != nil {
		return errors.Wrap(clearErr, errors.CategoryOperation, "failed to clear session storage")
	}
	return nil
}

// CommitOAuthSession persists and commits a session produced by the OAuth
// flow.
func (c *Controller) CommitOAuthSession(ctx context.Context, token string, user *AuthUser) error {
	if token == "" || user == nil {
		return ErrEmptySession
	}

	c.persistAndCommit(ctx, token, user)

	provider := ""
	if user.OAuth != nil {
		provider = user.OAuth.Provider
	}
	c.record(ctx, ActivityEventOAuthCompleted, ActorRef{ID: provider, Type: "provider"}, user.ID.String(), map[string]any{
		"provider": provider,
	})
	return nil
}

// CommitOAuthFailure surfaces a failed OAuth attempt as a user-facing error.
// The current phase and any established session are left untouched, and the
// error is dismissable through ClearError like any credential failure.
func (c *Controller) CommitOAuthFailure(ctx context.Context, message string) {
	if message == "" {
		message = msgAuthenticationFailed
	}

	c.overlay(func(s *AuthState) {
		s.Loading = false
		s.Err = message
	})

	c.record(ctx, ActivityEventOAuthRejected, ActorRef{Type: "system"}, "", map[string]any{
		"message": message,
	})
}

// ClearError dismisses the current user-facing error, e.g. when the user
// edits a form field.
func (c *Controller) ClearError() {
	c.overlay(func(s *AuthState) {
		s.Err = ""
	})
}

// reestablish is the single code path that turns whatever is persisted into
// an in-memory session: read, local expiry check, backend revalidation.
// Every failure collapses to a silent Unauthenticated; none of them is a
// user mistake.
func (c *Controller) reestablish(ctx context.Context, trigger string) {
	token, err := c.store.Read(ctx)
	if err != nil {
		c.logger.Warn("session storage read failed: %v", err)
		token = ""
	}

	if token == "" {
		c.dropSession(ctx, trigger, "absent", false)
		return
	}

	if IsTokenExpiredAt(token, c.now()) {
		c.dropSession(ctx, trigger, "expired", true)
		return
	}

	user, err := c.actions.CurrentUser(ctx, token)
	if err != nil {
		// A revoked-but-unexpired token is a silent logout, not a failure
		// worth showing the user.
		c.logger.Info("stored session rejected during revalidation")
		c.dropSession(ctx, trigger, "rejected", true)
		return
	}

	c.commit(PhaseAuthenticated, func(s *AuthState) {
		s.User = user
		s.Token = token
		s.Loading = false
		s.Err = ""
	})

	event := ActivityEventSessionRestored
	if trigger == triggerStorage {
		event = ActivityEventSessionSynced
	}
	c.record(ctx, event, ActorRef{Type: "system"}, user.ID.String(), map[string]any{
		"trigger": trigger,
	})
}

func (c *Controller) dropSession(ctx context.Context, trigger, reason string, clearStorage bool) {
	if clearStorage {
		if err := c.store.Clear(ctx); err != nil {
			c.logger.Warn("failed to clear stale session: %v", err)
		}
	}

	c.commit(PhaseUnauthenticated, func(s *AuthState) {
		s.User = nil
		s.Token = ""
		s.Loading = false
		s.Err = ""
	})

	if reason != "absent" {
		c.record(ctx, ActivityEventSessionDropped, ActorRef{Type: "system"}, "", map[string]any{
			"trigger": trigger,
			"reason":  reason,
		})
	}
}

func (c *Controller) persistAndCommit(ctx context.Context, token string, user *AuthUser) {
	// Persistence is durability, not authority: a failed write degrades to
	// an in-memory session rather than failing the login.
	if err := c.store.Write(ctx, token); err != nil {
		c.logger.Warn("failed to persist session: %v", err)
	}

	c.commit(PhaseAuthenticated, func(s *AuthState) {
		s.User = user
		s.Token = token
		s.Loading = false
		s.Err = ""
	})
}

// beginAction marks a login/register in flight and raises the loading
// overlay.
func (c *Controller) beginAction() error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrActionInFlight
	}
	c.busy = true
	c.state.Loading = true
	c.state.Err = ""
	snapshot := c.state.clone()
	c.deliverMu.Lock()
	c.mu.Unlock()

	c.notify(snapshot)
	c.deliverMu.Unlock()
	return nil
}

func (c *Controller) endAction() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// commit applies a validated phase change plus overlay mutations, then
// notifies subscribers in commit order.
func (c *Controller) commit(target Phase, mutate func(*AuthState)) {
	c.mu.Lock()
	if err := c.machine.Check(c.state.Phase, target); err != nil {
		c.mu.Unlock()
		c.logger.Error("rejected session phase change: %v", err)
		return
	}
	c.state.Phase = target
	if mutate != nil {
		mutate(&c.state)
	}
	snapshot := c.state.clone()
	c.deliverMu.Lock()
	c.mu.Unlock()

	c.notify(snapshot)
	c.deliverMu.Unlock()
}

// overlay mutates loading/error flags without a phase change.
func (c *Controller) overlay(mutate func(*AuthState)) {
	c.mu.Lock()
	mutate(&c.state)
	snapshot := c.state.clone()
	c.deliverMu.Lock()
	c.mu.Unlock()

	c.notify(snapshot)
	c.deliverMu.Unlock()
}

func (c *Controller) notify(snapshot AuthState) {
	c.subMu.Lock()
	fns := make([]func(AuthState), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

func (c *Controller) record(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	if actor == (ActorRef{}) {
		actor = ActorRef{Type: "system"}
	}

	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: c.now(),
	}

	sink := normalizeActivitySink(c.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}
