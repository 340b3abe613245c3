package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"candidate-collab/internal/metrics"
	"candidate-collab/internal/pkg/logger"
)

type RefreshState int

const (
	StateIdle RefreshState = iota
	StateRefreshing
)

func (s RefreshState) String() string {
	if s == StateRefreshing {
		return "refreshing"
	}
	return "idle"
}

// Tokens is what a successful refresh hands back. An empty RefreshToken keeps
// the current one.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Refresher exchanges a refresh token for a new access token.
type Refresher func(ctx context.Context, refreshToken string) (Tokens, error)

type outcome struct {
	token string
	err   error
}

// Coordinator owns the credentials of one signed-in session and makes sure at
// most one refresh call is outstanding. Requests that hit an expired token while
// a refresh is running queue behind it and are resumed in arrival order.
type Coordinator struct {
	mu          sync.Mutex
	state       RefreshState
	creds       Credentials
	waiters     []chan outcome
	generation  uint64
	invalidated bool
	expired     bool

	store        CredentialStore
	refresher    Refresher
	timeout      time.Duration
	notifier     Notifier
	onInvalidate []func()
	metrics      *metrics.Session
	log          logger.ILogger
}

type CoordinatorOption func(*Coordinator)

// WithRefreshTimeout bounds every refresh call. A timeout counts as a failed refresh.
func WithRefreshTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.timeout = d }
}

func WithNotifier(n Notifier) CoordinatorOption {
	return func(c *Coordinator) { c.notifier = n }
}

func WithSessionMetrics(m *metrics.Session) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

func WithLogger(log logger.ILogger) CoordinatorOption {
	return func(c *Coordinator) { c.log = log }
}

// OnInvalidate registers fn to run once per invalidation, after credentials are cleared.
func OnInvalidate(fn func()) CoordinatorOption {
	return func(c *Coordinator) { c.onInvalidate = append(c.onInvalidate, fn) }
}

func NewCoordinator(store CredentialStore, refresher Refresher, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:       store,
		refresher:   refresher,
		timeout:     10 * time.Second,
		invalidated: true,
		metrics:   metrics.NewSession(nil),
		log:       logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = NewLogNotifier(c.log)
	}
	return c
}

// SetRefresher swaps the refresh call. The transport installs itself here
// because it is built after the coordinator.
func (c *Coordinator) SetRefresher(r Refresher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresher = r
}

// OnInvalidate adds a callback after construction.
func (c *Coordinator) OnInvalidate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onInvalidate = append(c.onInvalidate, fn)
}

// Restore loads persisted credentials, if any.
func (c *Coordinator) Restore(ctx context.Context) error {
	creds, err := c.store.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
	c.invalidated = creds.Empty()
	c.expired = false
	return nil
}

// SetCredentials replaces the session after a login or signup. Any queued
// requests resume with the new access token.
func (c *Coordinator) SetCredentials(ctx context.Context, creds Credentials) error {
	c.mu.Lock()
	if err := c.store.Save(ctx, creds); err != nil {
		c.mu.Unlock()
		return err
	}
	c.creds = creds
	c.invalidated = false
	c.expired = false
	c.generation++
	c.state = StateIdle
	waiters := c.takeWaiters()
	c.mu.Unlock()

	for _, w := range waiters {
		w <- outcome{token: creds.AccessToken}
	}
	return nil
}

// SignOut clears credentials without treating it as an expired session:
// no message and no invalidation callback.
func (c *Coordinator) SignOut(ctx context.Context) error {
	c.mu.Lock()
	c.creds = Credentials{}
	c.invalidated = true
	c.expired = false
	c.generation++
	c.state = StateIdle
	waiters := c.takeWaiters()
	err := c.store.Clear(ctx)
	c.mu.Unlock()

	for _, w := range waiters {
		w <- outcome{err: sessionExpired("", nil)}
	}
	return err
}

func (c *Coordinator) Credentials() Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds
}

func (c *Coordinator) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds.AccessToken
}

func (c *Coordinator) State() RefreshState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending is the number of requests queued behind the running refresh.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Await is called by a request that got a 401 after being sent with sentWith.
// It returns the token to retry with or a SessionExpired error. Without any
// credentials there is nothing to repair and it returns ErrNoSession.
//
// If the current token already differs from sentWith, a refresh finished after
// the request left and the current token is returned without a new refresh.
// Otherwise the caller either starts the refresh or queues behind the running one.
func (c *Coordinator) Await(ctx context.Context, sentWith string) (string, error) {
	c.mu.Lock()

	if c.state == StateIdle {
		if c.creds.AccessToken != "" && c.creds.AccessToken != sentWith {
			token := c.creds.AccessToken
			c.mu.Unlock()
			c.metrics.StaleRetries.Inc()
			return token, nil
		}
		if c.creds.Empty() {
			expired := c.expired
			c.mu.Unlock()
			if expired {
				return "", sessionExpired("", nil)
			}
			return "", ErrNoSession
		}
		if c.creds.RefreshToken == "" || c.refresher == nil {
			gen := c.generation
			c.mu.Unlock()
			c.fail(gen, errors.New("no refresh token available"))
			return "", sessionExpired("", nil)
		}

		c.state = StateRefreshing
		gen := c.generation
		refreshToken := c.creds.RefreshToken
		refresher := c.refresher
		ch := c.enqueue()
		c.mu.Unlock()

		c.log.Info("SESSION", "Access token rejected, refreshing", nil)
		go c.runRefresh(gen, refresher, refreshToken)
		return c.wait(ctx, ch)
	}

	ch := c.enqueue()
	c.mu.Unlock()
	c.metrics.QueuedWaiters.Inc()
	return c.wait(ctx, ch)
}

// Invalidate ends the session everywhere: credentials are cleared, queued
// requests fail and the invalidation callbacks run. Repeated calls do nothing
// until the next login.
func (c *Coordinator) Invalidate() {
	c.fail(c.currentGeneration(), nil)
}

func (c *Coordinator) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// enqueue must be called with mu held.
func (c *Coordinator) enqueue() chan outcome {
	ch := make(chan outcome, 1)
	c.waiters = append(c.waiters, ch)
	return ch
}

// takeWaiters must be called with mu held.
func (c *Coordinator) takeWaiters() []chan outcome {
	waiters := c.waiters
	c.waiters = nil
	return waiters
}

func (c *Coordinator) wait(ctx context.Context, ch <-chan outcome) (string, error) {
	select {
	case o := <-ch:
		return o.token, o.err
	case <-ctx.Done():
		return "", networkError(ctx.Err())
	}
}

func (c *Coordinator) runRefresh(gen uint64, refresher Refresher, refreshToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	tokens, err := refresher(ctx, refreshToken)
	if err == nil && tokens.AccessToken == "" {
		err = errors.New("refresh returned an empty access token")
	}
	if err != nil {
		c.metrics.RefreshCalls.WithLabelValues("failure").Inc()
		c.log.Warn("SESSION", "Token refresh failed", map[string]interface{}{"error": err.Error()})
		c.fail(gen, err)
		return
	}

	c.metrics.RefreshCalls.WithLabelValues("success").Inc()
	c.succeed(gen, tokens)
}

func (c *Coordinator) succeed(gen uint64, tokens Tokens) {
	c.mu.Lock()
	if gen != c.generation {
		// The session changed underneath the refresh; its result is stale.
		c.mu.Unlock()
		return
	}

	creds := c.creds
	creds.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		creds.RefreshToken = tokens.RefreshToken
	}
	if err := c.store.Save(context.Background(), creds); err != nil {
		c.log.Error("SESSION", "Failed to persist refreshed token", map[string]interface{}{"error": err.Error()})
	}
	c.creds = creds
	c.state = StateIdle
	waiters := c.takeWaiters()
	c.mu.Unlock()

	c.log.Info("SESSION", "Token refreshed", map[string]interface{}{"resumed": len(waiters)})
	for _, w := range waiters {
		w <- outcome{token: tokens.AccessToken}
	}
}

func (c *Coordinator) fail(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}

	first := !c.invalidated
	c.invalidated = true
	c.expired = c.expired || first
	c.generation++
	c.state = StateIdle
	c.creds = Credentials{}
	waiters := c.takeWaiters()
	var clearErr error
	if first {
		clearErr = c.store.Clear(context.Background())
	}
	callbacks := append([]func(){}, c.onInvalidate...)
	c.mu.Unlock()

	if clearErr != nil {
		c.log.Error("SESSION", "Failed to clear credentials", map[string]interface{}{"error": clearErr.Error()})
	}

	message := expiredMessage(cause)
	expired := sessionExpired(message, cause)
	for _, w := range waiters {
		w <- outcome{err: expired}
	}

	if !first {
		return
	}
	c.metrics.Invalidations.Inc()
	c.log.Warn("SESSION", "Session invalidated", map[string]interface{}{"rejected": len(waiters)})
	c.notifier.Notify(expired.Message)
	for _, fn := range callbacks {
		fn()
	}
}

// expiredMessage prefers what the refresh endpoint said, when it said anything.
func expiredMessage(cause error) string {
	var e *Error
	if errors.As(cause, &e) && e.Status != 0 && e.Message != "" {
		return e.Message
	}
	return ""
}
