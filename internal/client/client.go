// Package client assembles the SDK pieces into one signed-in user's view:
// session transport, realtime channel, notifications, user directory and note
// threads.
package client

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"candidate-collab/internal/config"
	"candidate-collab/internal/directory"
	"candidate-collab/internal/dto"
	"candidate-collab/internal/metrics"
	"candidate-collab/internal/model"
	"candidate-collab/internal/notestream"
	"candidate-collab/internal/notification"
	"candidate-collab/internal/pkg/logger"
	"candidate-collab/internal/realtime"
	"candidate-collab/internal/session"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrNotSignedIn = errors.New("client: not signed in")

type Client struct {
	Coordinator   *session.Coordinator
	Transport     *session.Transport
	API           *API
	Channel       *realtime.Channel
	Notifications *notification.Store
	Directory     *directory.Directory

	log    logger.ILogger
	mu     sync.Mutex
	cancel context.CancelFunc
}

type options struct {
	store      session.CredentialStore
	notifier   session.Notifier
	registry   prometheus.Registerer
	log        logger.ILogger
	navigator  notification.Navigator
	dialer     realtime.Dialer
	httpClient *http.Client
	backoff    func() backoff.BackOff
}

type Option func(*options)

func WithCredentialStore(s session.CredentialStore) Option {
	return func(o *options) { o.store = s }
}

func WithNotifier(n session.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func WithRegistry(r prometheus.Registerer) Option {
	return func(o *options) { o.registry = r }
}

func WithLogger(log logger.ILogger) Option {
	return func(o *options) { o.log = log }
}

func WithNavigator(n notification.Navigator) Option {
	return func(o *options) { o.navigator = n }
}

func WithDialer(d realtime.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithReconnectBackoff(fn func() backoff.BackOff) Option {
	return func(o *options) { o.backoff = fn }
}

// New wires a client from cfg. Credentials default to an in-memory store.
func New(cfg config.ClientConfig, opts ...Option) *Client {
	o := options{
		store: session.NewMemoryStore(),
		log:   logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.notifier == nil {
		o.notifier = session.NewLogNotifier(o.log)
	}
	if o.dialer == nil {
		o.dialer = realtime.NewWebsocketDialer(cfg.WebsocketURL)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	sessionMetrics := metrics.NewSession(o.registry)
	c := &Client{log: o.log}

	c.Coordinator = session.NewCoordinator(o.store, nil,
		session.WithRefreshTimeout(cfg.RefreshTimeout),
		session.WithNotifier(o.notifier),
		session.WithSessionMetrics(sessionMetrics),
		session.WithLogger(o.log),
		session.OnInvalidate(c.stop),
	)
	c.Transport = session.NewTransport(cfg.APIBaseURL, c.Coordinator,
		session.WithHTTPClient(o.httpClient),
		session.WithTransportNotifier(o.notifier),
		session.WithTransportMetrics(sessionMetrics),
		session.WithTransportLogger(o.log),
	)
	c.API = NewAPI(c.Transport)

	channelOpts := []realtime.Option{
		realtime.WithMetrics(metrics.NewRealtime(o.registry)),
		realtime.WithLogger(o.log),
	}
	if o.backoff != nil {
		channelOpts = append(channelOpts, realtime.WithBackoff(o.backoff))
	}
	c.Channel = realtime.NewChannel(o.dialer, c.Coordinator, channelOpts...)

	storeOpts := []notification.Option{notification.WithLogger(o.log)}
	if o.navigator != nil {
		storeOpts = append(storeOpts, notification.WithNavigator(o.navigator))
	}
	c.Notifications = notification.NewStore(c.API, storeOpts...)
	c.Directory = directory.New(c.API, cfg.DirectoryTTL)
	return c
}

// Restore picks up credentials saved by an earlier process.
func (c *Client) Restore(ctx context.Context) error {
	return c.Coordinator.Restore(ctx)
}

func (c *Client) Login(ctx context.Context, email, password string) (*model.UserProfile, error) {
	return c.Transport.Login(ctx, email, password)
}

func (c *Client) Signup(ctx context.Context, req dto.SignupRequest) (*model.UserProfile, error) {
	return c.Transport.Signup(ctx, req)
}

// Logout stops the realtime channel and clears the session.
func (c *Client) Logout(ctx context.Context) error {
	c.stop()
	return c.Transport.Logout(ctx)
}

func (c *Client) User() *model.UserProfile {
	return c.Transport.CurrentUser()
}

// Run joins the user's personal room, wires notify events into the
// notification store, loads the current notifications and then keeps the
// realtime channel connected until ctx is done or the session is invalidated.
func (c *Client) Run(ctx context.Context) error {
	user := c.User()
	if user == nil {
		return ErrNotSignedIn
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	sub := realtime.Subscribe(c.Channel, model.EventNotify, func(p model.NotifyPayload) {
		if err := c.Notifications.HandleNotify(ctx, p); err != nil {
			c.log.Warn("CLIENT", "Notify handling incomplete", map[string]interface{}{"error": err.Error()})
		}
	})
	defer c.Channel.Off(sub)

	c.Channel.JoinRoom(user.ID)
	if err := c.Notifications.Refresh(ctx); err != nil {
		c.log.Warn("CLIENT", "Initial notification fetch failed", map[string]interface{}{"error": err.Error()})
	}

	err := c.Channel.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// OpenThread starts a note stream for candidateID as the signed-in user.
func (c *Client) OpenThread(ctx context.Context, candidateID string, opts ...notestream.Option) (*notestream.Stream, error) {
	user := c.User()
	if user == nil {
		return nil, ErrNotSignedIn
	}
	opts = append([]notestream.Option{notestream.WithLogger(c.log)}, opts...)
	stream := notestream.New(c.API, c.Channel, candidateID, user.Username, opts...)
	if err := stream.Start(ctx); err != nil {
		return stream, err
	}
	return stream, nil
}

// SendNote posts a note to a candidate thread over the realtime channel.
// It reports false when no connection was up and the note was dropped.
func (c *Client) SendNote(candidateID, content string) bool {
	user := c.User()
	if user == nil {
		return false
	}
	return c.Channel.Send(model.EventSendMessage, model.SendMessagePayload{
		CandidateID: candidateID,
		Content:     content,
		SenderID:    user.ID,
	})
}

func (c *Client) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}
