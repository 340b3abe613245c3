package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"candidate-collab/internal/config"
	"candidate-collab/internal/controller"
	"candidate-collab/internal/handler"
	"candidate-collab/internal/metrics"
	"candidate-collab/internal/pkg/logger"
	"candidate-collab/internal/pkg/serverutils"
	"candidate-collab/internal/repository/contract"
	"candidate-collab/internal/repository/memory"
	"candidate-collab/internal/repository/redisstore"
	"candidate-collab/internal/service"
	"candidate-collab/internal/websocket"
	"candidate-collab/pkg/events"
	pktNats "candidate-collab/pkg/nats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	AuthController controller.IAuthController
	NoteController controller.INoteController
	UserController controller.IUserController

	// Background Services (started by Start)
	NotificationService service.INotificationService

	// WebSockets & Notification
	NotificationHandler *handler.NotificationHandler
	WebSocketHub        *websocket.Hub

	Candidates contract.CandidateRepository
	Registry   *prometheus.Registry
	Logger     logger.ILogger

	closers []func() error
}

// NewContainer wires the backend from cfg. An empty LogFilePath disables
// logging; an empty RedisURL keeps refresh sessions in memory and disables
// cross-instance fanout.
func NewContainer(cfg *config.Config) (*Container, error) {
	c := &Container{Registry: prometheus.NewRegistry()}
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 1. Logging
	var sysLogger, wsLogger logger.ILogger = logger.NewNopLogger(), logger.NewNopLogger()
	if cfg.App.LogFilePath != "" {
		sysLogger = logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
		c.closers = append(c.closers, syncer(sysLogger))
	}
	if cfg.App.RealtimeLogFilePath != "" {
		wsLogger = logger.NewIsolatedLogger(cfg.App.RealtimeLogFilePath)
		c.closers = append(c.closers, syncer(wsLogger))
	}
	c.Logger = sysLogger

	// 2. Event Bus
	var bus events.Bus
	if cfg.App.EventBus == "nats" {
		natsBus, err := pktNats.NewBus(cfg.App.NatsURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		bus = natsBus
		log.Printf("[INFO] Using event bus: NATS (%s)", cfg.App.NatsURL)
	} else {
		bus = events.NewLocalBus()
		log.Printf("[INFO] Using event bus: in-process")
	}
	c.closers = append(c.closers, bus.Close)

	// 3. Redis (optional)
	var rdb *redis.Client
	var sessions contract.RefreshSessionRepository = memory.NewRefreshSessionRepository()
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v. Using in-memory refresh sessions", err)
			rdb.Close()
			rdb = nil
		} else {
			sessions = redisstore.NewRefreshSessionRepositoryWithClient(rdb)
			c.closers = append(c.closers, rdb.Close)
		}
	}

	// 4. Repositories
	users := memory.NewUserRepository()
	notes := memory.NewNoteRepository()
	notifications := memory.NewNotificationRepository()
	c.Candidates = memory.NewCandidateRepository()

	// 5. WebSocket Hub
	hubMetrics := metrics.NewHub(c.Registry)
	c.WebSocketHub = websocket.NewHub(rdb, hubMetrics, wsLogger)

	// 6. Services
	tokens := serverutils.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	authService := service.NewAuthService(users, sessions, tokens, cfg.Auth.RefreshTokenTTL, sysLogger)
	userService := service.NewUserService(users)
	noteService := service.NewNoteService(notes, users, userService, c.WebSocketHub, bus, hubMetrics, sysLogger)
	c.NotificationService = service.NewNotificationService(notifications, users, c.Candidates, bus, c.WebSocketHub, wsLogger)

	handler.NewRealtimeHandler(noteService, users, wsLogger).Register(c.WebSocketHub)

	// 7. Controllers
	auth := serverutils.JwtMiddleware(tokens)
	c.AuthController = controller.NewAuthController(authService)
	c.NoteController = controller.NewNoteController(noteService, auth)
	c.UserController = controller.NewUserController(userService, auth)
	c.NotificationHandler = handler.NewNotificationHandler(c.NotificationService, c.WebSocketHub, tokens, wsLogger)

	return c, nil
}

// Start runs the hub and the notification consumer until ctx is done.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)
	return c.NotificationService.Start(ctx)
}

func (c *Container) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// syncer flushes l on close. Sync errors on a terminal stdout are expected and ignored.
func syncer(l logger.ILogger) func() error {
	return func() error {
		_ = l.Sync()
		return nil
	}
}
