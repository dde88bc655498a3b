// Package app builds every service once and owns the process lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"chatsino/internal/bus"
	"chatsino/internal/common"
	"chatsino/internal/config"
	"chatsino/internal/games/roulette"
	"chatsino/internal/gateway"
	"chatsino/internal/handlers"
	"chatsino/internal/middleware"
	"chatsino/internal/models"
	"chatsino/internal/services"
	"chatsino/internal/store"
	"chatsino/internal/subcontrollers"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds how long Shutdown waits for in-flight HTTP requests.
const ShutdownTimeout = 10 * time.Second

type App struct {
	cfg *config.Config
	log *log.Entry

	Store   *store.Store
	Redis   *services.RedisService
	Bus     bus.Bus
	JWT     *services.JWTService
	Tickets *services.TicketService

	Blackjack *services.BlackjackService
	Roulette  *services.RouletteService
	Chat      *services.ChatroomService

	router  *subcontrollers.Router
	gateway *gateway.Gateway
	runner  *services.RoundRunner
	engine  *gin.Engine
	server  *http.Server

	shutdownOnce sync.Once
}

// NewLogger configures logrus the way every component expects: JSON in
// production, text otherwise.
func NewLogger(cfg *config.Config) *log.Logger {
	logger := log.New()
	if cfg.IsProduction() {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
		logger.WithField("log_level", cfg.LogLevel).Warn("unknown log level, using info")
	}
	logger.SetLevel(level)
	return logger
}

// New connects to the store, Redis and the configured bus.
func New(cfg *config.Config, logger *log.Logger) (*App, error) {
	entry := logger.WithField("app", "chatsino")

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	b, err := newBus(cfg, redisService, entry)
	if err != nil {
		_ = redisService.Close()
		_ = st.Close()
		return nil, err
	}
	return NewWithDeps(cfg, entry, st, redisService, b)
}

func newBus(cfg *config.Config, redisService *services.RedisService, logger *log.Entry) (bus.Bus, error) {
	switch cfg.BusDriver {
	case config.BusMemory:
		return bus.NewMemory(logger), nil
	case config.BusRedis:
		return bus.NewRedis(redisService.Client(), logger), nil
	case config.BusNATS:
		n, err := bus.ConnectNATS(cfg.NATSURL, logger)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.BusDriver)
	}
}

// NewWithDeps wires services around already open dependencies. The App takes
// ownership of all three.
func NewWithDeps(cfg *config.Config, logger *log.Entry, st *store.Store, redisService *services.RedisService, b bus.Bus) (*App, error) {
	a := &App{
		cfg:   cfg,
		log:   logger,
		Store: st,
		Redis: redisService,
		Bus:   b,
		JWT:   services.NewJWTService(cfg.JWTSecret),
	}

	tickets, err := services.NewTicketService(redisService, st, cfg.TicketSecret, cfg.TicketTTL, logger)
	if err != nil {
		return nil, err
	}
	a.Tickets = tickets

	a.Blackjack = services.NewBlackjackService(st, st, cfg.DeckCount, logger)
	a.Roulette = services.NewRouletteService(st, st, roulette.Durations{
		TakingBets: cfg.RouletteTakingBets,
		NoMoreBets: cfg.RouletteNoMoreBets,
		Spinning:   cfg.RouletteSpinning,
	}, logger)
	a.Chat = services.NewChatroomService(redisService, services.DefaultChatrooms, logger)

	a.router = subcontrollers.NewRouter(b, logger)
	subcontrollers.RegisterBlackjack(a.router, a.Blackjack)
	subcontrollers.RegisterRoulette(a.router, a.Roulette)
	subcontrollers.RegisterChat(a.router, a.Chat)

	a.gateway = gateway.New(tickets, b, gateway.Options{
		SweepInterval: cfg.SweepInterval,
		OnDisconnect:  a.leaveChatrooms,
	}, logger)
	a.runner = services.NewRoundRunner(a.Roulette, a.router, cfg.RouletteTick, logger)

	a.engine = a.routes()
	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *App) routes() *gin.Engine {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	wsHandler := handlers.NewWebSocketHandler(a.gateway)
	userHandler := handlers.NewUserHandler(a.Store, a.Tickets, a.log)
	gameHandler := handlers.NewGameHandler(a.Blackjack, a.Roulette, a.log)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"store": a.Store,
		"redis": a.Redis,
	})

	r.GET("/healthz", healthHandler.Health)
	r.GET("/ws", wsHandler.HandleWebSocket)

	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware(a.JWT))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.GET("/me/balance", userHandler.GetBalance)
		protected.GET("/me/transactions", userHandler.GetTransactions)
		protected.POST("/ticket",
			middleware.RateLimitMiddleware(a.Redis, "ticket", a.cfg.TicketRateLimit, a.cfg.TicketRateWindow),
			userHandler.GrantTicket)

		games := protected.Group("/games")
		games.Use(middleware.RequirePermission(models.PermissionUser))
		{
			games.GET("/blackjack", gameHandler.GetBlackjack)
			games.GET("/roulette", gameHandler.GetRoulette)
		}
	}
	return r
}

func (a *App) Handler() http.Handler {
	return a.engine
}

func (a *App) Gateway() *gateway.Gateway {
	return a.gateway
}

func (a *App) leaveChatrooms(client models.ClientIdentity) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Chat.LeaveAll(ctx, client.ID); err != nil {
		a.log.WithError(err).WithField("client_id", client.ID).Warn("failed to leave chatrooms on disconnect")
	}
}

// Seed creates the configured clients that do not exist yet.
func (a *App) Seed(ctx context.Context) error {
	for _, entry := range a.cfg.SeedClients {
		username, levelName, hasLevel := strings.Cut(entry, ":")
		level := models.PermissionUser
		if hasLevel {
			parsed, err := models.ParsePermissionLevel(levelName)
			if err != nil {
				return fmt.Errorf("seed client %q: %w", username, err)
			}
			level = parsed
		}
		client, err := a.Store.EnsureClient(ctx, username, level, a.cfg.StartingChips)
		if err != nil {
			return fmt.Errorf("seed client %q: %w", username, err)
		}
		a.log.WithFields(log.Fields{"client_id": client.ID, "username": client.Username}).Debug("client seeded")
	}
	return nil
}

// Start attaches the router and gateway to the bus.
func (a *App) Start() error {
	if err := a.router.Start(); err != nil {
		return err
	}
	return a.gateway.Start()
}

// Run serves HTTP and runs the background loops until ctx is cancelled or
// one of them fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.WithField("addr", a.server.Addr).Info("server starting")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return common.RecoverError(a.log, func() error { return a.gateway.Run(gctx) }, "liveness sweep panicked")
	})
	g.Go(func() error {
		return common.RecoverError(a.log, func() error { return a.runner.Run(gctx) }, "roulette runner panicked")
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		a.Shutdown(shutdownCtx)
		return nil
	})
	return g.Wait()
}

// Shutdown stops intake first, then the background work, then closes the
// connections the App owns. Calls after the first do nothing.
func (a *App) Shutdown(ctx context.Context) {
	a.shutdownOnce.Do(func() {
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.WithError(err).Error("http server forced to shut down")
		}
		a.gateway.Shutdown()
		a.runner.Stop()
		a.router.Stop()
		a.Close()
		a.log.Info("server exited properly")
	})
}

// Close releases the bus, Redis and the store.
func (a *App) Close() {
	if err := a.Bus.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close bus")
	}
	if err := a.Redis.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close redis")
	}
	if err := a.Store.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close store")
	}
}
