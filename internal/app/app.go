package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"photoflow-web/internal/apiclient"
	"photoflow-web/internal/browser"
	"photoflow-web/internal/cache"
	"photoflow-web/internal/config"
	"photoflow-web/internal/database"
	"photoflow-web/internal/event"
	"photoflow-web/internal/guard"
	"photoflow-web/internal/handler"
	"photoflow-web/internal/logger"
	"photoflow-web/internal/middleware"
	"photoflow-web/internal/repository"
	"photoflow-web/internal/router"
	"photoflow-web/internal/telemetry"
	"photoflow-web/internal/tokenstore"
	"photoflow-web/internal/web"
	"photoflow-web/internal/websocket"
)

const (
	serviceName   = "photoflow-web"
	sweepInterval = time.Minute
)

type App struct {
	server       *http.Server
	browsers     *browser.Manager
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.LogFormat, logger.ParseLevel(cfg.LogLevel)))

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{cleanupFuncs: []func(){cancel}}
	fail := func(err error) (*App, error) {
		a.cleanup()
		return nil, err
	}

	shutdownTracing := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Environment,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	})
	a.cleanupFuncs = append(a.cleanupFuncs, func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	})

	backend, ping, err := a.openTokenStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	sealer, err := web.NewSealer(cfg.SessionSecret)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize cookie sealer: %w", err))
	}
	cookies := web.NewCookies(sealer, cfg.CookieSecure || cfg.IsProduction(), cfg.SessionTTL)

	renderer, err := web.NewRenderer()
	if err != nil {
		return fail(fmt.Errorf("failed to parse templates: %w", err))
	}

	bus := event.NewBus()
	go event.LogEvents(ctx, bus, slog.Default())
	hub := websocket.NewHub(bus)
	go hub.Run(ctx)

	browsers := browser.NewManager(backend, browser.Config{
		API: apiclient.Config{
			BaseURL:     cfg.APIBaseURL,
			Timeout:     cfg.APITimeout,
			ProfilePath: cfg.ProfilePath,
			HTTPClient:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		},
		StateTTL: cfg.SessionTTL,
		Events:   bus,
	})
	go browsers.Run(ctx, sweepInterval)
	a.browsers = browsers

	routeGuard := guard.New(guard.DefaultRoutes())
	guardMiddleware := middleware.NewGuardMiddleware(routeGuard, func(r *http.Request) string {
		id, ok := cookies.SessionID(r)
		if !ok {
			return ""
		}
		return browsers.AccessToken(r.Context(), id)
	})

	pages := &handler.Pages{
		Browsers: browsers,
		Cookies:  cookies,
		Renderer: renderer,
		Guard:    routeGuard,
	}

	appRouter := router.New(
		cfg,
		renderer.Error,
		guardMiddleware,
		cookies,
		web.Static(),
		handler.NewAuthHandler(pages),
		handler.NewDashboardHandler(pages),
		handler.NewProfileHandler(pages),
		handler.NewTenantHandler(pages),
		handler.NewAvatarHandler(renderer.Error),
		handler.NewEventsHandler(hub),
		handler.NewHealthHandler(cfg.Environment, cfg.APIBaseURL, ping),
	)

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           otelhttp.NewHandler(appRouter, serviceName),
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	slog.Info("application initialized",
		"token_store", cfg.TokenStore,
		"api_base_url", cfg.APIBaseURL,
		"environment", cfg.Environment,
	)
	return a, nil
}

// openTokenStore connects the backend named by TOKEN_STORE and registers its
// cleanup.
func (a *App) openTokenStore(ctx context.Context, cfg *config.Config) (tokenstore.Backend, handler.StoragePing, error) {
	switch cfg.TokenStore {
	case config.TokenStoreRedis:
		slog.Info("connecting to Redis", "addr", cfg.RedisAddr)
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		a.cleanupFuncs = append(a.cleanupFuncs, func() { _ = client.Close() })

		ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return tokenstore.NewRedisBackend(client, cfg.SessionTTL), ping, nil

	case config.TokenStorePostgres:
		slog.Info("connecting to PostgreSQL")
		db, err := database.New(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.cleanupFuncs = append(a.cleanupFuncs, db.Close)

		if err := db.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		return repository.NewClientStateRepository(db.Pool), db.Health, nil

	default:
		slog.Warn("using in-memory token store; sessions are lost on restart")
		return tokenstore.NewMemoryBackend(), nil, nil
	}
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	// Lets in-flight logout calls reach the API before the backends close.
	a.browsers.Close()
	a.cleanup()

	slog.Info("server stopped")
	return nil
}

// cleanup runs in reverse registration order.
func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}
