package bootstrap

import (
	"context"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/user-console/internal/api"
	"github.com/baechuer/user-console/internal/api/handlers"
	"github.com/baechuer/user-console/internal/audit"
	"github.com/baechuer/user-console/internal/config"
	"github.com/baechuer/user-console/internal/downstream"
	"github.com/baechuer/user-console/internal/logger"
	"github.com/baechuer/user-console/internal/session"
	"github.com/baechuer/user-console/internal/tracing"
	"github.com/baechuer/user-console/internal/views"
)

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewRedis func(addr, password string, db int) *goredis.Client

	NewPublisher func(rabbitURL string) (Publisher, error)
}

// Publisher is an audit sink that owns a connection.
type Publisher interface {
	audit.Publisher
	Ping(ctx context.Context) error
	Close() error
}

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewRedis: func(addr, password string, db int) *goredis.Client {
			return goredis.NewClient(&goredis.Options{
				Addr:     addr,
				Password: password,
				DB:       db,
			})
		},
		NewPublisher: func(url string) (Publisher, error) {
			return audit.NewRabbitPublisher(url)
		},
	}
}

func newServer(deps Deps) (*http.Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	var cleanupFns []func()

	// 1) tracing
	tp, err := tracing.InitTracing(context.Background(), tracing.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanupFns = append(cleanupFns, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	})

	var checkers []handlers.ReadinessChecker

	// 2) redis (best-effort)
	var rdb *goredis.Client
	if cfg.RedisAddr != "" && deps.NewRedis != nil {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.Ping(ctx).Err()
		cancel()

		if err != nil {
			logger.Log.Warn().Err(err).Msg("redis unavailable; sessions kept in memory")
			_ = c.Close()
		} else {
			logger.Log.Info().Str("addr", cfg.RedisAddr).Msg("redis connected")
			rdb = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
		}
	}

	// 3) session store
	var store session.Store
	if rdb != nil {
		store = session.NewRedisStore(rdb)
	} else {
		store = session.NewMemoryStore()
	}
	sessions := session.NewManager(store, session.Options{
		CookieName: cfg.SessionCookie,
		Secure:     cfg.CookieSecure,
		TTL:        cfg.SessionTTL,
	})
	checkers = append(checkers, handlers.NewPingChecker("session_store", sessions.Ping))

	// 4) audit publisher
	var pub audit.Publisher = audit.LogPublisher{}
	if cfg.RabbitURL != "" && deps.NewPublisher != nil {
		p, err := deps.NewPublisher(cfg.RabbitURL)
		switch {
		case err == nil:
			pub = p
			checkers = append(checkers, handlers.NewPingChecker("audit_broker", p.Ping))
			cleanupFns = append(cleanupFns, func() { _ = p.Close() })
		case cfg.Env == "dev":
			logger.Log.Warn().Err(err).Msg("rabbitmq unavailable; audit events go to the log")
		default:
			runCleanup(cleanupFns)
			return nil, nil, err
		}
	}

	// 5) remote API clients
	clientCfg := downstream.ClientConfig{
		ReadTimeout:  cfg.DownstreamReadTimeout,
		WriteTimeout: cfg.DownstreamWriteTimeout,
	}
	authAPI := downstream.NewAuthClient(cfg.AuthAPIBaseURL, clientCfg)
	userAPI := downstream.NewUserClient(cfg.UserAPIBaseURL, clientCfg)
	checkers = append(checkers,
		handlers.NewPingChecker("user_api", userAPI.Ping),
		handlers.NewPingChecker("auth_api", authAPI.Ping),
	)

	// 6) views
	renderer, err := views.New(cfg.SnackbarTTL)
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 7) router
	h, err := api.NewRouter(api.Deps{
		Config:   cfg,
		Sessions: sessions,
		Auth:     authAPI,
		Users:    userAPI,
		Views:    renderer,
		Audit:    pub,
		Redis:    rdb,
		Checkers: checkers,
	})
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.DownstreamWriteTimeout + 10*time.Second,
		WriteTimeout:      cfg.DownstreamWriteTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Log.Info().
		Str("env", cfg.Env).
		Bool("redis", rdb != nil).
		Bool("tracing", cfg.TracingEnabled).
		Msg("console wired")

	return srv, func() { runCleanup(cleanupFns) }, nil
}

// runCleanup runs in reverse so later resources close first.
func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
