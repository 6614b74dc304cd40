package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gatherly/gatherly/internal/auth"
	"github.com/gatherly/gatherly/internal/cache"
	"github.com/gatherly/gatherly/internal/clock"
	"github.com/gatherly/gatherly/internal/config"
	"github.com/gatherly/gatherly/internal/domain/event"
	"github.com/gatherly/gatherly/internal/engine"
	"github.com/gatherly/gatherly/internal/http/handlers"
	"github.com/gatherly/gatherly/internal/http/middlewares"
	"github.com/gatherly/gatherly/internal/observability"
	"github.com/gatherly/gatherly/internal/repo/postgres"
	"github.com/gatherly/gatherly/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, clk clock.Clock, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	// metrics registry
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	prom := observability.NewProm(promReg)

	// listing cache: shared redis when configured, per-process otherwise
	var listCache cache.Store
	var redisCache *cache.Redis

	if cfg.RedisAddr != "" {
		redisCache = cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      5 * time.Second,
		})
		listCache = redisCache
	} else {
		listCache = cache.New(5 * time.Second)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("gatherly"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(prom.GinHandleMiddleware())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	r.Use(middlewares.RequireJSON()) // Require JSON content type for post and put requests.

	readyCheck := func() error {
		if pool != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()
			err := pool.Ping(ctx)

			if err != nil {
				return err
			}
		}

		if redisCache != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()

			err := redisCache.Ping(ctx)

			if err != nil {
				return err
			}
		}

		return nil
	}

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool)
	eventsRepo := postgres.NewEventsRepo(pool)
	registrationsRepo := postgres.NewRegistrationsRepo(pool, prom)
	statsRepo := postgres.NewStatsRepo(pool, prom)

	policy := event.Policy{
		MinLeadTime:    cfg.MinLeadTime,
		MaxLeadTime:    cfg.MaxLeadTime,
		MinCapacity:    cfg.MinCapacity,
		MaxCapacity:    cfg.MaxCapacity,
		ConflictWindow: cfg.ConflictWindow,
	}

	eventsSvc := service.NewEvents(eventsRepo, registrationsRepo, clk, policy)
	statsSvc := service.NewStats(statsRepo, clk)
	eng := engine.New(pool, eventsRepo, registrationsRepo, clk, prom, log)

	// JWT Manager
	jwtManager := auth.NewManager(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
	)

	dev := cfg.Env == "dev"

	// wire up handlers
	h := handlers.NewHealthHandler(cfg.Env, readyCheck)
	authHandler := handlers.NewAuthHandler(usersRepo, jwtManager, cfg)
	eventsHandler := handlers.NewEventsHandler(eventsSvc, listCache, dev)
	registrationsHandler := handlers.NewRegistrationsHandler(eng, listCache, dev)
	statsHandler := handlers.NewStatsHandler(statsSvc, dev)
	authMiddleware := middlewares.NewAuthMiddleware(jwtManager)

	// rate limiter middleware

	generalLimiter := middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	authLimiter := middlewares.NewRateLimiter(cfg.AuthRPS, cfg.AuthBurst)

	// unauthenticated plumbing
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.Use(generalLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))

	api.POST("/auth/signup", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.SignUp)
	api.POST("/auth/login", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Login)

	// public browsing, viewer-aware when a token is present
	public := api.Group("/")
	public.Use(authMiddleware.OptionalAuth())

	{
		public.GET("/events/upcoming", eventsHandler.ListUpcoming)
		public.GET("/events/:id", eventsHandler.GetEventByID)
		public.GET("/events/:id/stats", statsHandler.GetEventStats)
	}

	// authenticated routes

	authed := api.Group("/")

	authed.Use(authMiddleware.RequireAuth())

	{
		authed.POST("/events", eventsHandler.CreateEvent)
		authed.PUT("/events/:id", eventsHandler.UpdateEvent)
		authed.DELETE("/events/:id", eventsHandler.DeleteEvent)
		authed.POST("/events/:id/register", registrationsHandler.Register)
		authed.DELETE("/events/:id/register/:userId", registrationsHandler.Cancel)
	}

	// admin facilities

	admin := authed.Group("/")
	admin.Use(authMiddleware.RequireRole("admin"))

	{
		admin.POST("/events/:id/register/batch", registrationsHandler.RegisterBatch)
	}

	return r
}
