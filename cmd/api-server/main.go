package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/appointment-engine/internal/api"
	"github.com/hackgods/appointment-engine/internal/appointment"
	"github.com/hackgods/appointment-engine/internal/auth"
	"github.com/hackgods/appointment-engine/internal/config"
	"github.com/hackgods/appointment-engine/internal/db"
	"github.com/hackgods/appointment-engine/internal/logger"
	redisclient "github.com/hackgods/appointment-engine/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg.Env, "api-server")
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("store", cfg.StoreDriver),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo   appointment.Repository
		pgPool *pgxpool.Pool
	)
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.Open(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		cancelPg()
		if err != nil {
			lg.Fatal("postgres connection error", zap.Error(err))
		}
		defer pgPool.Close()
		lg.Info("connected to Postgres")
		repo = appointment.NewPgRepository(pgPool)
	default:
		lg.Warn("using in-memory store, data is lost on restart")
		repo = appointment.NewMemoryRepository()
	}

	var (
		rdb     *redis.Client
		locker  = redisclient.NewNoopLocker()
		limiter api.Limiter = api.NewLocalLimiter(cfg.RateLimitPerMinute)
	)
	if cfg.RedisEnabled {
		rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			lg.Fatal("redis connection error", zap.Error(err))
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				lg.Warn("error closing redis", zap.Error(err))
			}
		}()
		lg.Info("connected to Redis")
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		limiter = redisclient.NewFixedWindowLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "rl:availability")
	}

	svc := appointment.NewService(repo, locker, lg)

	trustedProxies, err := api.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		lg.Fatal("invalid TRUSTED_PROXIES", zap.Error(err))
	}

	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		Auth:           auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer),
		Limiter:        limiter,
		Logger:         lg,
		PgPool:         pgPool,
		Redis:          rdb,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		TrustedProxies: trustedProxies,
		Env:            cfg.Env,
		Version:        cfg.Version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http server error", zap.Error(err))
			stop()
		}
	}()
	lg.Info("listening", zap.String("addr", server.Addr))

	<-rootCtx.Done()

	lg.Info("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}
