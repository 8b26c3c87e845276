package main

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/geocoder89/inventoryhub/internal/accounts"
	"github.com/geocoder89/inventoryhub/internal/auth"
	"github.com/geocoder89/inventoryhub/internal/authz"
	"github.com/geocoder89/inventoryhub/internal/config"
	"github.com/geocoder89/inventoryhub/internal/db"
	httpx "github.com/geocoder89/inventoryhub/internal/http"
	"github.com/geocoder89/inventoryhub/internal/http/middlewares"
	"github.com/geocoder89/inventoryhub/internal/membership"
	"github.com/geocoder89/inventoryhub/internal/observability"
	"github.com/geocoder89/inventoryhub/internal/redisclient"
	"github.com/geocoder89/inventoryhub/internal/repo/postgres"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "inventoryhub-api", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	users := postgres.NewUsersRepo(pool, prom)
	inventories := postgres.NewInventoriesRepo(pool, prom)

	created, err := db.EnsureSeedUser(ctx, users, cfg)
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}
	if created {
		log.Info("seed user created", "email", cfg.SeedUserEmail)
	}

	tokens, err := sessionTokens(cfg, log)
	if err != nil {
		return err
	}

	var limiter middlewares.Limiter
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer rdb.Close()

		limiter = middlewares.NewRedisRateLimiter(rdb.Raw(), cfg.LoginRateLimit, cfg.LoginRateWindow, "ratelimit:login")
	}

	router := httpx.NewRouter(httpx.Deps{
		Config:   cfg,
		Logger:   log,
		Prom:     prom,
		Gatherer: reg,
		Accounts: accounts.NewService(users, tokens, accounts.Options{
			TOTPIssuer: cfg.TOTPIssuer,
			Logger:     log,
			Prom:       prom,
		}),
		Gate:         authz.NewGate(inventories, prom),
		Memberships:  membership.NewManager(inventories, users, log),
		Inventories:  inventories,
		Categories:   postgres.NewCategoriesRepo(pool, prom),
		Things:       postgres.NewThingsRepo(pool, prom),
		LoginLimiter: limiter,
		Ping:         pool.Ping,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("server shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

// sessionTokens loads the configured RSA pair. Development falls back to an
// ephemeral pair so the API starts without key files.
func sessionTokens(cfg config.Config, log *slog.Logger) (*auth.Manager, error) {
	priv, pub, err := auth.LoadKeyPair(
		auth.KeySource{Value: cfg.JWTPrivateKey, Path: cfg.JWTPrivateKeyFile},
		auth.KeySource{Value: cfg.JWTPublicKey, Path: cfg.JWTPublicKeyFile},
	)
	if errors.Is(err, auth.ErrNoKeys) && cfg.IsDevelopment() {
		log.Warn("no JWT keys configured, generating an ephemeral pair")
		priv, pub, err = auth.GenerateKeyPair()
	}
	if err != nil {
		return nil, fmt.Errorf("session keys: %w", err)
	}

	return auth.NewManager(priv, pub, cfg.SessionTTL), nil
}
