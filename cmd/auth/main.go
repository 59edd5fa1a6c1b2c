package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/AminElhag/Liyaqa-sub035/internal/adapter/cache"
	"github.com/AminElhag/Liyaqa-sub035/internal/bootstrap"
	"github.com/AminElhag/Liyaqa-sub035/internal/config"
	httptransport "github.com/AminElhag/Liyaqa-sub035/internal/http"
	"github.com/AminElhag/Liyaqa-sub035/internal/http/handler"
	"github.com/AminElhag/Liyaqa-sub035/internal/http/middleware"
	"github.com/AminElhag/Liyaqa-sub035/internal/jobs"
	"github.com/AminElhag/Liyaqa-sub035/internal/migrations"
	"github.com/AminElhag/Liyaqa-sub035/internal/permission"
	"github.com/AminElhag/Liyaqa-sub035/internal/ratelimit"
	"github.com/AminElhag/Liyaqa-sub035/internal/repository"
	"github.com/AminElhag/Liyaqa-sub035/internal/server"
	"github.com/AminElhag/Liyaqa-sub035/internal/service"
	"github.com/AminElhag/Liyaqa-sub035/internal/telemetry"
	"github.com/AminElhag/Liyaqa-sub035/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newUserRepository,
			newPermissionRepository,
			newRefreshTokenRepository,
			newRateLimitStore,
			newIssuer,
			newValidator,
			newRateLimiter,
			newThrottle,
			permission.NewResolver,
			service.NewAuthService,
			handler.NewAuthHandler,
			handler.NewPermissionHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, runMigrations, bootstrap.Seed, startSweeper, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newPermissionRepository(pool *pgxpool.Pool) repository.PermissionRepository {
	return repository.NewPostgresPermissionRepo(pool)
}

func newRefreshTokenRepository(pool *pgxpool.Pool, node *snowflake.Node) repository.RefreshTokenRepository {
	return repository.NewPostgresRefreshTokenRepo(pool, node)
}

// newRateLimitStore picks Redis when configured and falls back to Postgres.
// Both enforce the same atomic check-and-increment contract.
func newRateLimitStore(lc fx.Lifecycle, cfg config.Config, pool *pgxpool.Pool, node *snowflake.Node, logger *zap.Logger) (ratelimit.Store, error) {
	if cfg.RedisAddr == "" {
		return repository.NewPostgresRateLimitRepo(pool, node), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	logger.Info("rate limit store: redis", zap.String("addr", cfg.RedisAddr))
	return cacheadapter.NewRedisRateLimitStore(client, cfg.RateLimitWindow), nil
}

func newIssuer(cfg config.Config) *token.Issuer {
	return token.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}

func newValidator(cfg config.Config) *token.Validator {
	return token.NewValidator([]byte(cfg.JWTSecret), cfg.JWTIssuer)
}

func newRateLimiter(store ratelimit.Store, cfg config.Config) *ratelimit.Limiter {
	return ratelimit.New(store, cfg.RateLimitWindow, map[ratelimit.Tier]int{
		ratelimit.TierAuth:     cfg.RateLimitAuth,
		ratelimit.TierAPIRead:  cfg.RateLimitAPIRead,
		ratelimit.TierAPIWrite: cfg.RateLimitAPIWrite,
	})
}

func newThrottle(cfg config.Config) *middleware.Throttle {
	return middleware.NewThrottle(cfg.ThrottleRPM)
}

func newAuthMiddleware(validator *token.Validator, resolver *permission.Resolver, logger *zap.Logger) *middleware.Auth {
	return &middleware.Auth{Validator: validator, Resolver: resolver, Logger: logger}
}

func runMigrations(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := migrations.Run(ctx, cfg.DatabaseURL); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			logger.Info("migrations applied")
			return nil
		},
	})
}

func startSweeper(lc fx.Lifecycle, cfg config.Config, tokens repository.RefreshTokenRepository, limiter *ratelimit.Limiter, logger *zap.Logger) {
	sweeper := jobs.NewSweeper(tokens, limiter, cfg.SweepInterval, logger)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sweeper.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return sweeper.Stop(ctx)
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			logger.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
