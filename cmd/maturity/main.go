package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ougirez/maturity/internal/api"
	"github.com/ougirez/maturity/internal/pkg/config"
	"github.com/ougirez/maturity/internal/pkg/events"
	"github.com/ougirez/maturity/internal/pkg/logger"
	"github.com/ougirez/maturity/internal/pkg/store"
	"github.com/ougirez/maturity/internal/service/access"
	"github.com/ougirez/maturity/internal/service/calculation"
	"github.com/ougirez/maturity/internal/service/framework"
	"github.com/ougirez/maturity/internal/service/review"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := connectPostgres(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal(ctx, err)
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		logger.Fatal(ctx, err)
	}
	st := store.NewStore(pool)

	hub := events.NewHub()
	go events.Audit(ctx, hub.Subscribe(256))
	publisher := events.Multi{hub}
	if cfg.Redis.Addr != "" {
		client, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal(ctx, err)
		}
		defer client.Close()
		publisher = append(publisher, events.NewRedisPublisher(client, cfg.Redis.Channel))
	}

	resolver := access.NewResolver(st)
	if err := resolver.Refresh(ctx); err != nil {
		logger.Fatal(ctx, err)
	}

	svc := api.NewAPIService(api.Options{
		Users:       st,
		Resolver:    resolver,
		Review:      review.NewService(st, resolver, publisher, cfg.Review.CommitteeRosterSize),
		Framework:   framework.NewService(st, resolver),
		Calculation: calculation.NewService(st, resolver, cfg.Calculation.Workers),
	})

	go svc.Serve(cfg.HTTP.Addr)
	logger.Infof(ctx, "listening on %s", cfg.HTTP.Addr)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Errorf(shutdownCtx, "shutdown: %v", err)
	}
}

func connectPostgres(ctx context.Context, cfg config.Postgres) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	ping := func() error {
		if err := pool.Ping(ctx); err != nil {
			logger.Warnf(ctx, "postgres is not ready: %v", err)
			return err
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.ConnectRetries), ctx)
	if err := backoff.Retry(ping, policy); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

func connectRedis(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})

	ping := func() error {
		return client.Ping(ctx).Err()
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(ping, policy); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
