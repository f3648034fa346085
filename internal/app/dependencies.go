package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kopi/internal/config"
	"github.com/noah-isme/backend-kopi/internal/db"
	"github.com/noah-isme/backend-kopi/internal/obs"
)

// Dependencies holds the process-wide clients shared by the API, the worker and the tools.
type Dependencies struct {
	Config     *config.Config
	Logger     zerolog.Logger
	DB         *pgxpool.Pool
	Redis      *redis.Client
	RedisOpt   asynq.RedisConnOpt
	TaskClient *asynq.Client
	Registry   prometheus.Registerer

	closers []func(context.Context) error
}

// Options tunes New for a particular binary.
type Options struct {
	// Service names the process in logs, traces and application_name.
	Service string
	// Migrate applies embedded migrations before connecting.
	Migrate bool
	// SkipTaskClient leaves TaskClient nil for processes that never enqueue.
	SkipTaskClient bool
}

// New initialises logging, tracing, metrics, Postgres, Redis and the asynq
// client. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	d := &Dependencies{
		Config:   cfg,
		Logger:   obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("service", opts.Service).Str("env", cfg.AppEnv).Logger(),
		Registry: prometheus.DefaultRegisterer,
	}
	if cfg.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, d.Registry)
	}
	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   opts.Service,
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      cfg.TracingExporter,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			d.Logger.Error().Err(err).Msg("initialise tracing")
		} else {
			d.closers = append(d.closers, shutdown)
		}
	}

	if opts.Migrate {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			d.Close(ctx)
			return nil, err
		}
		d.Logger.Info().Msg("migrations applied")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.Connect(connectCtx, cfg.DatabaseURL, opts.Service)
	if err != nil {
		d.Close(ctx)
		return nil, err
	}
	d.DB = pool
	d.closers = append(d.closers, func(context.Context) error { pool.Close(); return nil })

	rdb, err := NewRedis(connectCtx, cfg, d.Logger)
	if err != nil {
		d.Close(ctx)
		return nil, err
	}
	d.Redis = rdb
	d.closers = append(d.closers, func(context.Context) error { return rdb.Close() })

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		d.Close(ctx)
		return nil, fmt.Errorf("parse redis uri for tasks: %w", err)
	}
	d.RedisOpt = redisOpt
	if !opts.SkipTaskClient {
		client := asynq.NewClient(redisOpt)
		d.TaskClient = client
		d.closers = append(d.closers, func(context.Context) error { return client.Close() })
	}
	return d, nil
}

// NewRedis opens an instrumented Redis client and pings it.
func NewRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Close releases resources in reverse order of acquisition.
func (d *Dependencies) Close(ctx context.Context) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			d.Logger.Error().Err(err).Msg("close dependency")
		}
	}
	d.closers = nil
}
