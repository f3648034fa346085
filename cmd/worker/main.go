package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kopi/internal/app"
	"github.com/noah-isme/backend-kopi/internal/config"
	"github.com/noah-isme/backend-kopi/internal/events"
	"github.com/noah-isme/backend-kopi/internal/lock"
	"github.com/noah-isme/backend-kopi/internal/membership"
	"github.com/noah-isme/backend-kopi/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, app.Options{Service: "kopi-worker"})
	if err != nil {
		panic(err)
	}
	defer deps.Close(context.Background())
	logger := obs.Component(deps.Logger, "worker")

	members := &membership.Service{
		Q:       membership.NewStore(deps.DB),
		Locker:  lock.Locker{R: deps.Redis, RetryBackoff: cfg.LockRetryBackoff},
		LockTTL: cfg.LockTTL,
		Logger:  obs.Component(deps.Logger, "membership"),
	}

	bus := &events.Bus{
		Store: &events.Store{DB: deps.DB},
		Notifiers: []events.Notifier{
			&events.TaskNotifier{Client: deps.TaskClient, Queue: cfg.AccrualQueue, Retention: 24 * time.Hour},
		},
	}
	relay := events.Relay{
		Bus:      bus,
		Interval: cfg.EventRelayInterval,
		Grace:    cfg.EventRelayGrace,
		Batch:    100,
		Logger:   obs.Component(deps.Logger, "event-relay"),
	}

	srv := asynq.NewServer(deps.RedisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{cfg.AccrualQueue: 1},
		Logger:      asynqLogger{logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(events.TypeMembershipAccrue, members.HandleAccrueTask)

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	logger.Info().Str("queue", cfg.AccrualQueue).Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	go relay.Run(ctx)

	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct {
	zerolog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.Logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.Logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.Logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.Logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.Logger.Fatal().Msg(fmt.Sprint(args...)) }
