package scheduler

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"vocero/internal/conversation"
	"vocero/platform/config"
	"vocero/platform/logger"
)

// Worker consumes scheduled tasks inside the API process, where the live
// conversation store is. The scheduler binary only enqueues.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log *logger.Logger
}

// NewWorker builds the asynq consumer bound to the orchestrator.
func NewWorker(cfg config.SchedulerConfig, svc *conversation.Service, log *logger.Logger) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.GetAsynqConcurrency(),
		Queues:      map[string]int{cfg.GetAsynqQueueName(): 1},
		Logger:      asynqLogger{log},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskStuckCallSweep, func(ctx context.Context, _ *asynq.Task) error {
		swept := svc.SweepStuckCalls(ctx)
		if swept > 0 {
			log.Info("stuck call sweep finished", "swept", swept)
		}
		return nil
	})

	return &Worker{srv: srv, mux: mux, log: log}, nil
}

// Run starts the consumer and blocks until Shutdown.
func (w *Worker) Run() error {
	return w.srv.Run(w.mux)
}

// Shutdown drains in-flight tasks and stops the consumer.
func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}

// NewScheduler builds the periodic enqueuer for the scheduler binary.
func NewScheduler(cfg config.SchedulerConfig, log *logger.Logger) (*asynq.Scheduler, error) {
	opt, err := asynq.ParseRedisURI(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	sch := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Logger: asynqLogger{log},
	})
	interval := cfg.GetStuckCallSweepInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	_, err = sch.Register("@every "+interval.String(), NewStuckCallSweepTask(),
		asynq.Queue(cfg.GetAsynqQueueName()))
	if err != nil {
		return nil, err
	}
	return sch, nil
}

// RunTicker is the in-process fallback sweep used when no redis is
// configured. Blocks until the context is cancelled.
func RunTicker(ctx context.Context, interval time.Duration, svc *conversation.Service, log *logger.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if swept := svc.SweepStuckCalls(ctx); swept > 0 {
				log.Info("stuck call sweep finished", "swept", swept)
			}
		}
	}
}

// asynqLogger adapts the structured logger to asynq's logging interface.
type asynqLogger struct {
	log *logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Error(sprint(args...)) }
