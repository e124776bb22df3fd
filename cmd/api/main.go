package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"vocero/internal/calendar"
	"vocero/internal/calllog"
	"vocero/internal/conversation"
	"vocero/internal/email"
	"vocero/internal/events"
	apphttp "vocero/internal/http"
	"vocero/internal/http/router"
	"vocero/internal/intent"
	"vocero/internal/messages"
	"vocero/internal/messenger"
	"vocero/internal/places"
	"vocero/internal/scheduler"
	"vocero/internal/summary"
	"vocero/internal/telephony"
	"vocero/internal/transcripts"
	"vocero/internal/webhook"
	"vocero/platform/config"
	"vocero/platform/db"
	"vocero/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if cfg.IsDatabaseEnabled() {
		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, cfg, "migrations")
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")

		if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
			p, err := db.NewPool(ctx, cfg)
			if err != nil {
				return err
			}
			pool = p
			return nil
		}); err != nil {
			log.Error("failed to connect to database", "error", err)
			panic("failed to connect to database: " + err.Error())
		}
		defer pool.Close()
		log.Info("database connection established")
	} else {
		log.Warn("DATABASE_URL not configured; call history persistence disabled")
	}

	eventBus := events.NewInMemoryBus(log)

	var store conversation.Store
	if cfg.StateStore == "redis" {
		redisStore, err := conversation.NewRedisStore(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			panic("failed to connect to redis: " + err.Error())
		}
		defer redisStore.Close()
		store = redisStore
		log.Info("state store initialized", "kind", "redis")
	} else {
		store = conversation.NewMemoryStore()
		log.Info("state store initialized", "kind", "memory")
	}

	// ========================================================================
	// Collaborators
	// ========================================================================

	extractor, err := intent.NewExtractor(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize intent extractor", "error", err)
		panic("failed to initialize intent extractor: " + err.Error())
	}
	summarizer, err := summary.NewSummarizer(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize summarizer", "error", err)
		panic("failed to initialize summarizer: " + err.Error())
	}
	calendarClient, err := calendar.NewClient(cfg, log)
	if err != nil {
		log.Error("failed to initialize calendar client", "error", err)
		panic("failed to initialize calendar client: " + err.Error())
	}
	archive, err := transcripts.NewArchive(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize transcript archive", "error", err)
		panic("failed to initialize transcript archive: " + err.Error())
	}

	notifier, err := email.NewNotifier(cfg, log)
	if err != nil {
		log.Error("failed to initialize email notifier", "error", err)
		panic("failed to initialize email notifier: " + err.Error())
	}
	notifier.Subscribe(eventBus)

	// ========================================================================
	// Orchestration Core (Composition Root)
	// ========================================================================

	phoneClient := telephony.NewClient(cfg, cfg, log)
	chatClient := messenger.NewClient(cfg, log)

	svc := conversation.New(conversation.Deps{
		Store:      store,
		Guard:      conversation.NewGuard(cfg.DedupCapacity),
		Extractor:  extractor,
		Placer:     phoneClient,
		Fetcher:    phoneClient,
		Summarizer: summarizer,
		Sender:     chatClient,
		Media:      chatClient,
		Search:     places.NewClient(cfg, log),
		Calendar:   calendarClient,
		Recorder:   calllog.NewRepository(pool, log),
		Archiver:   archive,
		Bus:        eventBus,
		Catalog:    messages.MustLoad(),
	}, cfg, log)

	webhookModule := webhook.NewModule(svc, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		EventBus: eventBus,
		Modules:  []apphttp.Module{webhookModule},
	}
	if pool != nil {
		app.Health = db.NewPoolAdapter(pool)
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// The stuck-call sweep runs against the live store in this process:
	// consumed from the scheduler's queue when redis is configured, on a
	// local ticker otherwise.
	if cfg.RedisURL != "" {
		worker, err := scheduler.NewWorker(cfg, svc, log)
		if err != nil {
			log.Error("failed to initialize task worker", "error", err)
			panic("failed to initialize task worker: " + err.Error())
		}
		g.Go(worker.Run)
		g.Go(func() error {
			<-gctx.Done()
			worker.Shutdown()
			return nil
		})
	} else {
		g.Go(func() error {
			scheduler.RunTicker(gctx, cfg.StuckCallSweepInterval, svc, log)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return lastErr
}
