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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/doctorauto/sophia/internal/adapter/discord"
	"github.com/doctorauto/sophia/internal/adapter/email"
	gw "github.com/doctorauto/sophia/internal/adapter/http"
	"github.com/doctorauto/sophia/internal/adapter/litellm"
	"github.com/doctorauto/sophia/internal/adapter/memqueue"
	sophianats "github.com/doctorauto/sophia/internal/adapter/nats"
	"github.com/doctorauto/sophia/internal/adapter/natskv"
	sotel "github.com/doctorauto/sophia/internal/adapter/otel"
	"github.com/doctorauto/sophia/internal/adapter/postgres"
	"github.com/doctorauto/sophia/internal/adapter/redis"
	"github.com/doctorauto/sophia/internal/adapter/ristretto"
	"github.com/doctorauto/sophia/internal/adapter/slack"
	"github.com/doctorauto/sophia/internal/adapter/tiered"
	"github.com/doctorauto/sophia/internal/adapter/ws"
	"github.com/doctorauto/sophia/internal/config"
	"github.com/doctorauto/sophia/internal/domain/decision"
	"github.com/doctorauto/sophia/internal/middleware"
	"github.com/doctorauto/sophia/internal/port/cache"
	"github.com/doctorauto/sophia/internal/port/llm"
	"github.com/doctorauto/sophia/internal/port/messagequeue"
	"github.com/doctorauto/sophia/internal/port/notifier"
	"github.com/doctorauto/sophia/internal/port/workqueue"
	"github.com/doctorauto/sophia/internal/resilience"
	"github.com/doctorauto/sophia/internal/service"
)

const (
	rateCleanupInterval = time.Minute
	rateMaxIdle         = 10 * time.Minute
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway and the background jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, flush, err := bootstrap()
			if err != nil {
				return err
			}
			defer flush()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := serve(ctx, cfg); err != nil {
				slog.Error("fatal", "error", err)
				return err
			}
			return nil
		},
	}
}

// infra holds the connections opened at startup, closed in reverse order.
type infra struct {
	closers []func()
}

func (i *infra) onClose(f func()) { i.closers = append(i.closers, f) }

func (i *infra) close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"queue", cfg.Queue.Backend,
		"cache_l2", cfg.Cache.L2,
		"decision_mode", cfg.Decisions.Mode,
	)

	var in infra
	defer in.close()

	// --- Observability ---

	otelShutdown, err := sotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	in.onClose(func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	})
	metrics, err := sotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	if cfg.Postgres.AutoMigrate {
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("migrations applied")
	}
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	in.onClose(pool.Close)
	store := postgres.NewStore(pool)
	slog.Info("postgres connected")

	var rdb *goredis.Client
	if cfg.Queue.Backend == "redis" || cfg.Cache.L2 == "redis" {
		rdb, err = redis.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		in.onClose(func() { _ = rdb.Close() })
		slog.Info("redis connected")
	}

	var (
		bus  messagequeue.Queue
		nats *sophianats.Queue
	)
	if cfg.NATS.URL != "" {
		nats, err = sophianats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		in.onClose(func() { _ = nats.Close() })
		bus = nats
		slog.Info("nats connected")
	}

	var queue workqueue.Queue
	if cfg.Queue.Backend == "redis" {
		queue = redis.NewQueue(rdb)
	} else {
		queue = memqueue.New()
	}

	sharedCache, err := buildCache(ctx, cfg.Cache, rdb, nats, &in)
	if err != nil {
		return err
	}

	hub := ws.NewHub()

	// --- Services ---

	events := service.NewEvents(bus, hub)
	coord := service.NewCoordinatorResolver(store, cfg.Coordinator.Name, cfg.Coordinator.FallbackName)
	audit := service.NewActivityLog(store)

	tasks := service.NewTaskService(store, queue, coord, audit)
	tasks.SetEvents(events)
	tasks.SetMetrics(metrics)

	decisions := service.NewDecisionService(store, coord, audit, decision.Mode(cfg.Decisions.Mode))
	decisions.SetEvents(events)
	decisions.SetMetrics(metrics)

	knowledgeSvc := service.NewKnowledgeService(store, sharedCache, cfg.Cache.QueryTTL, audit)
	notify := service.NewNotificationService([]notifier.Notifier{
		slack.NewNotifier(cfg.Notify.SlackWebhookURL),
		discord.NewNotifier(cfg.Notify.DiscordWebhookURL, cfg.Notify.DiscordUsername),
		email.NewNotifier(cfg.Notify.SMTP),
	}, nil)

	webhooks := service.NewWebhookService(store, tasks, knowledgeSvc, coord, audit, notify, cfg.Coordinator.LeadAgent)
	webhooks.SetEvents(events)
	webhooks.SetMetrics(metrics)

	var completer llm.Completer
	if cfg.LLM.URL != "" {
		client := litellm.NewClient(cfg.LLM.URL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)
		client.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
		completer = client
	}
	chat := service.NewChatService(completer, store, knowledgeSvc, decisions, coord, audit)

	metricsSvc := service.NewMetricsService(store, sharedCache, cfg.Cron.MetricsTTL)
	metricsSvc.SetEvents(events)

	status := service.NewStatusService(store, coord)
	agents := service.NewAgentService(store, queue)

	// --- Background jobs ---

	limiter := middleware.NewRateLimiter(cfg.Rate, "/health", "/ws")
	go limiter.RunCleanup(ctx, rateCleanupInterval, rateMaxIdle)

	jobsDone := make(chan error, 1)
	if cfg.Cron.Enabled {
		monitor := service.NewMonitor(store, sharedCache, coord, audit, tasks, knowledgeSvc, metricsSvc, cfg.Cron)
		monitor.SetEvents(events)
		scheduler := service.NewScheduler(cfg.Cron.MaxInitialDelay, monitor.Jobs()...)
		scheduler.SetMetrics(metrics)
		go func() { jobsDone <- scheduler.Run(ctx) }()
	} else {
		close(jobsDone)
	}

	// --- HTTP ---

	handlers := &gw.Handlers{
		Status:      status,
		Chat:        chat,
		Tasks:       tasks,
		Decisions:   decisions,
		Agents:      agents,
		Knowledge:   knowledgeSvc,
		Webhooks:    webhooks,
		Metrics:     metricsSvc,
		Coordinator: coord,
		LiveEvents:  hub.HandleWS,
		BodyLimit:   cfg.Server.BodyLimit,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(sotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(gw.Logger)
	r.Use(gw.Recover)
	r.Use(gw.CORS(cfg.Server.CORSOrigin))
	r.Use(limiter.Handler)

	gw.MountRoutes(r, handlers, gw.RouteOptions{
		RequestTimeout: cfg.Server.RequestTimeout,
		WebhookToken:   cfg.Webhook.Token,
		Idempotency:    middleware.Idempotency(sharedCache, cfg.Server.IdempotencyTTL),
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-jobsDone; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler: %w", err)
	}
	if nats != nil {
		if err := nats.Drain(); err != nil {
			slog.Warn("nats drain", "error", err)
		}
	}
	return nil
}

// buildCache assembles the ristretto L1 with the configured L2.
func buildCache(ctx context.Context, cfg config.Cache, rdb *goredis.Client, nats *sophianats.Queue, in *infra) (cache.Cache, error) {
	l1, err := ristretto.New(cfg.L1MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("l1 cache: %w", err)
	}
	in.onClose(l1.Close)

	var l2 cache.Cache
	switch cfg.L2 {
	case "redis":
		l2 = redis.NewCache(rdb)
	case "nats":
		if nats == nil {
			return nil, errors.New("cache l2 nats requires nats.url")
		}
		kv, err := natskv.Open(ctx, nats.JetStream(), cfg.KVBucket, cfg.KVTTL)
		if err != nil {
			return nil, fmt.Errorf("nats kv cache: %w", err)
		}
		l2 = kv
	default:
		slog.Info("cache running in-process only")
		return l1, nil
	}
	return tiered.New(l1, l2, cfg.L1TTL), nil
}
