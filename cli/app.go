package cli

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"

	"github.com/compozy/plansync/engine/calendar"
	"github.com/compozy/plansync/engine/credential"
	"github.com/compozy/plansync/engine/decompose"
	"github.com/compozy/plansync/engine/events"
	"github.com/compozy/plansync/engine/infra/cache"
	"github.com/compozy/plansync/engine/infra/monitoring"
	"github.com/compozy/plansync/engine/infra/pubsub"
	"github.com/compozy/plansync/engine/infra/repo"
	"github.com/compozy/plansync/engine/infra/server"
	"github.com/compozy/plansync/engine/llm"
	"github.com/compozy/plansync/engine/plan"
	"github.com/compozy/plansync/engine/worker"
	"github.com/compozy/plansync/engine/workflow"
	"github.com/compozy/plansync/pkg/config"
	"github.com/compozy/plansync/pkg/logger"
)

// app holds the wired components of one process.
type app struct {
	cfg          *config.Config
	store        *repo.Provider
	redis        *redis.Client
	pubsub       *pubsub.RedisProvider
	temporal     *worker.Client
	monitoring   *monitoring.Service
	orchestrator *workflow.Orchestrator
	dispatcher   workflow.Dispatcher
	inline       *workflow.InlineDispatcher
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close(ctx)
		}
	}()
	if a.store, err = repo.Open(ctx, &cfg.Database); err != nil {
		return nil, err
	}
	if a.monitoring, err = monitoring.NewMonitoringService(ctx, &cfg.Monitoring); err != nil {
		return nil, err
	}
	a.monitoring.Register(a.store.Collector())
	publisher := events.NewNopPublisher()
	if cfg.Redis.Enabled() {
		if a.redis, err = cache.NewRedis(ctx, &cfg.Redis); err != nil {
			return nil, err
		}
		if a.pubsub, err = pubsub.NewRedisProvider(a.redis); err != nil {
			return nil, err
		}
		publisher = events.NewChannelPublisher(a.pubsub)
	}
	var redisClient redis.UniversalClient
	if a.redis != nil {
		redisClient = a.redis
	}
	tokens, err := credential.NewProvider(&cfg.Credentials, redisClient)
	if err != nil {
		return nil, err
	}
	generator, err := llm.NewGenerator(ctx, &cfg.LLM)
	if err != nil {
		return nil, err
	}
	a.orchestrator = workflow.NewOrchestrator(
		a.store.WorkflowRepo(),
		decompose.NewStep(generator, plan.LimitsFromConfig(&cfg.Planner)),
		calendar.NewSyncer(tokens, calendar.GoogleStoreFactory(&cfg.Calendar), cfg.Calendar.ProviderKey),
		workflow.WithPublisher(publisher),
		workflow.WithMetrics(a.monitoring.WorkflowMetrics()),
		workflow.WithDefaultCalendar(cfg.Calendar.DefaultCalendarID),
	)
	if cfg.Temporal.Enabled {
		if a.temporal, err = worker.NewClient(ctx, &cfg.Temporal); err != nil {
			return nil, err
		}
		a.dispatcher = worker.NewTemporalDispatcher(a.temporal, cfg.Temporal.TaskQueue, cfg.Runtime.DispatchTimeout)
	} else {
		a.inline = workflow.NewInlineDispatcher(a.orchestrator, cfg.Runtime.DispatchTimeout)
		a.dispatcher = a.inline
	}
	logger.FromContext(ctx).Debug("Application wired",
		"db_driver", a.store.Driver(),
		"redis", a.redis != nil,
		"temporal", a.temporal != nil,
	)
	return a, nil
}

// healthChecks lists the dependencies reported by /healthz.
func (a *app) healthChecks() map[string]server.HealthChecker {
	checks := map[string]server.HealthChecker{"database": a.store}
	if a.redis != nil {
		checks["redis"] = healthFunc(func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.temporal != nil {
		checks["temporal"] = healthFunc(func(ctx context.Context) error {
			_, err := a.temporal.CheckHealth(ctx, &client.CheckHealthRequest{})
			return err
		})
	}
	return checks
}

// drain waits for in-process runs started by the inline dispatcher.
func (a *app) drain() {
	if a.inline != nil {
		a.inline.Wait()
	}
}

func (a *app) Close(ctx context.Context) {
	log := logger.FromContext(ctx)
	a.drain()
	if a.temporal != nil {
		a.temporal.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn("Failed to close redis client", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			log.Warn("Failed to close store", "error", err)
		}
	}
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// requireUser validates the --user flag shared by the plan commands.
func requireUser(userID string) error {
	if userID == "" {
		return errors.New("--user is required")
	}
	return nil
}
