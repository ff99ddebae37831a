package repo

import (
	"context"
	"fmt"

	"github.com/compozy/plansync/engine/infra/postgres"
	"github.com/compozy/plansync/engine/infra/sqlite"
	"github.com/compozy/plansync/engine/workflow"
	"github.com/compozy/plansync/pkg/config"
	"github.com/compozy/plansync/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Provider exposes the workflow repository backed by the configured driver.
// It returns interfaces rather than driver-specific types.
type Provider struct {
	driver    string
	repo      workflow.Repository
	health    func(ctx context.Context) error
	close     func(ctx context.Context) error
	collector prometheus.Collector
}

// Open connects to the configured database, applying migrations when
// auto_migrate is set.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Provider, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return openSQLite(ctx, cfg)
	case DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate applies the driver's embedded migrations without keeping a
// connection open.
func Migrate(ctx context.Context, cfg *config.DatabaseConfig) error {
	log := logger.FromContext(ctx)
	switch cfg.Driver {
	case DriverSQLite, "":
		store, err := sqlite.NewStore(ctx, &sqlite.Config{Path: cfg.Path, MaxOpenConns: cfg.MaxOpenConns})
		if err != nil {
			return err
		}
		defer store.Close(ctx)
		if err := sqlite.ApplyMigrations(ctx, store.DB()); err != nil {
			return err
		}
	case DriverPostgres:
		if err := postgres.ApplyMigrations(ctx, postgres.DSN(postgres.ConfigFromApp(cfg))); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	log.Info("Database migrations applied", "driver", cfg.Driver)
	return nil
}

func openSQLite(ctx context.Context, cfg *config.DatabaseConfig) (*Provider, error) {
	store, err := sqlite.NewStore(ctx, &sqlite.Config{Path: cfg.Path, MaxOpenConns: cfg.MaxOpenConns})
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := sqlite.ApplyMigrations(ctx, store.DB()); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
	}
	return &Provider{
		driver: DriverSQLite,
		repo:   sqlite.NewWorkflowRepo(store.DB()),
		health: store.HealthCheck,
		close:  store.Close,
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.DatabaseConfig) (*Provider, error) {
	pgCfg := postgres.ConfigFromApp(cfg)
	if cfg.AutoMigrate {
		if err := postgres.ApplyMigrations(ctx, postgres.DSN(pgCfg)); err != nil {
			return nil, err
		}
	}
	store, err := postgres.NewStore(ctx, pgCfg)
	if err != nil {
		return nil, err
	}
	return &Provider{
		driver:    DriverPostgres,
		repo:      postgres.NewWorkflowRepo(store.Pool()),
		health:    store.HealthCheck,
		close:     store.Close,
		collector: store.Collector(),
	}, nil
}

func (p *Provider) Driver() string { return p.driver }

// WorkflowRepo returns the workflow repository.
func (p *Provider) WorkflowRepo() workflow.Repository { return p.repo }

func (p *Provider) HealthCheck(ctx context.Context) error { return p.health(ctx) }

// Collector returns driver pool metrics, or nil when the driver has none.
func (p *Provider) Collector() prometheus.Collector { return p.collector }

func (p *Provider) Close(ctx context.Context) error { return p.close(ctx) }
