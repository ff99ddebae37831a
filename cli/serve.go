package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/compozy/plansync/engine/infra/server"
	"github.com/compozy/plansync/engine/worker"
	"github.com/compozy/plansync/pkg/logger"
	"github.com/compozy/plansync/pkg/version"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Run the HTTP API and, when Temporal is enabled, the workflow worker",
		Args:    cobra.NoArgs,
		RunE:    runServe,
	}
	cmd.Flags().String("host", "", "Address to bind")
	cmd.Flags().Int("port", 0, "Port to listen on")
	cmd.Flags().String("db-driver", "", "Database driver (sqlite, postgres)")
	cmd.Flags().String("db-path", "", "SQLite database path")
	cmd.Flags().Bool("temporal", false, "Dispatch runs through Temporal")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := configFrom(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := logger.FromContext(ctx)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	srv, err := server.NewServer(ctx, &cfg.Server, &server.Dependencies{
		Service:    a.orchestrator,
		Dispatcher: a.dispatcher,
		Monitoring: a.monitoring,
		Checks:     a.healthChecks(),
		Version:    version.Get().Version,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if a.temporal != nil {
		w := a.temporal.NewWorker(worker.NewActivities(a.orchestrator, log))
		g.Go(func() error {
			if err := w.Start(); err != nil {
				return fmt.Errorf("failed to start temporal worker: %w", err)
			}
			log.Info("Temporal worker started", "task_queue", cfg.Temporal.TaskQueue)
			<-gctx.Done()
			w.Stop()
			return nil
		})
	}
	log.Info("plansync started",
		"version", version.Get().Version,
		"db_driver", a.store.Driver(),
		"temporal", a.temporal != nil,
	)
	return g.Wait()
}
