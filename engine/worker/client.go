package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/compozy/plansync/pkg/config"
	"github.com/compozy/plansync/pkg/logger"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

type Client struct {
	client.Client
	config *config.TemporalConfig
}

func NewClient(ctx context.Context, cfg *config.TemporalConfig) (*Client, error) {
	log := logger.FromContext(ctx)
	options := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    log,
	}
	dialStart := time.Now()
	temporalClient, err := client.Dial(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}
	log.Debug("Temporal client connected", "duration", time.Since(dialStart))
	return &Client{
		Client: temporalClient,
		config: cfg,
	}, nil
}

func (c *Client) Config() *config.TemporalConfig {
	return c.config
}

// NewWorker returns a worker on the configured task queue with the plan
// sync workflow and activities registered.
func (c *Client) NewWorker(acts *Activities) worker.Worker {
	w := worker.New(c.Client, c.config.TaskQueue, worker.Options{})
	Register(w, acts)
	return w
}

func (c *Client) Close() {
	c.Client.Close()
}
