package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/compozy/plansync/engine/infra/pubsub"
)

const channelPrefix = "plansync:workflows:"

// StatusEvent announces a persisted workflow transition.
type StatusEvent struct {
	WorkflowID string    `json:"workflow_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`
}

// Publisher delivers status events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev *StatusEvent) error
}

// Channel returns the channel carrying the events of one user.
func Channel(userID string) string {
	return channelPrefix + userID
}

type nopPublisher struct{}

// NewNopPublisher returns a Publisher that drops every event.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, *StatusEvent) error {
	return nil
}

// ChannelPublisher encodes events as JSON onto a pub/sub provider.
type ChannelPublisher struct {
	provider pubsub.Provider
}

func NewChannelPublisher(provider pubsub.Provider) *ChannelPublisher {
	return &ChannelPublisher{provider: provider}
}

func (p *ChannelPublisher) Publish(ctx context.Context, ev *StatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode status event: %w", err)
	}
	return p.provider.Publish(ctx, Channel(ev.UserID), payload)
}

// Subscribe streams the decoded status events of a user until ctx ends.
func Subscribe(ctx context.Context, provider pubsub.Provider, userID string) (<-chan StatusEvent, func() error, error) {
	sub, err := provider.Subscribe(ctx, Channel(userID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to subscribe to status events: %w", err)
	}
	out := make(chan StatusEvent)
	go func() {
		defer close(out)
		for msg := range sub.Messages() {
			var ev StatusEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, sub.Close, nil
}
