package pubsub

import "context"

// Message represents a payload delivered via a pub/sub subscription.
type Message struct {
	Payload []byte
}

// Subscription exposes a stream of messages. Close must be safe to call
// multiple times.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Provider publishes to and subscribes on named channels.
type Provider interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Publish(ctx context.Context, channel string, payload []byte) error
}
