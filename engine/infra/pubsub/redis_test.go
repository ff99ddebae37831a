package pubsub

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T) *RedisProvider {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	p, err := NewRedisProvider(client)
	require.NoError(t, err)
	return p
}

func TestRedisProvider(t *testing.T) {
	t.Run("Should deliver published payloads to subscribers", func(t *testing.T) {
		p := newProvider(t)
		sub, err := p.Subscribe(t.Context(), "updates")
		require.NoError(t, err)
		t.Cleanup(func() { _ = sub.Close() })
		require.NoError(t, p.Publish(t.Context(), "updates", []byte("hello")))
		select {
		case msg := <-sub.Messages():
			assert.Equal(t, "hello", string(msg.Payload))
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for message")
		}
	})

	t.Run("Should allow closing a subscription twice", func(t *testing.T) {
		p := newProvider(t)
		sub, err := p.Subscribe(t.Context(), "updates")
		require.NoError(t, err)
		require.NoError(t, sub.Close())
		assert.NoError(t, sub.Close())
	})

	t.Run("Should reject a nil client", func(t *testing.T) {
		_, err := NewRedisProvider(nil)
		assert.Error(t, err)
	})
}
