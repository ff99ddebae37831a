package cache

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/compozy/plansync/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis(t *testing.T) {
	t.Run("Should connect to a reachable server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := NewRedis(t.Context(), &config.RedisConfig{Addr: mr.Addr()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		require.NoError(t, client.Set(t.Context(), "k", "v", 0).Err())
		got, err := mr.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
	})

	t.Run("Should fail without an address", func(t *testing.T) {
		_, err := NewRedis(t.Context(), &config.RedisConfig{})
		assert.Error(t, err)
	})

	t.Run("Should fail when the server is unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, err := NewRedis(t.Context(), &config.RedisConfig{Addr: addr})
		assert.Error(t, err)
	})
}
