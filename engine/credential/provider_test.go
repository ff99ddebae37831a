package credential

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/compozy/plansync/engine/calendar"
	"github.com/compozy/plansync/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newRedisStore(t *testing.T) *RedisTokenStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisTokenStore(client)
}

func newTokenServer(t *testing.T, status int, body map[string]any) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRedisTokenStore(t *testing.T) {
	t.Run("Should save, load and delete tokens", func(t *testing.T) {
		store := newRedisStore(t)
		_, err := store.Load(t.Context(), "u1", "google")
		require.ErrorIs(t, err, ErrTokenNotFound)

		tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour).UTC()}
		require.NoError(t, store.Save(t.Context(), "u1", "google", tok))
		got, err := store.Load(t.Context(), "u1", "google")
		require.NoError(t, err)
		assert.Equal(t, "a", got.AccessToken)
		assert.Equal(t, "r", got.RefreshToken)

		require.NoError(t, store.Delete(t.Context(), "u1", "google"))
		_, err = store.Load(t.Context(), "u1", "google")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})
}

func TestOAuthProvider(t *testing.T) {
	t.Run("Should return a valid stored token without refreshing", func(t *testing.T) {
		store := newRedisStore(t)
		require.NoError(t, store.Save(t.Context(), "u1", "google", &oauth2.Token{
			AccessToken: "live", Expiry: time.Now().Add(time.Hour),
		}))
		p := NewOAuthProvider(&config.CredentialsConfig{ClientID: "id", TokenURL: "http://127.0.0.1:1/token"}, store)
		tok, err := p.GetAccessToken(t.Context(), "u1", "google")
		require.NoError(t, err)
		assert.Equal(t, "live", tok)
	})

	t.Run("Should refresh an expired token and persist it", func(t *testing.T) {
		store := newRedisStore(t)
		require.NoError(t, store.Save(t.Context(), "u1", "google", &oauth2.Token{
			AccessToken: "old", RefreshToken: "refresh", Expiry: time.Now().Add(-time.Hour),
		}))
		url := newTokenServer(t, http.StatusOK, map[string]any{
			"access_token": "new", "token_type": "Bearer", "expires_in": 3600,
		})
		p := NewOAuthProvider(&config.CredentialsConfig{ClientID: "id", TokenURL: url}, store)
		tok, err := p.GetAccessToken(t.Context(), "u1", "google")
		require.NoError(t, err)
		assert.Equal(t, "new", tok)
		saved, err := store.Load(t.Context(), "u1", "google")
		require.NoError(t, err)
		assert.Equal(t, "new", saved.AccessToken)
	})

	t.Run("Should report a rejected refresh as a permission error", func(t *testing.T) {
		store := newRedisStore(t)
		require.NoError(t, store.Save(t.Context(), "u1", "google", &oauth2.Token{
			AccessToken: "old", RefreshToken: "revoked", Expiry: time.Now().Add(-time.Hour),
		}))
		url := newTokenServer(t, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
		p := NewOAuthProvider(&config.CredentialsConfig{ClientID: "id", TokenURL: url}, store)
		_, err := p.GetAccessToken(t.Context(), "u1", "google")
		assert.True(t, calendar.IsPermissionError(err))
	})

	t.Run("Should return an empty token for users without consent", func(t *testing.T) {
		p := NewOAuthProvider(&config.CredentialsConfig{ClientID: "id"}, newRedisStore(t))
		tok, err := p.GetAccessToken(t.Context(), "nobody", "google")
		require.NoError(t, err)
		assert.Empty(t, tok)
	})
}

func TestNewProvider(t *testing.T) {
	t.Run("Should build the static provider", func(t *testing.T) {
		p, err := NewProvider(&config.CredentialsConfig{Source: "static", StaticToken: "tok"}, nil)
		require.NoError(t, err)
		tok, err := p.GetAccessToken(t.Context(), "anyone", "google")
		require.NoError(t, err)
		assert.Equal(t, "tok", tok)
	})

	t.Run("Should require redis for oauth", func(t *testing.T) {
		_, err := NewProvider(&config.CredentialsConfig{Source: "oauth"}, nil)
		assert.Error(t, err)
	})
}
