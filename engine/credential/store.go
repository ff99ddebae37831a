package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

var ErrTokenNotFound = errors.New("token not found")

// TokenStore persists OAuth tokens per user and provider.
type TokenStore interface {
	Load(ctx context.Context, userID, providerKey string) (*oauth2.Token, error)
	Save(ctx context.Context, userID, providerKey string, token *oauth2.Token) error
	Delete(ctx context.Context, userID, providerKey string) error
}

// RedisTokenStore keeps tokens as JSON strings without expiry; refresh tokens
// outlive access tokens.
type RedisTokenStore struct {
	client redis.UniversalClient
}

func NewRedisTokenStore(client redis.UniversalClient) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func tokenKey(userID, providerKey string) string {
	return fmt.Sprintf("plansync:oauth:%s:%s", providerKey, userID)
}

func (s *RedisTokenStore) Load(ctx context.Context, userID, providerKey string) (*oauth2.Token, error) {
	raw, err := s.client.Get(ctx, tokenKey(userID, providerKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, userID, providerKey string, token *oauth2.Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := s.client.Set(ctx, tokenKey(userID, providerKey), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Delete(ctx context.Context, userID, providerKey string) error {
	if err := s.client.Del(ctx, tokenKey(userID, providerKey)).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
