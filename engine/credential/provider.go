package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/compozy/plansync/engine/calendar"
	"github.com/compozy/plansync/pkg/config"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// Provider returns the calendar access token of a user. An empty token with
// a nil error means the user has not granted access.
type Provider interface {
	GetAccessToken(ctx context.Context, userID, providerKey string) (string, error)
}

var _ calendar.TokenProvider = (Provider)(nil)

type staticProvider struct {
	token string
}

// NewStaticProvider hands the same token to every user. Meant for single-user
// deployments and local development.
func NewStaticProvider(token string) Provider {
	return &staticProvider{token: token}
}

func (p *staticProvider) GetAccessToken(context.Context, string, string) (string, error) {
	return p.token, nil
}

// OAuthProvider serves stored OAuth tokens and refreshes expired ones.
type OAuthProvider struct {
	oauth *oauth2.Config
	store TokenStore
}

func NewOAuthProvider(cfg *config.CredentialsConfig, store TokenStore) *OAuthProvider {
	return &OAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret.Value(),
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: cfg.Scopes,
		},
		store: store,
	}
}

func (p *OAuthProvider) GetAccessToken(ctx context.Context, userID, providerKey string) (string, error) {
	stored, err := p.store.Load(ctx, userID, providerKey)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return "", nil
		}
		return "", err
	}
	fresh, err := p.oauth.TokenSource(ctx, stored).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode < http.StatusInternalServerError {
			status := retrieveErr.Response.StatusCode
			return "", &calendar.PermissionError{
				StatusCode: status,
				Message:    fmt.Sprintf("token refresh rejected: %s", retrieveErr.ErrorCode),
				Err:        err,
			}
		}
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}
	if fresh.AccessToken != stored.AccessToken {
		if err := p.store.Save(ctx, userID, providerKey, fresh); err != nil {
			return "", fmt.Errorf("failed to persist refreshed token: %w", err)
		}
	}
	return fresh.AccessToken, nil
}

// NewProvider selects the provider named by the credentials configuration.
func NewProvider(cfg *config.CredentialsConfig, client redis.UniversalClient) (Provider, error) {
	switch cfg.Source {
	case "static", "":
		return NewStaticProvider(cfg.StaticToken.Value()), nil
	case "oauth":
		if client == nil {
			return nil, errors.New("oauth credentials require a redis client")
		}
		return NewOAuthProvider(cfg, NewRedisTokenStore(client)), nil
	default:
		return nil, fmt.Errorf("unsupported credentials source: %s", cfg.Source)
	}
}
