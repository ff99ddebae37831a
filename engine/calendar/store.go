package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ReauthMarker prefixes errors that require the user to grant calendar
// access again.
const ReauthMarker = "CALENDAR_REAUTH_REQUIRED"

var (
	ErrConflict = errors.New("calendar event already exists")
	ErrNotFound = errors.New("calendar event not found")
)

// EventInput is what the syncer asks the remote store to create.
type EventInput struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Timezone    string
}

// Event is the remote view of a calendar event.
type Event struct {
	ID       string
	Summary  string
	HTMLLink string
	Status   string
	Start    time.Time
	End      time.Time
}

// Store is the remote calendar keyed by event id. CreateEvent returns
// ErrConflict when the id is taken; GetEvent returns ErrNotFound.
type Store interface {
	CreateEvent(ctx context.Context, calendarID string, in *EventInput) (*Event, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*Event, error)
}

// StoreFactory binds a store to a user's access token.
type StoreFactory func(accessToken string) Store

// TokenProvider supplies the access token of a user for a calendar provider.
// An empty token means the user never granted access.
type TokenProvider interface {
	GetAccessToken(ctx context.Context, userID, providerKey string) (string, error)
}

// PermissionError means the provider refused the call for lack of consent.
type PermissionError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: %s", ReauthMarker, e.Message)
}

func (e *PermissionError) Unwrap() error {
	return e.Err
}

// RemoteError is any other non-success answer from the provider.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("calendar provider returned %d: %s", e.StatusCode, e.Message)
}

// IsPermissionError reports whether err is a consent problem, either typed or
// recognized by insufficient-scope wording.
func IsPermissionError(err error) bool {
	if err == nil {
		return false
	}
	var permErr *PermissionError
	if errors.As(err, &permErr) {
		return true
	}
	return hasScopeWording(err.Error())
}

func hasScopeWording(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "insufficient") &&
		(strings.Contains(lower, "scope") || strings.Contains(lower, "permission"))
}

// classifyStatus maps a provider HTTP answer to the store error contract.
func classifyStatus(status int, message string) error {
	switch {
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusNotFound || status == http.StatusGone:
		return ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &PermissionError{StatusCode: status, Message: message}
	case hasScopeWording(message):
		return &PermissionError{StatusCode: status, Message: message}
	default:
		return &RemoteError{StatusCode: status, Message: message}
	}
}
