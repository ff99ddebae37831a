package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/compozy/plansync/pkg/config"
	"github.com/go-resty/resty/v2"
)

type googleEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type googleEvent struct {
	ID          string          `json:"id,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Description string          `json:"description,omitempty"`
	HTMLLink    string          `json:"htmlLink,omitempty"`
	Status      string          `json:"status,omitempty"`
	Start       googleEventTime `json:"start"`
	End         googleEventTime `json:"end"`
}

type googleErrorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Errors  []struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"error"`
}

func (e *googleErrorEnvelope) message(fallback string) string {
	msg := e.Error.Message
	for _, item := range e.Error.Errors {
		if item.Reason != "" {
			msg = fmt.Sprintf("%s (%s)", msg, item.Reason)
			break
		}
	}
	if msg == "" {
		return fallback
	}
	return msg
}

// GoogleStore talks to the Google Calendar v3 REST API.
type GoogleStore struct {
	client *resty.Client
}

// NewGoogleStore returns a store authenticated with accessToken.
func NewGoogleStore(cfg *config.CalendarConfig, accessToken string) *GoogleStore {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(accessToken).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.RetryCount > 0 {
		// creates carry a fixed id, so resending one is answered with 409
		client.SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(200 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
			})
	}
	return &GoogleStore{client: client}
}

// GoogleStoreFactory builds a StoreFactory for the given configuration.
func GoogleStoreFactory(cfg *config.CalendarConfig) StoreFactory {
	return func(accessToken string) Store {
		return NewGoogleStore(cfg, accessToken)
	}
}

func (s *GoogleStore) CreateEvent(ctx context.Context, calendarID string, in *EventInput) (*Event, error) {
	body := googleEvent{
		ID:          in.ID,
		Summary:     in.Summary,
		Description: in.Description,
		Start:       googleEventTime{DateTime: in.Start.Format(time.RFC3339), TimeZone: in.Timezone},
		End:         googleEventTime{DateTime: in.End.Format(time.RFC3339), TimeZone: in.Timezone},
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("calendarId", calendarID).
		SetBody(&body).
		SetResult(&googleEvent{}).
		SetError(&googleErrorEnvelope{}).
		Post("/calendars/{calendarId}/events")
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar event: %w", err)
	}
	return decodeEvent(resp)
}

func (s *GoogleStore) GetEvent(ctx context.Context, calendarID, eventID string) (*Event, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"calendarId": calendarID, "eventId": eventID}).
		SetResult(&googleEvent{}).
		SetError(&googleErrorEnvelope{}).
		Get("/calendars/{calendarId}/events/{eventId}")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar event: %w", err)
	}
	return decodeEvent(resp)
}

func decodeEvent(resp *resty.Response) (*Event, error) {
	if resp.IsError() {
		msg := resp.Status()
		if envelope, ok := resp.Error().(*googleErrorEnvelope); ok && envelope != nil {
			msg = envelope.message(msg)
		}
		return nil, classifyStatus(resp.StatusCode(), msg)
	}
	ge, ok := resp.Result().(*googleEvent)
	if !ok || ge == nil {
		return nil, fmt.Errorf("unexpected calendar response: %s", resp.Status())
	}
	return ge.toEvent(), nil
}

func (g *googleEvent) toEvent() *Event {
	ev := &Event{ID: g.ID, Summary: g.Summary, HTMLLink: g.HTMLLink, Status: g.Status}
	if t, err := time.Parse(time.RFC3339, g.Start.DateTime); err == nil {
		ev.Start = t
	}
	if t, err := time.Parse(time.RFC3339, g.End.DateTime); err == nil {
		ev.End = t
	}
	return ev
}
