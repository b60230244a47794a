package integrations

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// CalendarAPI creates calendar events.
type CalendarAPI interface {
	CreateEvent(ctx context.Context, creds GoogleCalendarCredentials, event CalendarEvent) (string, error)
}

// CalendarEvent is the engine's view of a calendar entry.
type CalendarEvent struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// GoogleCalendarClient calls the Google Calendar v3 API, exchanging the
// tenant's refresh token for an access token on every call.
type GoogleCalendarClient struct {
	HTTPClient *http.Client
	TokenURL   string
	BaseURL    string
}

const (
	googleDefaultTokenURL = "https://oauth2.googleapis.com/token"
	googleDefaultBaseURL  = "https://www.googleapis.com/calendar/v3"
)

func (c *GoogleCalendarClient) tokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return googleDefaultTokenURL
}

func (c *GoogleCalendarClient) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return googleDefaultBaseURL
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (c *GoogleCalendarClient) accessToken(ctx context.Context, creds GoogleCalendarCredentials) (string, error) {
	form := url.Values{}
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("refresh_token", creds.RefreshToken)
	form.Set("grant_type", "refresh_token")

	var resp googleTokenResponse
	if err := postForm(ctx, c.HTTPClient, "google_calendar", c.tokenURL(), nil, form, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("google token exchange returned no access token")
	}
	return resp.AccessToken, nil
}

type googleEventResponse struct {
	ID string `json:"id"`
}

// CreateEvent inserts one event into the tenant's calendar and returns the
// event id.
func (c *GoogleCalendarClient) CreateEvent(ctx context.Context, creds GoogleCalendarCredentials, event CalendarEvent) (string, error) {
	token, err := c.accessToken(ctx, creds)
	if err != nil {
		return "", err
	}

	calendarID := creds.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	payload := map[string]interface{}{
		"summary":     event.Summary,
		"description": event.Description,
		"start":       map[string]string{"dateTime": event.Start.Format(time.RFC3339)},
		"end":         map[string]string{"dateTime": event.End.Format(time.RFC3339)},
	}
	if len(event.Attendees) > 0 {
		attendees := make([]map[string]string, 0, len(event.Attendees))
		for _, email := range event.Attendees {
			attendees = append(attendees, map[string]string{"email": email})
		}
		payload["attendees"] = attendees
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.baseURL(), url.PathEscape(calendarID))
	headers := map[string]string{"Authorization": "Bearer " + token}

	var resp googleEventResponse
	if err := postJSON(ctx, c.HTTPClient, "google_calendar", endpoint, headers, payload, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}
