package integrations

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
)

// TwilioAPI sends SMS and places voice calls.
type TwilioAPI interface {
	SendSMS(ctx context.Context, creds TwilioCredentials, to, body string) (string, error)
	// PlaceCall dials a number and plays the audio at playURL via TwiML.
	PlaceCall(ctx context.Context, creds TwilioCredentials, to, playURL string) (string, error)
}

// TwilioClient calls the Twilio REST API.
type TwilioClient struct {
	HTTPClient *http.Client
	BaseURL    string
}

const twilioDefaultBaseURL = "https://api.twilio.com"

func (c *TwilioClient) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return twilioDefaultBaseURL
}

type twilioMessageResponse struct {
	SID string `json:"sid"`
}

// SendSMS sends one SMS and returns the message SID.
func (c *TwilioClient) SendSMS(ctx context.Context, creds TwilioCredentials, to, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", creds.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL(), creds.AccountSID)
	var resp twilioMessageResponse
	if err := postForm(ctx, c.HTTPClient, "twilio", endpoint, basicAuthHeader(creds.AccountSID, creds.AuthToken), form, &resp); err != nil {
		return "", err
	}
	return resp.SID, nil
}

// PlaceCall dials to and plays the given audio URL. Returns the call SID.
func (c *TwilioClient) PlaceCall(ctx context.Context, creds TwilioCredentials, to, playURL string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", creds.FromNumber)
	form.Set("Twiml", fmt.Sprintf("<Response><Play>%s</Play></Response>", playURL))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.baseURL(), creds.AccountSID)
	var resp twilioMessageResponse
	if err := postForm(ctx, c.HTTPClient, "twilio", endpoint, basicAuthHeader(creds.AccountSID, creds.AuthToken), form, &resp); err != nil {
		return "", err
	}
	return resp.SID, nil
}

func basicAuthHeader(user, pass string) map[string]string {
	token := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	return map[string]string{"Authorization": "Basic " + token}
}
