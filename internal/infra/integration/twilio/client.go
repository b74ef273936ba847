package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the Twilio Messages API. It does no retrying itself; the
// send use case owns backoff policy.
type Client struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(accountSID, authToken, fromNumber, baseURL string) *Client {
	return &Client{
		AccountSID: accountSID,
		AuthToken:  authToken,
		FromNumber: fromNumber,
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SendSMS submits one message and returns the carrier message SID that later
// status callbacks will be keyed by.
func (c *Client) SendSMS(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.BaseURL, c.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.AccountSID, c.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("carrier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return "", fmt.Errorf("carrier error %d: %s", apiErr.Code, apiErr.Message)
		}
		return "", fmt.Errorf("carrier returned status %d", resp.StatusCode)
	}

	var msg messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return "", fmt.Errorf("decode carrier response: %w", err)
	}
	if msg.SID == "" {
		return "", fmt.Errorf("carrier response missing message sid")
	}
	return msg.SID, nil
}
