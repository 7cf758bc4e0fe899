// Package igloo is a minimal igloohome API client covering the two calls this
// service needs: the client-credentials token grant and duration-hourly
// algo-PIN issuance for a single lock device.
package igloo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/cainozoic1865/wensco-pin-server1/internal/errs"
	"github.com/cainozoic1865/wensco-pin-server1/internal/reservation"
)

const DefaultBaseURL = "https://api.igloohome.co"

// pinName labels issued PINs in the igloohome console.
const pinName = "Wensco auto PIN"

type Config struct {
	ClientID     string
	ClientSecret string
	UserEmail    string
	DeviceID     string
	BridgeID     string
	Timezone     string

	// BaseURL overrides the production API host. Tests only.
	BaseURL string
}

type Client struct {
	base     string
	deviceID string
	bridgeID string
	timezone string
	hc       *http.Client
	grant    *clientcredentials.Config
}

func NewClient(cfg Config) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	return &Client{
		base:     base,
		deviceID: cfg.DeviceID,
		bridgeID: cfg.BridgeID,
		timezone: cfg.Timezone,
		hc:       &http.Client{Timeout: 30 * time.Second},
		grant: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     base + "/v2/token",
			AuthStyle:    oauth2.AuthStyleInParams,
			EndpointParams: url.Values{
				"user_email": {cfg.UserEmail},
			},
		},
	}
}

// Credential obtains a fresh bearer token. Tokens are short-lived; a run
// fetches one and reuses it across rows, so a failure here is run-fatal.
func (c *Client) Credential(ctx context.Context) (*oauth2.Token, error) {
	token, err := c.grant.Token(ctx)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrAuth)
	}

	return token, nil
}

type pinRequest struct {
	Type      string `json:"type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Timezone  string `json:"timezone"`
	BridgeID  string `json:"bridge_id"`
	Name      string `json:"name"`
}

type pinResponse struct {
	AlgoPin string `json:"algo_pin"`
}

// IssuePin requests a duration-hourly PIN valid for the given interval. The
// provider response is untrusted input: a missing algo_pin field is an
// issuance failure even on HTTP 200.
func (c *Client) IssuePin(ctx context.Context, token *oauth2.Token, interval reservation.Interval) (string, error) {
	rq := pinRequest{
		Type:      "duration_hourly",
		StartDate: interval.Start.Format(time.RFC3339),
		EndDate:   interval.End.Format(time.RFC3339),
		Timezone:  c.timezone,
		BridgeID:  c.bridgeID,
		Name:      pinName,
	}

	body, err := json.Marshal(rq)
	if err != nil {
		return "", errs.Mark(err, errs.ErrIssuance)
	}

	endpoint := fmt.Sprintf("%s/v2/devices/%s/algo-pins/duration-hourly", c.base, c.deviceID)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errs.Mark(err, errs.ErrIssuance)
	}

	request.Header.Set("Authorization", "Bearer "+token.AccessToken)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.hc.Do(request)
	if err != nil {
		return "", errs.Mark(err, errs.ErrIssuance)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return "", errs.Mark(err, errs.ErrIssuance)
	}

	switch {
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		// the shared token is no longer usable - the whole run must stop
		return "", errs.Mark(errs.Newf("device %s: %s", c.deviceID, summarize(payload)), errs.ErrAuth)

	case response.StatusCode < 200 || response.StatusCode > 299:
		return "", errs.Mark(errs.Newf("device %s: %s", c.deviceID, summarize(payload)), errs.ErrIssuance)
	}

	var pin pinResponse
	if err := json.Unmarshal(payload, &pin); err != nil {
		return "", errs.Mark(errs.Wrap(err, "unexpected response from provider"), errs.ErrIssuance)
	}

	if pin.AlgoPin == "" {
		return "", errs.Mark(errs.New("provider response is missing 'algo_pin'"), errs.ErrIssuance)
	}

	return pin.AlgoPin, nil
}

// summarize extracts the provider's message field from an error response,
// falling back to the raw body.
func summarize(payload []byte) string {
	var detail struct {
		Message string `json:"message"`
	}

	if err := json.Unmarshal(payload, &detail); err == nil && detail.Message != "" {
		return detail.Message
	}

	return strings.TrimSpace(string(payload))
}
