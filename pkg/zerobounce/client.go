// Package zerobounce provides a client for the ZeroBounce email validation API.
package zerobounce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.zerobounce.net/v2"

// Client performs email deliverability checks.
type Client interface {
	// Validate checks a single address. One call consumes one credit.
	Validate(ctx context.Context, email string) (*ValidateResponse, error)
	// Credits returns the remaining credit balance on the account.
	Credits(ctx context.Context) (int, error)
}

// ValidateResponse is the response from GET /validate.
type ValidateResponse struct {
	Address      string `json:"address"`
	Status       string `json:"status"`
	SubStatus    string `json:"sub_status"`
	FreeEmail    bool   `json:"free_email"`
	DidYouMean   string `json:"did_you_mean"`
	Domain       string `json:"domain"`
	MXFound      string `json:"mx_found"`
	SMTPProvider string `json:"smtp_provider"`
	ProcessedAt  string `json:"processed_at"`
}

// creditsResponse is the response from GET /getcredits. Credits arrive as a
// quoted string.
type creditsResponse struct {
	Credits string `json:"Credits"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a ZeroBounce API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Validate(ctx context.Context, email string) (*ValidateResponse, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("email", email)
	q.Set("ip_address", "")

	body, err := c.get(ctx, "/validate?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var result ValidateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "zerobounce: unmarshal response")
	}
	return &result, nil
}

func (c *httpClient) Credits(ctx context.Context) (int, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)

	body, err := c.get(ctx, "/getcredits?"+q.Encode())
	if err != nil {
		return 0, err
	}

	var result creditsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, eris.Wrap(err, "zerobounce: unmarshal credits")
	}
	credits, err := strconv.Atoi(result.Credits)
	if err != nil {
		return 0, eris.Wrapf(err, "zerobounce: parse credits %q", result.Credits)
	}
	return credits, nil
}

func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "zerobounce: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "zerobounce: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "zerobounce: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("zerobounce: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
