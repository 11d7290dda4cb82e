package connectedvehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Volvo Cars API host.
const DefaultBaseURL = "https://api.volvocars.com"

// Client calls the Connected Vehicle and Energy APIs.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

type clientOptions struct {
	baseURL   string
	transport http.RoundTripper
	timeout   time.Duration
}

// Option configures a Client.
type Option func(*clientOptions)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) {
		if baseURL != "" {
			o.baseURL = baseURL
		}
	}
}

// WithTransport sets the base transport below authorization.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) {
		o.transport = rt
	}
}

// WithTimeout bounds every request. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// New creates a Client authorizing requests with tokens from ts and the given API key.
func New(ts oauth2.TokenSource, apiKey string, opts ...Option) (*Client, error) {
	if ts == nil {
		return nil, fmt.Errorf("missing token source")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("missing api key")
	}

	o := clientOptions{
		baseURL: DefaultBaseURL,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	base, err := url.Parse(strings.TrimSuffix(o.baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: o.timeout,
			Transport: &oauth2.Transport{
				Source: ts,
				Base:   &APIKeyTransport{Key: apiKey, Base: o.transport},
			},
		},
	}, nil
}

// Vehicles lists the VINs of the vehicles linked to the account.
func (c *Client) Vehicles(ctx context.Context) ([]Vehicle, error) {
	var resp vehiclesResponse
	if err := c.get(ctx, "/connected-vehicle/v2/vehicles", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// EnergyState returns the battery and charging state of vin.
func (c *Client) EnergyState(ctx context.Context, vin string) (EnergyState, error) {
	if vin == "" {
		return EnergyState{}, fmt.Errorf("missing vin")
	}

	var state EnergyState
	if err := c.get(ctx, "/energy/v2/vehicles/"+url.PathEscape(vin)+"/state", &state); err != nil {
		return EnergyState{}, err
	}
	return state, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	u := c.baseURL.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: %w", path, newStatusError(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return nil
}

// newStatusError extracts the API error message if the body carries one.
func newStatusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	var apiErr struct {
		Error struct {
			Message     string `json:"message"`
			Description string `json:"description"`
		} `json:"error"`
	}
	msg := ""
	if json.Unmarshal(body, &apiErr) == nil {
		msg = apiErr.Error.Message
		if apiErr.Error.Description != "" {
			msg = strings.TrimSpace(msg + " " + apiErr.Error.Description)
		}
	}

	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}
