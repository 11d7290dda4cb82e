package volvoid

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/ex30link/internal/pkce"
)

// Config describes the registered Volvo developer application.
type Config struct {
	ClientID     string
	ClientSecret string
	// RedirectURL is the fixed redirect target registered for the application.
	RedirectURL string
	// Scopes defaults to DefaultScopes.
	Scopes []string
	// Endpoint defaults to Endpoint.
	Endpoint oauth2.Endpoint
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

// clientConfig holds configuration for New.
type clientConfig struct {
	baseTransport http.RoundTripper
	timeout       time.Duration
}

// WithTransport sets a custom base transport for token requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *clientConfig) {
		c.baseTransport = transport
	}
}

// WithTimeout bounds every token request. Defaults to 30s.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// Tokens is the result of a successful authorization-code exchange.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds as reported by Volvo ID.
	ExpiresIn int64
	Expiry    time.Time
}

// Client performs Volvo ID authorization requests.
type Client struct {
	oauth      oauth2.Config
	httpClient *http.Client
}

// New creates a Client. No I/O is performed.
func New(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("missing client id")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("missing redirect url")
	}

	c := &clientConfig{
		baseTransport: http.DefaultTransport,
		timeout:       30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = Endpoint
	}
	if endpoint.AuthStyle == oauth2.AuthStyleAutoDetect {
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	return &Client{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
		// Bounds token requests even for refreshes, where oauth2 uses context.Background internally
		httpClient: &http.Client{
			Timeout:   c.timeout,
			Transport: c.baseTransport,
		},
	}, nil
}

// RedirectURL returns the registered redirect target.
func (c *Client) RedirectURL() string {
	return c.oauth.RedirectURL
}

// AuthCodeURL builds the authorization URL for a session's state and S256 challenge.
func (c *Client) AuthCodeURL(state, challenge string) string {
	return c.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.MethodS256),
	)
}

// Exchange trades an authorization code and its PKCE verifier for tokens.
// It never retries: an authorization code is single-use.
func (c *Client) Exchange(ctx context.Context, code, verifier, redirectURI string) (Tokens, error) {
	cfg := c.oauth
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}

	// oauth2 package injects custom HTTP clients via context (oauth2.HTTPClient key)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Tokens{}, classify(err)
	}
	if token.RefreshToken == "" {
		return Tokens{}, &Error{Kind: ErrUnexpectedResponse, Err: fmt.Errorf("response carries no refresh token")}
	}

	return Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    token.ExpiresIn,
		Expiry:       token.Expiry,
	}, nil
}

// TokenSource returns a token source that refreshes access tokens with refreshToken.
// Rotated refresh tokens are visible in the RefreshToken field of returned tokens.
func (c *Client) TokenSource(refreshToken string) oauth2.TokenSource {
	initialToken := &oauth2.Token{
		RefreshToken: refreshToken,
		// AccessToken populated by first Token() call
	}

	// Since TokenSource.Token() has no context parameter, we store the context
	// at construction time per oauth2's documented API.
	oauthCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)

	return &classifyingTokenSource{
		source: c.oauth.TokenSource(oauthCtx, initialToken),
	}
}

// classifyingTokenSource classifies refresh failures like exchange failures.
type classifyingTokenSource struct {
	source oauth2.TokenSource
}

// Compile-time check to ensure classifyingTokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*classifyingTokenSource)(nil)

func (ts *classifyingTokenSource) Token() (*oauth2.Token, error) {
	token, err := ts.source.Token()
	if err != nil {
		return nil, classify(err)
	}
	return token, nil
}
