package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/garelay/internal/instrumentation"
)

// ErrNoRefreshToken is returned when a refresh is attempted without a refresh token.
var ErrNoRefreshToken = errors.New("no refresh token available")

// NewOAuthConfig returns the OAuth2 configuration for the Analytics integration.
// The returned config is never mutated after construction and may be shared.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	scopes := make([]string, len(AnalyticsScopes))
	copy(scopes, AnalyticsScopes)

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
	}
}

// Client performs the OAuth2 round trips against Google.
type Client struct {
	config     *oauth2.Config
	httpClient *http.Client
	metrics    *instrumentation.Metrics
}

// NewClient creates a Client. httpClient may be nil to use http.DefaultClient.
func NewClient(config *oauth2.Config, httpClient *http.Client) *Client {
	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// SetMetrics records token exchanges and refreshes on m. Call it before the
// client is shared.
func (c *Client) SetMetrics(m *instrumentation.Metrics) {
	c.metrics = m
}

// AuthURL returns the consent URL for the given state token. Offline access
// and forced approval make Google issue a refresh token on every consent,
// including re-authorizations.
func (c *Client) AuthURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token pair.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is empty")
	}

	var token *oauth2.Token
	err := c.observe(ctx, instrumentation.OperationExchange, func(ctx context.Context) error {
		var err error
		token, err = c.config.Exchange(c.withHTTPClient(ctx), code)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return token, nil
}

// Refresh obtains a new access token using the refresh token of the given
// token. The token endpoint is always contacted, regardless of the expiry the
// caller holds.
func (c *Client) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if token == nil || token.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	var newToken *oauth2.Token
	err := c.observe(ctx, instrumentation.OperationRefresh, func(ctx context.Context) error {
		// A token without an access token is never valid, so the source refreshes.
		ts := c.config.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: token.RefreshToken})
		var err error
		newToken, err = ts.Token()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	return newToken, nil
}

// observe wraps one token endpoint call in a span and records its outcome.
func (c *Client) observe(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceOAuth, operation)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceOAuth, operation, status, time.Since(start))
	return err
}

// HTTPClient returns an HTTP client that authorizes requests with the given
// token as-is. It never refreshes, so each request carries exactly the
// credential it was built with.
func (c *Client) HTTPClient(ctx context.Context, token *oauth2.Token) *http.Client {
	return oauth2.NewClient(c.withHTTPClient(ctx), oauth2.StaticTokenSource(token))
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}
