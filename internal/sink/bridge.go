package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SecretHeader carries the shared secret authenticating the relay to the bridge.
const SecretHeader = "x-mcp-secret"

const (
	defaultBridgeTimeout = 10 * time.Second
	maxBridgeErrorBody   = 512
)

// bridgeRequest is the JSON body posted to the bridge.
type bridgeRequest struct {
	WorkspaceID    string       `json:"workspace_id"`
	OrganizationID string       `json:"organization_id,omitempty"`
	Tokens         bridgeTokens `json:"tokens"`
}

type bridgeTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiryDate   int64  `json:"expiry_date"`
}

// BridgeSink posts granted tokens to the primary application backend.
type BridgeSink struct {
	url        string
	secret     string
	httpClient *http.Client
}

var _ CredentialSink = (*BridgeSink)(nil)

// NewBridgeSink creates a sink posting to bridgeURL. httpClient may be nil.
func NewBridgeSink(bridgeURL, secret string, httpClient *http.Client) (*BridgeSink, error) {
	if bridgeURL == "" {
		return nil, fmt.Errorf("bridge url is required")
	}
	if secret == "" {
		return nil, fmt.Errorf("bridge secret is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultBridgeTimeout}
	}
	return &BridgeSink{url: bridgeURL, secret: secret, httpClient: httpClient}, nil
}

func (s *BridgeSink) Name() string { return ModeBridge }

// Deliver posts the grant. Any non-2xx response is an error.
func (s *BridgeSink) Deliver(ctx context.Context, g Grant) error {
	body, err := json.Marshal(bridgeRequest{
		WorkspaceID:    g.WorkspaceID,
		OrganizationID: g.OrganizationID,
		Tokens: bridgeTokens{
			AccessToken:  g.AccessToken,
			RefreshToken: g.RefreshToken,
			ExpiryDate:   g.ExpiryDate,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode bridge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build bridge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, s.secret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bridge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxBridgeErrorBody))
		return fmt.Errorf("bridge returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
