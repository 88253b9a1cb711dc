package credentials

import (
	"time"

	"golang.org/x/oauth2"
)

// PlatformGoogleAnalytics discriminates Google Analytics credentials from
// other integrations sharing the same store.
const PlatformGoogleAnalytics = "google_analytics"

// Status is the connection state of a Record.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Tokens is the credential triple persisted after exchange and refresh.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiryDate is an absolute epoch-millisecond timestamp, 0 when unknown.
	ExpiryDate int64 `json:"expiry_date"`
}

// Record is the stored connection of one workspace to one platform.
// Empty token strings represent absent (null) credentials.
type Record struct {
	WorkspaceID    string
	OrganizationID string
	Platform       string
	AccessToken    string
	RefreshToken   string
	ExpiryDate     int64
	Status         Status
	ConnectedAt    time.Time
	UpdatedAt      time.Time
}

// HasCredentials reports whether the record can authorize API calls.
func (r *Record) HasCredentials() bool {
	return r != nil && r.Status != StatusDisconnected && r.AccessToken != ""
}

// Tokens returns the credential triple of the record.
func (r *Record) Tokens() Tokens {
	return Tokens{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiryDate:   r.ExpiryDate,
	}
}

// TokensFromOAuth2 converts an oauth2 token into the stored representation.
func TokensFromOAuth2(t *oauth2.Token) Tokens {
	if t == nil {
		return Tokens{}
	}
	return Tokens{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiryDate:   ExpiryMillis(t.Expiry),
	}
}

// OAuth2 builds a fresh oauth2 token value from the stored triple.
func (t Tokens) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       ExpiryTime(t.ExpiryDate),
	}
}

// ExpiryMillis converts a time to epoch milliseconds, 0 for the zero time.
func ExpiryMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// ExpiryTime converts epoch milliseconds to a time, the zero time for 0.
func ExpiryTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
