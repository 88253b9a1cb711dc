// Package google wraps the Google OAuth2 endpoints used by the relay.
//
// It builds the oauth2.Config carrying the Analytics scopes, produces the
// consent URL (offline access, forced approval), exchanges authorization codes
// and refreshes expired access tokens. Every call takes the token it operates
// on as an argument, so no credential state is shared between requests.
package google
