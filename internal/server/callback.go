package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/teemow/garelay/internal/credentials"
	"github.com/teemow/garelay/internal/instrumentation"
	"github.com/teemow/garelay/internal/logging"
	"github.com/teemow/garelay/internal/sink"
	"github.com/teemow/garelay/internal/state"
)

// fallbackRedirect is used when the callback cannot recover any redirect URL.
const fallbackRedirect = "/"

// callbackResult is the outcome of one authorization callback.
type callbackResult struct {
	// redirectURL is where the user agent is sent. On failure it is a best
	// effort recovery.
	redirectURL    string
	workspaceID    string
	organizationID string
	err            error
}

// handleCallback completes the authorization and always redirects.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	result := s.completeAuthorization(r.Context(), r.URL.Query())

	if result.err != nil {
		s.config.Metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultFailure)
		s.logger.Error("authorization callback failed",
			logging.Workspace(result.workspaceID),
			logging.Redirect(result.redirectURL),
			logging.Err(result.err))
	} else {
		s.config.Metrics.RecordOAuthAuth(r.Context(), instrumentation.OAuthResultSuccess)
		s.logger.Info("workspace connected",
			logging.Workspace(result.workspaceID),
			logging.Organization(result.organizationID),
			logging.Redirect(result.redirectURL),
			slog.String("sink", s.config.Sink.Name()))
	}

	http.Redirect(w, r, callbackRedirect(result), http.StatusFound)
}

func (s *Server) completeAuthorization(ctx context.Context, q url.Values) callbackResult {
	payload, err := state.Decode(q.Get("state"))
	if err != nil {
		return callbackResult{redirectURL: redirectParam(q), err: err}
	}

	result := callbackResult{
		redirectURL:    payload.RedirectURL,
		workspaceID:    payload.WorkspaceID,
		organizationID: payload.OrganizationID,
	}

	if providerErr := q.Get("error"); providerErr != "" {
		result.err = fmt.Errorf("authorization denied by provider: %s", providerErr)
		return result
	}

	token, err := s.config.Authorizer.Exchange(ctx, q.Get("code"))
	if err != nil {
		result.err = err
		return result
	}

	grant := sink.Grant{
		WorkspaceID:    payload.WorkspaceID,
		OrganizationID: payload.OrganizationID,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		ExpiryDate:     credentials.ExpiryMillis(token.Expiry),
	}
	if grant.AccessToken == "" {
		result.err = errors.New("token response has no access token")
		return result
	}

	if err := s.config.Sink.Deliver(ctx, grant); err != nil {
		s.config.Metrics.RecordSinkDelivery(ctx, s.config.Sink.Name(), instrumentation.StatusError)
		result.err = fmt.Errorf("failed to deliver credentials to %s sink: %w", s.config.Sink.Name(), err)
		return result
	}
	s.config.Metrics.RecordSinkDelivery(ctx, s.config.Sink.Name(), instrumentation.StatusSuccess)

	return result
}

// callbackRedirect builds the final location for result, appending
// success=true or error=auth_failed to the redirect URL's query.
func callbackRedirect(result callbackResult) string {
	target := result.redirectURL
	if target == "" {
		target = fallbackRedirect
	}

	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: fallbackRedirect}
	}

	q := u.Query()
	if result.err == nil {
		q.Set("success", "true")
		q.Set("provider", credentials.PlatformGoogleAnalytics)
	} else {
		q.Set("error", "auth_failed")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// redirectParam reads the caller's redirect URL, accepting redirect_uri as
// an alias of redirect_url.
func redirectParam(q url.Values) string {
	if v := q.Get("redirect_url"); v != "" {
		return v
	}
	return q.Get("redirect_uri")
}
