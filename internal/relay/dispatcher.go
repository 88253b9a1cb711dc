package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/garelay/internal/analytics"
	"github.com/teemow/garelay/internal/credentials"
	"github.com/teemow/garelay/internal/instrumentation"
	"github.com/teemow/garelay/internal/logging"
)

var (
	// ErrNotConnected means the workspace has no usable credentials and must
	// run the authorization flow again.
	ErrNotConnected = errors.New("not connected to Google Analytics")

	// ErrInvalidRequest wraps missing or malformed request fields.
	ErrInvalidRequest = errors.New("invalid request")
)

// Refresher obtains a new access token from a refresh token.
type Refresher interface {
	Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
}

// Request is one tool invocation for a workspace.
type Request struct {
	WorkspaceID string
	Tool        string
	Params      analytics.Params
}

// Config holds the dependencies of a Dispatcher. Metrics, Audit and Logger
// are optional.
type Config struct {
	Store     credentials.Store
	Refresher Refresher
	Factory   analytics.Factory
	Metrics   *instrumentation.Metrics
	Audit     *instrumentation.AuditLogger
	Logger    *slog.Logger
}

// Dispatcher executes queries and disconnects workspaces.
type Dispatcher struct {
	store     credentials.Store
	refresher Refresher
	factory   analytics.Factory
	metrics   *instrumentation.Metrics
	audit     *instrumentation.AuditLogger
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher from cfg.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	switch {
	case cfg.Store == nil:
		return nil, fmt.Errorf("credential store is required")
	case cfg.Refresher == nil:
		return nil, fmt.Errorf("token refresher is required")
	case cfg.Factory == nil:
		return nil, fmt.Errorf("analytics client factory is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		store:     cfg.Store,
		refresher: cfg.Refresher,
		factory:   cfg.Factory,
		metrics:   cfg.Metrics,
		audit:     cfg.Audit,
		logger:    logging.WithOperation(logger, "relay"),
		now:       time.Now,
	}, nil
}

// Query runs req and returns the analytics API response unmodified.
//
// Errors: ErrInvalidRequest, *analytics.InvalidParamError and
// *analytics.UnknownToolError are caller errors; ErrNotConnected means no
// usable credentials; anything else is a downstream failure.
func (d *Dispatcher) Query(ctx context.Context, req Request) (interface{}, error) {
	if req.WorkspaceID == "" {
		return nil, fmt.Errorf("%w: workspace_id is required", ErrInvalidRequest)
	}
	if req.Tool == "" {
		return nil, fmt.Errorf("%w: tool is required", ErrInvalidRequest)
	}

	ctx, span := instrumentation.StartToolSpan(ctx, req.Tool)
	defer span.End()

	audit := instrumentation.NewQueryAudit(req.Tool, req.WorkspaceID).WithSpanContext(ctx)
	if property, err := req.Params.PropertyName(); err == nil {
		audit.Property = property
	}

	data, refreshed, err := d.query(ctx, req)

	audit.Refreshed = refreshed
	audit.Complete(err)
	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().
		WithProperty(audit.Property).
		WithRefreshed(refreshed).
		Build()...)
	d.metrics.RecordQuery(ctx, req.Tool, audit.Status(), req.WorkspaceID, audit.Duration)
	d.audit.LogQuery(audit)

	if err != nil {
		instrumentation.SetSpanError(span, err)
		d.logger.Warn("query failed",
			logging.Workspace(req.WorkspaceID),
			logging.Tool(req.Tool),
			logging.Property(audit.Property),
			logging.Err(err))
		return nil, err
	}
	instrumentation.SetSpanSuccess(span)
	return data, nil
}

func (d *Dispatcher) query(ctx context.Context, req Request) (interface{}, bool, error) {
	rec, err := d.loadCredentials(ctx, req.WorkspaceID)
	if err != nil {
		return nil, false, err
	}

	tokens, refreshed, err := d.ensureFresh(ctx, req.WorkspaceID, rec.Tokens())
	if err != nil {
		return nil, refreshed, err
	}

	tool, err := analytics.ParseTool(req.Tool)
	if err != nil {
		return nil, refreshed, err
	}

	api, err := d.factory.NewAPI(ctx, tokens.OAuth2())
	if err != nil {
		return nil, refreshed, fmt.Errorf("failed to create analytics client: %w", err)
	}

	data, err := analytics.Execute(ctx, api, tool, req.Params)
	return data, refreshed, err
}

func (d *Dispatcher) loadCredentials(ctx context.Context, workspaceID string) (*credentials.Record, error) {
	rec, err := d.store.Get(ctx, workspaceID, credentials.PlatformGoogleAnalytics)
	if errors.Is(err, credentials.ErrNotFound) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if !rec.HasCredentials() {
		return nil, ErrNotConnected
	}
	return rec, nil
}

// ensureFresh refreshes expired tokens once and persists the result before
// returning it. It reports whether a refresh happened.
func (d *Dispatcher) ensureFresh(ctx context.Context, workspaceID string, tokens credentials.Tokens) (credentials.Tokens, bool, error) {
	if !Expired(tokens, d.now()) {
		return tokens, false, nil
	}

	fresh, err := d.refresher.Refresh(ctx, tokens.OAuth2())
	if err != nil {
		d.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		return tokens, false, fmt.Errorf("failed to refresh access token: %w", err)
	}
	d.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)

	merged := MergeRefreshed(tokens, fresh)
	if err := d.store.UpdateTokens(ctx, workspaceID, credentials.PlatformGoogleAnalytics, merged); err != nil {
		return tokens, true, fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	d.logger.Debug("access token refreshed",
		logging.Workspace(workspaceID),
		slog.Bool("refresh_token_rotated", merged.RefreshToken != tokens.RefreshToken))
	return merged, true, nil
}

// Expired reports whether tokens carry an expiry that now has passed.
// Tokens without an expiry never count as expired.
func Expired(tokens credentials.Tokens, now time.Time) bool {
	return tokens.ExpiryDate != 0 && now.UnixMilli() > tokens.ExpiryDate
}

// MergeRefreshed returns the tokens to store after a refresh. The previous
// refresh token is kept when the response does not carry a new one.
func MergeRefreshed(prev credentials.Tokens, fresh *oauth2.Token) credentials.Tokens {
	merged := credentials.TokensFromOAuth2(fresh)
	if merged.RefreshToken == "" {
		merged.RefreshToken = prev.RefreshToken
	}
	return merged
}

// Disconnect clears the credentials of workspaceID. It succeeds for
// workspaces that were never connected.
func (d *Dispatcher) Disconnect(ctx context.Context, workspaceID string) error {
	if workspaceID == "" {
		return fmt.Errorf("%w: workspace_id is required", ErrInvalidRequest)
	}

	if err := d.store.Clear(ctx, workspaceID, credentials.PlatformGoogleAnalytics); err != nil {
		d.logger.Error("disconnect failed", logging.Workspace(workspaceID), logging.Err(err))
		return fmt.Errorf("failed to disconnect: %w", err)
	}

	d.logger.Info("workspace disconnected", logging.Workspace(workspaceID))
	return nil
}
