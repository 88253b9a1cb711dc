package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/teemow/garelay/internal/credentials"
)

// StoreSink upserts the credential record keyed by (workspace, google_analytics).
type StoreSink struct {
	store credentials.Store
	now   func() time.Time
}

var _ CredentialSink = (*StoreSink)(nil)

// NewStoreSink creates a sink writing to store.
func NewStoreSink(store credentials.Store) *StoreSink {
	return &StoreSink{store: store, now: time.Now}
}

func (s *StoreSink) Name() string { return ModeStore }

// Deliver marks the workspace connected with the granted tokens.
func (s *StoreSink) Deliver(ctx context.Context, g Grant) error {
	err := s.store.Upsert(ctx, credentials.Record{
		WorkspaceID:    g.WorkspaceID,
		OrganizationID: g.OrganizationID,
		Platform:       credentials.PlatformGoogleAnalytics,
		AccessToken:    g.AccessToken,
		RefreshToken:   g.RefreshToken,
		ExpiryDate:     g.ExpiryDate,
		Status:         credentials.StatusConnected,
		ConnectedAt:    s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}
