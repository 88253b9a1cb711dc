// Package sink delivers freshly exchanged credentials to their destination.
//
// The callback handler depends only on CredentialSink. StoreSink upserts the
// credential record directly, BridgeSink hands the tokens to an external
// backend over HTTP. The deployment chooses one through configuration.
package sink

import (
	"context"
	"fmt"
	"strings"
)

// Sink modes accepted by configuration.
const (
	ModeStore  = "store"
	ModeBridge = "bridge"
)

// Grant is the result of a successful code exchange.
type Grant struct {
	WorkspaceID    string
	OrganizationID string
	AccessToken    string
	RefreshToken   string
	// ExpiryDate is an absolute epoch-millisecond timestamp, 0 when unknown.
	ExpiryDate int64
}

// CredentialSink persists a Grant. Any error makes the callback fail.
type CredentialSink interface {
	Deliver(ctx context.Context, g Grant) error
	// Name identifies the sink in logs.
	Name() string
}

// ValidateMode checks that mode names a supported sink.
func ValidateMode(mode string) error {
	switch mode {
	case ModeStore, ModeBridge:
		return nil
	}
	return fmt.Errorf("invalid sink mode %q, must be one of: %s", mode, strings.Join([]string{ModeStore, ModeBridge}, ", "))
}
