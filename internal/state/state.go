// Package state encodes the correlation payload carried through the Google
// consent screen in the OAuth2 state parameter.
//
// The token is standard base64 over compact JSON. It carries no signature, so
// a well-formed but forged value decodes successfully; callers must treat the
// decoded fields as untrusted input.
package state

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidState is returned for tokens that are not base64 JSON payloads.
var ErrInvalidState = errors.New("invalid state token")

// Payload is the data round-tripped between /auth/init and /callback.
type Payload struct {
	WorkspaceID    string `json:"workspace_id"`
	OrganizationID string `json:"organization_id,omitempty"`
	RedirectURL    string `json:"redirect_url"`
}

// Encode returns the state token for p.
func Encode(p Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses a state token produced by Encode.
func Decode(token string) (Payload, error) {
	var p Payload
	if token == "" {
		return p, fmt.Errorf("%w: empty", ErrInvalidState)
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if p.WorkspaceID == "" || p.RedirectURL == "" {
		return p, fmt.Errorf("%w: missing workspace_id or redirect_url", ErrInvalidState)
	}
	return p, nil
}
