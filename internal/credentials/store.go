package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("credential record not found")

// Store is the persistence contract for credential records.
type Store interface {
	// Get returns the record for the key or ErrNotFound.
	Get(ctx context.Context, workspaceID, platform string) (*Record, error)

	// Upsert inserts the record or replaces the existing one with the same key.
	Upsert(ctx context.Context, rec Record) error

	// UpdateTokens overwrites the credential triple of an existing record.
	// It returns ErrNotFound when the record does not exist.
	UpdateTokens(ctx context.Context, workspaceID, platform string, tokens Tokens) error

	// Clear removes the credentials of the key and marks it disconnected.
	// It succeeds when the key has no record.
	Clear(ctx context.Context, workspaceID, platform string) error
}

// Store types accepted by configuration.
const (
	TypeMemory = "memory"
	TypeSQL    = "sql"
	TypeRedis  = "redis"
	TypeMongo  = "mongo"
	TypeREST   = "rest"
)

// ValidTypes lists every supported store type.
var ValidTypes = []string{TypeREST, TypeSQL, TypeRedis, TypeMongo, TypeMemory}

// ValidateType checks that t names a supported store.
func ValidateType(t string) error {
	for _, v := range ValidTypes {
		if t == v {
			return nil
		}
	}
	return fmt.Errorf("invalid store type %q, must be one of: %s", t, strings.Join(ValidTypes, ", "))
}

func validateKey(workspaceID, platform string) error {
	if workspaceID == "" {
		return fmt.Errorf("workspace id cannot be empty")
	}
	if platform == "" {
		return fmt.Errorf("platform cannot be empty")
	}
	return nil
}

func clearedRecord(workspaceID, platform string) Record {
	return Record{
		WorkspaceID: workspaceID,
		Platform:    platform,
		Status:      StatusDisconnected,
	}
}
