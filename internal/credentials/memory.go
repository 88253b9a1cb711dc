package credentials

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/garelay/internal/logging"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
	logger  *slog.Logger
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
		logger:  slog.Default(),
	}
}

// SetLogger sets a custom logger for the store
func (s *MemoryStore) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

func memoryKey(workspaceID, platform string) string {
	return workspaceID + "\x00" + platform
}

func (s *MemoryStore) Get(_ context.Context, workspaceID, platform string) (*Record, error) {
	if err := validateKey(workspaceID, platform); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[memoryKey(workspaceID, platform)]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) Upsert(_ context.Context, rec Record) error {
	if err := validateKey(rec.WorkspaceID, rec.Platform); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.UpdatedAt = s.now()
	s.records[memoryKey(rec.WorkspaceID, rec.Platform)] = rec
	s.logger.Debug("upserted credential record",
		logging.Workspace(rec.WorkspaceID),
		logging.Platform(rec.Platform),
		slog.String("status", string(rec.Status)))
	return nil
}

func (s *MemoryStore) UpdateTokens(_ context.Context, workspaceID, platform string, tokens Tokens) error {
	if err := validateKey(workspaceID, platform); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(workspaceID, platform)
	rec, ok := s.records[key]
	if !ok {
		return ErrNotFound
	}
	rec.AccessToken = tokens.AccessToken
	rec.RefreshToken = tokens.RefreshToken
	rec.ExpiryDate = tokens.ExpiryDate
	rec.UpdatedAt = s.now()
	s.records[key] = rec
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, workspaceID, platform string) error {
	if err := validateKey(workspaceID, platform); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(workspaceID, platform)
	rec, ok := s.records[key]
	if !ok {
		rec = clearedRecord(workspaceID, platform)
	}
	rec.AccessToken = ""
	rec.RefreshToken = ""
	rec.ExpiryDate = 0
	rec.Status = StatusDisconnected
	rec.UpdatedAt = s.now()
	s.records[key] = rec

	s.logger.Info("cleared credential record",
		logging.Workspace(workspaceID),
		logging.Platform(platform))
	return nil
}
