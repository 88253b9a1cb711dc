package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces record keys.
const DefaultRedisKeyPrefix = "garelay:"

// RedisClient is the subset of redis.Cmdable used by RedisStore.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// redisDocument is the JSON value stored per key.
type redisDocument struct {
	WorkspaceID    string    `json:"workspace_id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Platform       string    `json:"platform"`
	AccessToken    string    `json:"access_token,omitempty"`
	RefreshToken   string    `json:"refresh_token,omitempty"`
	ExpiryDate     int64     `json:"expiry_date,omitempty"`
	Status         Status    `json:"status"`
	ConnectedAt    time.Time `json:"connected_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RedisStore keeps one JSON document per (workspace, platform) key.
// Writes are plain SETs, so concurrent updates of one key resolve last-write-wins.
type RedisStore struct {
	client RedisClient
	prefix string
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store on client. An empty prefix uses DefaultRedisKeyPrefix.
func NewRedisStore(client RedisClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (s *RedisStore) key(workspaceID, platform string) string {
	return s.prefix + "integration:" + platform + ":" + workspaceID
}

func (s *RedisStore) Get(ctx context.Context, workspaceID, platform string) (*Record, error) {
	if err := validateKey(workspaceID, platform); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, workspaceID, platform)
	if err != nil {
		return nil, err
	}
	rec := Record(doc)
	return &rec, nil
}

func (s *RedisStore) Upsert(ctx context.Context, rec Record) error {
	if err := validateKey(rec.WorkspaceID, rec.Platform); err != nil {
		return err
	}
	rec.UpdatedAt = s.now()
	return s.save(ctx, redisDocument(rec))
}

func (s *RedisStore) UpdateTokens(ctx context.Context, workspaceID, platform string, tokens Tokens) error {
	if err := validateKey(workspaceID, platform); err != nil {
		return err
	}
	doc, err := s.load(ctx, workspaceID, platform)
	if err != nil {
		return err
	}
	doc.AccessToken = tokens.AccessToken
	doc.RefreshToken = tokens.RefreshToken
	doc.ExpiryDate = tokens.ExpiryDate
	doc.UpdatedAt = s.now()
	return s.save(ctx, doc)
}

func (s *RedisStore) Clear(ctx context.Context, workspaceID, platform string) error {
	if err := validateKey(workspaceID, platform); err != nil {
		return err
	}
	doc, err := s.load(ctx, workspaceID, platform)
	if errors.Is(err, ErrNotFound) {
		doc = redisDocument(clearedRecord(workspaceID, platform))
	} else if err != nil {
		return err
	}
	doc.AccessToken = ""
	doc.RefreshToken = ""
	doc.ExpiryDate = 0
	doc.Status = StatusDisconnected
	doc.UpdatedAt = s.now()
	return s.save(ctx, doc)
}

func (s *RedisStore) load(ctx context.Context, workspaceID, platform string) (redisDocument, error) {
	var doc redisDocument
	raw, err := s.client.Get(ctx, s.key(workspaceID, platform)).Bytes()
	if errors.Is(err, redis.Nil) {
		return doc, ErrNotFound
	}
	if err != nil {
		return doc, fmt.Errorf("failed to read credential record: %w", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("failed to decode credential record: %w", err)
	}
	return doc, nil
}

func (s *RedisStore) save(ctx context.Context, doc redisDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode credential record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(doc.WorkspaceID, doc.Platform), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to write credential record: %w", err)
	}
	return nil
}
