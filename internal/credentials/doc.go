// Package credentials persists the OAuth credentials of a workspace.
//
// A Record is keyed by (workspace_id, platform) and there is at most one
// record per key: every backend implements Upsert with conflict resolution on
// that pair. Backends:
//
//   - MemoryStore: process-local map, for development and tests
//   - SQLStore: gorm over SQLite
//   - RedisStore: JSON documents in Redis
//   - MongoStore: documents in a MongoDB collection
//   - RESTStore: a PostgREST-compatible HTTP table (e.g. Supabase)
//
// Tokens are stored as-is. Encryption at rest is the backend's concern.
package credentials
