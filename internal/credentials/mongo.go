package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDocument mirrors Record in the integrations collection.
type mongoDocument struct {
	WorkspaceID    string    `bson:"workspace_id"`
	OrganizationID *string   `bson:"organization_id"`
	Platform       string    `bson:"platform"`
	AccessToken    *string   `bson:"access_token"`
	RefreshToken   *string   `bson:"refresh_token"`
	ExpiryDate     *int64    `bson:"expiry_date"`
	Status         string    `bson:"status"`
	ConnectedAt    time.Time `bson:"connected_at,omitempty"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func (d mongoDocument) record() *Record {
	rec := &Record{
		WorkspaceID:    d.WorkspaceID,
		OrganizationID: derefString(d.OrganizationID),
		Platform:       d.Platform,
		AccessToken:    derefString(d.AccessToken),
		RefreshToken:   derefString(d.RefreshToken),
		Status:         Status(d.Status),
		ConnectedAt:    d.ConnectedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.ExpiryDate != nil {
		rec.ExpiryDate = *d.ExpiryDate
	}
	return rec
}

func optionalInt64(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

// MongoStore persists records in a MongoDB collection.
type MongoStore struct {
	integrations *mongo.Collection
	now          func() time.Time
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore creates a store backed by the integrations collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		integrations: db.Collection(DefaultTable),
		now:          time.Now,
	}
}

// EnsureIndexes creates the unique (workspace_id, platform) index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.integrations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "platform", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("idx_workspace_platform"),
	})
	if err != nil {
		return fmt.Errorf("failed to create integrations index: %w", err)
	}
	return nil
}

// ConnectMongo connects to uri and returns the named database.
func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	return client.Database(database), nil
}

func keyFilter(workspaceID, platform string) bson.M {
	return bson.M{"workspace_id": workspaceID, "platform": platform}
}

func (s *MongoStore) Get(ctx context.Context, workspaceID, platform string) (*Record, error) {
	if err := validateKey(workspaceID, platform); err != nil {
		return nil, err
	}

	var doc mongoDocument
	err := s.integrations.FindOne(ctx, keyFilter(workspaceID, platform)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential record: %w", err)
	}
	return doc.record(), nil
}

func (s *MongoStore) Upsert(ctx context.Context, rec Record) error {
	if err := validateKey(rec.WorkspaceID, rec.Platform); err != nil {
		return err
	}

	_, err := s.integrations.UpdateOne(ctx,
		keyFilter(rec.WorkspaceID, rec.Platform),
		bson.M{"$set": upsertFields(rec, s.now().UTC())},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert credential record: %w", err)
	}
	return nil
}

// upsertFields is the $set document of an upsert. Empty optional values are
// stored as null, matching the SQL and REST backends.
func upsertFields(rec Record, now time.Time) bson.M {
	set := bson.M{
		"organization_id": optionalString(rec.OrganizationID),
		"access_token":    optionalString(rec.AccessToken),
		"refresh_token":   optionalString(rec.RefreshToken),
		"expiry_date":     optionalInt64(rec.ExpiryDate),
		"status":          string(rec.Status),
		"updated_at":      now,
	}
	if !rec.ConnectedAt.IsZero() {
		set["connected_at"] = rec.ConnectedAt.UTC()
	}
	return set
}

func (s *MongoStore) UpdateTokens(ctx context.Context, workspaceID, platform string, tokens Tokens) error {
	if err := validateKey(workspaceID, platform); err != nil {
		return err
	}

	res, err := s.integrations.UpdateOne(ctx, keyFilter(workspaceID, platform), bson.M{"$set": bson.M{
		"access_token":  optionalString(tokens.AccessToken),
		"refresh_token": optionalString(tokens.RefreshToken),
		"expiry_date":   optionalInt64(tokens.ExpiryDate),
		"updated_at":    s.now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Clear(ctx context.Context, workspaceID, platform string) error {
	if err := validateKey(workspaceID, platform); err != nil {
		return err
	}

	_, err := s.integrations.UpdateOne(ctx, keyFilter(workspaceID, platform), bson.M{"$set": bson.M{
		"access_token":  nil,
		"refresh_token": nil,
		"expiry_date":   nil,
		"status":        string(StatusDisconnected),
		"updated_at":    s.now().UTC(),
	}}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to clear credential record: %w", err)
	}
	return nil
}
