package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// integrationRow is the table layout shared by the SQL and REST stores.
type integrationRow struct {
	ID             string     `gorm:"primaryKey" json:"-"`
	WorkspaceID    string     `gorm:"not null;uniqueIndex:idx_workspace_platform" json:"workspace_id"`
	Platform       string     `gorm:"not null;uniqueIndex:idx_workspace_platform" json:"platform"`
	OrganizationID *string    `json:"organization_id,omitempty"`
	AccessToken    *string    `json:"access_token"`
	RefreshToken   *string    `json:"refresh_token"`
	ExpiryDate     *int64     `json:"expiry_date"`
	Status         string     `gorm:"not null;default:disconnected" json:"status"`
	ConnectedAt    *time.Time `json:"connected_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// DefaultTable is the table holding credential records.
const DefaultTable = "workspace_integrations"

func (integrationRow) TableName() string {
	return DefaultTable
}

// Columns overwritten on conflict. The id, organization and connected_at
// columns are only rewritten by a full upsert.
var (
	upsertColumns = []string{"organization_id", "access_token", "refresh_token", "expiry_date", "status", "connected_at", "updated_at"}
	clearColumns  = []string{"access_token", "refresh_token", "expiry_date", "status", "updated_at"}
)

func rowFromRecord(rec Record) integrationRow {
	row := integrationRow{
		WorkspaceID:    rec.WorkspaceID,
		Platform:       rec.Platform,
		OrganizationID: optionalString(rec.OrganizationID),
		AccessToken:    optionalString(rec.AccessToken),
		RefreshToken:   optionalString(rec.RefreshToken),
		Status:         string(rec.Status),
		UpdatedAt:      rec.UpdatedAt,
	}
	if rec.ExpiryDate != 0 {
		expiry := rec.ExpiryDate
		row.ExpiryDate = &expiry
	}
	if !rec.ConnectedAt.IsZero() {
		connectedAt := rec.ConnectedAt
		row.ConnectedAt = &connectedAt
	}
	return row
}

func (r integrationRow) record() *Record {
	rec := &Record{
		WorkspaceID:    r.WorkspaceID,
		Platform:       r.Platform,
		OrganizationID: derefString(r.OrganizationID),
		AccessToken:    derefString(r.AccessToken),
		RefreshToken:   derefString(r.RefreshToken),
		Status:         Status(r.Status),
		UpdatedAt:      r.UpdatedAt,
	}
	if r.ExpiryDate != nil {
		rec.ExpiryDate = *r.ExpiryDate
	}
	if r.ConnectedAt != nil {
		rec.ConnectedAt = *r.ConnectedAt
	}
	return rec
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SQLStore persists records through gorm.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Store = (*SQLStore)(nil)

// OpenSQLite opens (and migrates) a SQLite database at path.
func OpenSQLite(path string, debug bool) (*gorm.DB, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return db, nil
}

// NewSQLStore creates a store on db and migrates the integrations table.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&integrationRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate %s: %w", DefaultTable, err)
	}
	return &SQLStore{db: db, now: time.Now}, nil
}

func (s *SQLStore) Get(ctx context.Context, workspaceID, platform string) (*Record, error) {
	if err := validateKey(workspaceID, platform); err != nil {
		return nil, err
	}

	var row integrationRow
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND platform = ?", workspaceID, platform).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential record: %w", err)
	}
	return row.record(), nil
}

func (s *SQLStore) Upsert(ctx context.Context, rec Record) error {
	if err := validateKey(rec.WorkspaceID, rec.Platform); err != nil {
		return err
	}
	rec.UpdatedAt = s.now()
	return s.upsert(ctx, rowFromRecord(rec), upsertColumns)
}

func (s *SQLStore) UpdateTokens(ctx context.Context, workspaceID, platform string, tokens Tokens) error {
	if err := validateKey(workspaceID, platform); err != nil {
		return err
	}

	updates := map[string]interface{}{
		"access_token":  optionalString(tokens.AccessToken),
		"refresh_token": optionalString(tokens.RefreshToken),
		"expiry_date":   nil,
		"updated_at":    s.now(),
	}
	if tokens.ExpiryDate != 0 {
		updates["expiry_date"] = tokens.ExpiryDate
	}

	res := s.db.WithContext(ctx).
		Model(&integrationRow{}).
		Where("workspace_id = ? AND platform = ?", workspaceID, platform).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update tokens: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context, workspaceID, platform string) error {
	if err := validateKey(workspaceID, platform); err != nil {
		return err
	}
	rec := clearedRecord(workspaceID, platform)
	rec.UpdatedAt = s.now()
	return s.upsert(ctx, rowFromRecord(rec), clearColumns)
}

func (s *SQLStore) upsert(ctx context.Context, row integrationRow, columns []string) error {
	row.ID = uuid.NewString()
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "platform"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert credential record: %w", err)
	}
	return nil
}
