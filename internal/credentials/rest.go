package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxErrorBody bounds how much of an error response is quoted in errors.
const maxErrorBody = 512

// RESTStoreConfig configures a RESTStore.
type RESTStoreConfig struct {
	// BaseURL is the project URL, e.g. https://xyz.supabase.co.
	BaseURL string
	// ServiceKey is sent as both the apikey header and the bearer token.
	ServiceKey string
	// Table defaults to DefaultTable.
	Table string
	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
}

// RESTStore talks to a PostgREST table such as the one Supabase exposes.
type RESTStore struct {
	endpoint   string
	serviceKey string
	httpClient *http.Client
	now        func() time.Time
}

var _ Store = (*RESTStore)(nil)

// NewRESTStore validates cfg and returns a store.
func NewRESTStore(cfg RESTStoreConfig) (*RESTStore, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("store url is required")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("store service key is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid store url: %w", err)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &RESTStore{
		endpoint:   strings.TrimSuffix(cfg.BaseURL, "/") + "/rest/v1/" + url.PathEscape(cfg.Table),
		serviceKey: cfg.ServiceKey,
		httpClient: cfg.HTTPClient,
		now:        time.Now,
	}, nil
}

func restKeyQuery(workspaceID, platform string) url.Values {
	q := url.Values{}
	q.Set("workspace_id", "eq."+workspaceID)
	q.Set("platform", "eq."+platform)
	return q
}

func (s *RESTStore) Get(ctx context.Context, workspaceID, platform string) (*Record, error) {
	if err := validateKey(workspaceID, platform); err != nil {
		return nil, err
	}

	q := restKeyQuery(workspaceID, platform)
	q.Set("select", "*")
	q.Set("limit", "1")

	var rows []integrationRow
	if err := s.do(ctx, http.MethodGet, q, nil, "", &rows); err != nil {
		return nil, fmt.Errorf("failed to load credential record: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].record(), nil
}

func (s *RESTStore) Upsert(ctx context.Context, rec Record) error {
	if err := validateKey(rec.WorkspaceID, rec.Platform); err != nil {
		return err
	}
	rec.UpdatedAt = s.now().UTC()
	if err := s.upsert(ctx, rowFromRecord(rec)); err != nil {
		return fmt.Errorf("failed to upsert credential record: %w", err)
	}
	return nil
}

func (s *RESTStore) UpdateTokens(ctx context.Context, workspaceID, platform string, tokens Tokens) error {
	if err := validateKey(workspaceID, platform); err != nil {
		return err
	}

	body := map[string]interface{}{
		"access_token":  optionalString(tokens.AccessToken),
		"refresh_token": optionalString(tokens.RefreshToken),
		"expiry_date":   optionalInt64(tokens.ExpiryDate),
		"updated_at":    s.now().UTC(),
	}

	var rows []integrationRow
	err := s.do(ctx, http.MethodPatch, restKeyQuery(workspaceID, platform), body, "return=representation", &rows)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RESTStore) Clear(ctx context.Context, workspaceID, platform string) error {
	if err := validateKey(workspaceID, platform); err != nil {
		return err
	}
	rec := clearedRecord(workspaceID, platform)
	rec.UpdatedAt = s.now().UTC()
	if err := s.upsert(ctx, rowFromRecord(rec)); err != nil {
		return fmt.Errorf("failed to clear credential record: %w", err)
	}
	return nil
}

func (s *RESTStore) upsert(ctx context.Context, row integrationRow) error {
	q := url.Values{}
	q.Set("on_conflict", "workspace_id,platform")
	return s.do(ctx, http.MethodPost, q, row, "resolution=merge-duplicates,return=minimal", nil)
}

func (s *RESTStore) do(ctx context.Context, method string, query url.Values, body interface{}, prefer string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+"?"+query.Encode(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("store returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
