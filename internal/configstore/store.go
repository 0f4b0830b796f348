// Package configstore provides SQLite-backed persistence for the tracker's
// connection settings: one global settings row plus per-tenant overrides.
// Resolution passes only read from it; the admin CLI and the settings API
// write to it.
package configstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Override is a tenant-scoped replacement for the global connection
// settings. A stored row with is_overriding unset behaves as if absent.
type Override struct {
	TenantID            string
	BaseURL             string
	PersonalAccessToken string
	ReleaseNotePrefix   string
}

// Settings is the global configuration row.
type Settings struct {
	Enabled             bool
	BaseURL             string
	PersonalAccessToken string
	ReleaseNotePrefix   string
}

// Store is the settings persistence layer.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the settings database.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		id                    INTEGER PRIMARY KEY CHECK (id = 1),
		is_enabled            INTEGER NOT NULL DEFAULT 0,
		base_url              TEXT NOT NULL DEFAULT '',
		personal_access_token TEXT NOT NULL DEFAULT '',
		release_note_prefix   TEXT NOT NULL DEFAULT '',
		updated_at            DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	INSERT OR IGNORE INTO settings (id) VALUES (1);

	CREATE TABLE IF NOT EXISTS tenant_overrides (
		tenant_id             TEXT PRIMARY KEY,
		is_overriding         INTEGER NOT NULL DEFAULT 0,
		base_url              TEXT NOT NULL DEFAULT '',
		personal_access_token TEXT NOT NULL DEFAULT '',
		release_note_prefix   TEXT NOT NULL DEFAULT '',
		updated_at            DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// IsEnabled reports whether the tracker is switched on.
func (s *Store) IsEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx, `SELECT is_enabled FROM settings WHERE id = 1`).Scan(&enabled)
	return enabled, err
}

// SetEnabled switches the tracker on or off.
func (s *Store) SetEnabled(ctx context.Context, enabled bool) error {
	return s.updateSettings(ctx, `is_enabled`, enabled)
}

// BaseURL returns the configured base URL with any trailing slash trimmed.
func (s *Store) BaseURL(ctx context.Context) (string, error) {
	var baseURL string
	err := s.db.QueryRowContext(ctx, `SELECT base_url FROM settings WHERE id = 1`).Scan(&baseURL)
	return strings.TrimRight(baseURL, "/"), err
}

// SetBaseURL stores the base URL, normalized without a trailing slash.
func (s *Store) SetBaseURL(ctx context.Context, baseURL string) error {
	return s.updateSettings(ctx, `base_url`, strings.TrimRight(strings.TrimSpace(baseURL), "/"))
}

// PersonalAccessToken returns the stored token. The value is sensitive and
// must never appear in logs or error messages.
func (s *Store) PersonalAccessToken(ctx context.Context) (string, error) {
	var pat string
	err := s.db.QueryRowContext(ctx, `SELECT personal_access_token FROM settings WHERE id = 1`).Scan(&pat)
	return pat, err
}

// SetPersonalAccessToken stores the token.
func (s *Store) SetPersonalAccessToken(ctx context.Context, pat string) error {
	return s.updateSettings(ctx, `personal_access_token`, pat)
}

// ReleaseNotePrefix returns the configured release-note comment marker.
func (s *Store) ReleaseNotePrefix(ctx context.Context) (string, error) {
	var prefix string
	err := s.db.QueryRowContext(ctx, `SELECT release_note_prefix FROM settings WHERE id = 1`).Scan(&prefix)
	return prefix, err
}

// SetReleaseNotePrefix stores the release-note comment marker.
func (s *Store) SetReleaseNotePrefix(ctx context.Context, prefix string) error {
	return s.updateSettings(ctx, `release_note_prefix`, prefix)
}

// GetSettings reads the whole global settings row.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	var out Settings
	err := s.db.QueryRowContext(ctx,
		`SELECT is_enabled, base_url, personal_access_token, release_note_prefix FROM settings WHERE id = 1`).
		Scan(&out.Enabled, &out.BaseURL, &out.PersonalAccessToken, &out.ReleaseNotePrefix)
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")
	return out, err
}

// Override returns the tenant's override, or nil when the tenant has none
// active.
func (s *Store) Override(ctx context.Context, tenantID string) (*Override, error) {
	var (
		o          Override
		overriding bool
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, is_overriding, base_url, personal_access_token, release_note_prefix
		 FROM tenant_overrides WHERE tenant_id = ?`, tenantID).
		Scan(&o.TenantID, &overriding, &o.BaseURL, &o.PersonalAccessToken, &o.ReleaseNotePrefix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !overriding {
		return nil, nil
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	return &o, nil
}

// SetOverride stores or replaces a tenant override and marks it active.
func (s *Store) SetOverride(ctx context.Context, o Override) error {
	if o.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenant_overrides (tenant_id, is_overriding, base_url, personal_access_token, release_note_prefix, updated_at)
		 VALUES (?, 1, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(tenant_id) DO UPDATE SET
			is_overriding = 1,
			base_url = excluded.base_url,
			personal_access_token = excluded.personal_access_token,
			release_note_prefix = excluded.release_note_prefix,
			updated_at = CURRENT_TIMESTAMP`,
		o.TenantID, strings.TrimRight(strings.TrimSpace(o.BaseURL), "/"), o.PersonalAccessToken, o.ReleaseNotePrefix)
	return err
}

// DeleteOverride removes a tenant override.
func (s *Store) DeleteOverride(ctx context.Context, tenantID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tenant_overrides WHERE tenant_id = ?`, tenantID)
	return err
}

// ListOverrides returns every active override, ordered by tenant id.
func (s *Store) ListOverrides(ctx context.Context) ([]Override, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id, base_url, personal_access_token, release_note_prefix
		 FROM tenant_overrides WHERE is_overriding = 1 ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.TenantID, &o.BaseURL, &o.PersonalAccessToken, &o.ReleaseNotePrefix); err != nil {
			return nil, err
		}
		o.BaseURL = strings.TrimRight(o.BaseURL, "/")
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

func (s *Store) updateSettings(ctx context.Context, column string, value any) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE settings SET `+column+` = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1`, value)
	return err
}
