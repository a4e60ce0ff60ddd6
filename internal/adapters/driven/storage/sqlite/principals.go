package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
)

const principalColumns = `id, name, tenant_id, client_id, client_secret, authority_url, graph_url,
	scopes, enabled, token_cache, token_expires_at, last_token_refresh, created_at, updated_at`

// GetPrincipal loads one service principal.
func (s *Store) GetPrincipal(ctx context.Context, id string) (*domain.ServicePrincipal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id = ?`, id)
	return scanPrincipal(row)
}

// ListPrincipals returns all principals, optionally only the enabled ones.
func (s *Store) ListPrincipals(ctx context.Context, enabledOnly bool) ([]domain.ServicePrincipal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query principals: %w", err)
	}
	defer rows.Close()

	var principals []domain.ServicePrincipal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		principals = append(principals, *p)
	}
	return principals, rows.Err()
}

// SavePrincipal upserts a principal, token state included.
func (s *Store) SavePrincipal(ctx context.Context, p *domain.ServicePrincipal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO principals
		(id, name, tenant_id, client_id, client_secret, authority_url, graph_url,
		 scopes, enabled, token_cache, token_expires_at, last_token_refresh, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			tenant_id = excluded.tenant_id,
			client_id = excluded.client_id,
			client_secret = excluded.client_secret,
			authority_url = excluded.authority_url,
			graph_url = excluded.graph_url,
			scopes = excluded.scopes,
			enabled = excluded.enabled,
			token_cache = excluded.token_cache,
			token_expires_at = excluded.token_expires_at,
			last_token_refresh = excluded.last_token_refresh,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.TenantID, p.ClientID, p.ClientSecret, p.AuthorityURL, p.GraphURL,
		marshalJSON(p.Scopes), p.Enabled, p.TokenCache,
		nullTime(p.TokenExpiresAt), nullTime(p.LastTokenRefresh), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save principal: %w", err)
	}
	return nil
}

// UpdateTokenState writes the cache blob and both timestamps in one
// statement.
func (s *Store) UpdateTokenState(ctx context.Context, id, cacheBlob string, expiresAt, refreshedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE principals
		SET token_cache = ?, token_expires_at = ?, last_token_refresh = ?, updated_at = ?
		WHERE id = ?
	`, cacheBlob, expiresAt, refreshedAt, refreshedAt, id)
	if err != nil {
		return fmt.Errorf("update token state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (*domain.ServicePrincipal, error) {
	var (
		p         domain.ServicePrincipal
		scopes    string
		expires   sql.NullTime
		refreshed sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Name, &p.TenantID, &p.ClientID, &p.ClientSecret,
		&p.AuthorityURL, &p.GraphURL, &scopes, &p.Enabled, &p.TokenCache,
		&expires, &refreshed, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan principal: %w", err)
	}
	unmarshalJSON(scopes, &p.Scopes)
	p.TokenExpiresAt = timePtr(expires)
	p.LastTokenRefresh = timePtr(refreshed)
	return &p, nil
}
