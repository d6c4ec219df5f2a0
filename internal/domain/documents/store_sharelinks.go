package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const shareLinkColumns = `id, token, employee_document_id, document_version_id::text, expires_at, max_views, views_count,
    allowed_roles, allowed_departments, is_active, created_by::text, created_at, deactivated_at`

func scanShareLink(row scanner) (ShareLink, error) {
	var l ShareLink
	err := row.Scan(&l.ID, &l.Token, &l.EmployeeDocumentID, &l.DocumentVersionID, &l.ExpiresAt, &l.MaxViews, &l.ViewsCount,
		&l.AllowedRoles, &l.AllowedDepartments, &l.IsActive, &l.CreatedBy, &l.CreatedAt, &l.DeactivatedAt)
	return l, err
}

func (s *Store) InsertShareLink(ctx context.Context, l ShareLink) (ShareLink, error) {
	if l.AllowedRoles == nil {
		l.AllowedRoles = []string{}
	}
	if l.AllowedDepartments == nil {
		l.AllowedDepartments = []string{}
	}
	return scanShareLink(s.DB.QueryRow(ctx, `
    INSERT INTO hr_document_share_links (token, employee_document_id, document_version_id, expires_at, max_views,
      allowed_roles, allowed_departments, created_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING `+shareLinkColumns,
		l.Token, l.EmployeeDocumentID, l.DocumentVersionID, l.ExpiresAt, l.MaxViews, l.AllowedRoles, l.AllowedDepartments, l.CreatedBy))
}

func (s *Store) GetShareLinkByToken(ctx context.Context, token string) (ShareLink, error) {
	l, err := scanShareLink(s.DB.QueryRow(ctx, `SELECT `+shareLinkColumns+` FROM hr_document_share_links WHERE token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return ShareLink{}, fmt.Errorf("%w: share link", ErrNotFound)
	}
	return l, err
}

func (s *Store) DeactivateShareLink(ctx context.Context, token string, at time.Time) (ShareLink, error) {
	l, err := scanShareLink(s.DB.QueryRow(ctx, `
    UPDATE hr_document_share_links
    SET is_active = false, deactivated_at = COALESCE(deactivated_at, $2)
    WHERE token = $1
    RETURNING `+shareLinkColumns, token, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return ShareLink{}, fmt.Errorf("%w: share link", ErrNotFound)
	}
	return l, err
}

func (s *Store) ListShareLinks(ctx context.Context, documentID string) ([]ShareLink, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+shareLinkColumns+`
    FROM hr_document_share_links
    WHERE employee_document_id = $1
    ORDER BY created_at DESC
  `, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ShareLink
	for rows.Next() {
		l, err := scanShareLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
