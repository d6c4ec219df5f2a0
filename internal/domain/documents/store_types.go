package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"hrdocs/internal/platform/querier"
)

const typeColumns = `id, code, name, COALESCE(description, ''), category, sequence_no, folder_code, requires_approval,
    default_validity_days, default_renew_before_days, default_share_expiry_hours, metadata_schema, is_active, created_at, updated_at`

func scanDocumentType(row scanner) (DocumentType, error) {
	var t DocumentType
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.Description, &t.Category, &t.SequenceNo, &t.FolderCode, &t.RequiresApproval,
		&t.DefaultValidityDays, &t.DefaultRenewBeforeDays, &t.DefaultShareExpiryHours, &t.MetadataSchema, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *Store) InsertType(ctx context.Context, q querier.Querier, t DocumentType) (DocumentType, error) {
	schema := t.MetadataSchema
	if len(schema) == 0 {
		schema = json.RawMessage(`{}`)
	}
	row := q.QueryRow(ctx, `
    INSERT INTO hr_document_types (code, name, description, category, sequence_no, folder_code, requires_approval,
      default_validity_days, default_renew_before_days, default_share_expiry_hours, metadata_schema, is_active)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    RETURNING `+typeColumns,
		t.Code, t.Name, nullIfEmpty(t.Description), t.Category, t.SequenceNo, t.FolderCode, t.RequiresApproval,
		t.DefaultValidityDays, t.DefaultRenewBeforeDays, t.DefaultShareExpiryHours, schema, t.IsActive)
	return scanDocumentType(row)
}

// InsertTypeIfMissing is used by catalog seeding; an existing code is left untouched.
func (s *Store) InsertTypeIfMissing(ctx context.Context, t DocumentType) (bool, error) {
	schema := t.MetadataSchema
	if len(schema) == 0 {
		schema = json.RawMessage(`{}`)
	}
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO hr_document_types (code, name, description, category, sequence_no, folder_code, requires_approval,
      default_validity_days, default_renew_before_days, default_share_expiry_hours, metadata_schema, is_active)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,true)
    ON CONFLICT DO NOTHING
  `, t.Code, t.Name, nullIfEmpty(t.Description), t.Category, t.SequenceNo, t.FolderCode, t.RequiresApproval,
		t.DefaultValidityDays, t.DefaultRenewBeforeDays, t.DefaultShareExpiryHours, schema)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetType(ctx context.Context, q querier.Querier, id string) (DocumentType, error) {
	t, err := scanDocumentType(q.QueryRow(ctx, `SELECT `+typeColumns+` FROM hr_document_types WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return DocumentType{}, fmt.Errorf("%w: document type %s", ErrNotFound, id)
	}
	return t, err
}

func (s *Store) GetTypeByCode(ctx context.Context, q querier.Querier, code string) (DocumentType, error) {
	t, err := scanDocumentType(q.QueryRow(ctx, `SELECT `+typeColumns+` FROM hr_document_types WHERE lower(code) = lower($1)`, strings.TrimSpace(code)))
	if errors.Is(err, pgx.ErrNoRows) {
		return DocumentType{}, fmt.Errorf("%w: document type code %q", ErrNotFound, code)
	}
	return t, err
}

func (s *Store) ListTypes(ctx context.Context, activeOnly bool) ([]DocumentType, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+typeColumns+`
    FROM hr_document_types
    WHERE ($1 = false OR is_active)
    ORDER BY category, sequence_no, code
  `, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentType
	for rows.Next() {
		t, err := scanDocumentType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateType writes only the columns named in sets. Column names come from fixed
// identifiers in the service, never from callers.
func (s *Store) UpdateType(ctx context.Context, q querier.Querier, id string, sets []columnSet) (DocumentType, error) {
	clause, args := buildSetClause(sets)
	args = append(args, id)
	row := q.QueryRow(ctx, fmt.Sprintf(`
    UPDATE hr_document_types
    SET %s, updated_at = now()
    WHERE id = $%d
    RETURNING `+typeColumns, clause, len(args)), args...)
	t, err := scanDocumentType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return DocumentType{}, fmt.Errorf("%w: document type %s", ErrNotFound, id)
	}
	return t, err
}

type columnSet struct {
	Column string
	Value  any
}

func buildSetClause(sets []columnSet) (string, []any) {
	parts := make([]string, 0, len(sets))
	args := make([]any, 0, len(sets)+1)
	for i, set := range sets {
		parts = append(parts, fmt.Sprintf("%s = $%d", set.Column, i+1))
		args = append(args, set.Value)
	}
	return strings.Join(parts, ", "), args
}
