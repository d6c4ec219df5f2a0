package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"hrdocs/internal/platform/querier"
)

const requirementColumns = `id, document_type_id, role_id::text, department_code, employment_type, is_mandatory,
    validity_days_override, renew_before_days_override, applies_from, applies_until, COALESCE(notes, ''), created_at, updated_at`

func scanRequirement(row scanner) (DocumentRequirement, error) {
	var r DocumentRequirement
	err := row.Scan(&r.ID, &r.DocumentTypeID, &r.RoleID, &r.DepartmentCode, &r.EmploymentType, &r.IsMandatory,
		&r.ValidityDaysOverride, &r.RenewBeforeDaysOverride, &r.AppliesFrom, &r.AppliesUntil, &r.Notes, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *Store) InsertRequirement(ctx context.Context, q querier.Querier, r DocumentRequirement) (DocumentRequirement, error) {
	row := q.QueryRow(ctx, `
    INSERT INTO hr_document_requirements (document_type_id, role_id, department_code, employment_type, is_mandatory,
      validity_days_override, renew_before_days_override, applies_from, applies_until, notes)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    RETURNING `+requirementColumns,
		r.DocumentTypeID, r.RoleID, r.DepartmentCode, r.EmploymentType, r.IsMandatory,
		r.ValidityDaysOverride, r.RenewBeforeDaysOverride, r.AppliesFrom, r.AppliesUntil, nullIfEmpty(r.Notes))
	return scanRequirement(row)
}

func (s *Store) GetRequirement(ctx context.Context, q querier.Querier, id string) (DocumentRequirement, error) {
	r, err := scanRequirement(q.QueryRow(ctx, `SELECT `+requirementColumns+` FROM hr_document_requirements WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return DocumentRequirement{}, fmt.Errorf("%w: requirement %s", ErrNotFound, id)
	}
	return r, err
}

func (s *Store) ListRequirements(ctx context.Context, documentTypeID string) ([]DocumentRequirement, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+requirementColumns+`
    FROM hr_document_requirements
    WHERE ($1 = '' OR document_type_id::text = $1)
    ORDER BY created_at
  `, documentTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentRequirement
	for rows.Next() {
		r, err := scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateRequirement(ctx context.Context, q querier.Querier, id string, sets []columnSet) (DocumentRequirement, error) {
	clause, args := buildSetClause(sets)
	args = append(args, id)
	row := q.QueryRow(ctx, fmt.Sprintf(`
    UPDATE hr_document_requirements
    SET %s, updated_at = now()
    WHERE id = $%d
    RETURNING `+requirementColumns, clause, len(args)), args...)
	r, err := scanRequirement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return DocumentRequirement{}, fmt.Errorf("%w: requirement %s", ErrNotFound, id)
	}
	return r, err
}
