package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hrdocs/internal/platform/querier"
)

const documentColumns = `d.id, d.user_id, d.document_type_id, t.code, d.requirement_id::text, d.status, d.valid_from, d.valid_until,
    d.current_version_id::text, d.last_status_check_at, COALESCE(d.notes, ''), d.created_at, d.updated_at`

const documentFrom = ` FROM hr_employee_documents d JOIN hr_document_types t ON t.id = d.document_type_id`

func scanDocument(row scanner, extra ...any) (EmployeeDocument, error) {
	var d EmployeeDocument
	dest := []any{&d.ID, &d.UserID, &d.DocumentTypeID, &d.DocumentTypeCode, &d.RequirementID, &d.Status, &d.ValidFrom, &d.ValidUntil,
		&d.CurrentVersionID, &d.LastStatusCheckAt, &d.Notes, &d.CreatedAt, &d.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	return d, err
}

type DocumentFilter struct {
	UserID         string
	Status         string
	DocumentTypeID string
	Limit          int
	Offset         int
}

// InsertDocumentIfAbsent relies on the scope unique index. created is false when the
// scope already had a row; the caller then reads it with FindDocumentByScope.
func (s *Store) InsertDocumentIfAbsent(ctx context.Context, q querier.Querier, userID, documentTypeID string, requirementID *string, notes *string) (string, bool, error) {
	var id string
	err := q.QueryRow(ctx, `
    INSERT INTO hr_employee_documents (user_id, document_type_id, requirement_id, status, notes)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT DO NOTHING
    RETURNING id
  `, userID, documentTypeID, requirementID, StatusMissing, notes).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *Store) FindDocumentByScope(ctx context.Context, q querier.Querier, userID, documentTypeID string, requirementID *string) (EmployeeDocument, error) {
	d, err := scanDocument(q.QueryRow(ctx, `
    SELECT `+documentColumns+documentFrom+`
    WHERE d.user_id = $1 AND d.document_type_id = $2 AND d.requirement_id IS NOT DISTINCT FROM $3::uuid
  `, userID, documentTypeID, requirementID))
	if errors.Is(err, pgx.ErrNoRows) {
		return EmployeeDocument{}, fmt.Errorf("%w: employee document for scope", ErrNotFound)
	}
	return d, err
}

func (s *Store) GetDocument(ctx context.Context, q querier.Querier, id string) (EmployeeDocument, error) {
	d, err := scanDocument(q.QueryRow(ctx, `SELECT `+documentColumns+documentFrom+` WHERE d.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return EmployeeDocument{}, fmt.Errorf("%w: employee document %s", ErrNotFound, id)
	}
	return d, err
}

func (s *Store) ListDocuments(ctx context.Context, filter DocumentFilter) ([]EmployeeDocument, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+documentColumns+documentFrom+`
    WHERE ($1 = '' OR d.user_id::text = $1)
      AND ($2 = '' OR d.status = $2)
      AND ($3 = '' OR d.document_type_id::text = $3)
    ORDER BY t.category, t.sequence_no, d.created_at
    LIMIT $4 OFFSET $5
  `, filter.UserID, filter.Status, filter.DocumentTypeID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmployeeDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// lockedDocument is a document row held FOR UPDATE together with the type and
// requirement settings the workflow needs.
type lockedDocument struct {
	EmployeeDocument
	RequiresApproval bool
	ValidityDays     *int
}

func (s *Store) LockDocumentTx(ctx context.Context, tx pgx.Tx, id string) (lockedDocument, error) {
	var out lockedDocument
	doc, err := scanDocument(tx.QueryRow(ctx, `
    SELECT `+documentColumns+`, t.requires_approval, COALESCE(r.validity_days_override, t.default_validity_days)
    `+documentFrom+`
    LEFT JOIN hr_document_requirements r ON r.id = d.requirement_id
    WHERE d.id = $1
    FOR UPDATE OF d
  `, id), &out.RequiresApproval, &out.ValidityDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return out, fmt.Errorf("%w: employee document %s", ErrNotFound, id)
	}
	if err != nil {
		return out, err
	}
	out.EmployeeDocument = doc
	return out, nil
}

// SetDocumentStateTx moves the current pointer and status. Validity is only written when
// window is non-nil. Returns ErrInvariantViolation when the row vanished.
func (s *Store) SetDocumentStateTx(ctx context.Context, tx pgx.Tx, id string, currentVersionID *string, status string, window *validityWindow) error {
	var (
		tagRows int64
		err     error
	)
	if window == nil {
		tag, execErr := tx.Exec(ctx, `
      UPDATE hr_employee_documents
      SET current_version_id = $1, status = $2, last_status_check_at = now(), updated_at = now()
      WHERE id = $3
    `, currentVersionID, status, id)
		tagRows, err = tag.RowsAffected(), execErr
	} else {
		tag, execErr := tx.Exec(ctx, `
      UPDATE hr_employee_documents
      SET current_version_id = $1, status = $2, valid_from = $3, valid_until = $4, last_status_check_at = now(), updated_at = now()
      WHERE id = $5
    `, currentVersionID, status, window.From, window.Until, id)
		tagRows, err = tag.RowsAffected(), execErr
	}
	if err != nil {
		return err
	}
	if tagRows != 1 {
		return fmt.Errorf("%w: employee document %s update affected %d rows", ErrInvariantViolation, id, tagRows)
	}
	return nil
}

// ListExpiring returns active documents whose valid_until falls inside their renew-before window.
func (s *Store) ListExpiring(ctx context.Context, referenceDate time.Time, fallbackDays int) ([]ExpiringDocument, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+documentColumns+`,
           COALESCE(r.renew_before_days_override, t.default_renew_before_days, $2) AS renew_before,
           (d.valid_until - $1::date) AS days_remaining
    `+documentFrom+`
    LEFT JOIN hr_document_requirements r ON r.id = d.requirement_id
    WHERE d.status = 'active'
      AND d.valid_until IS NOT NULL
      AND d.valid_until >= $1::date
      AND d.valid_until <= $1::date + COALESCE(r.renew_before_days_override, t.default_renew_before_days, $2)
    ORDER BY d.valid_until, d.id
  `, referenceDate, fallbackDays)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpiringDocument
	for rows.Next() {
		var e ExpiringDocument
		doc, err := scanDocument(rows, &e.RenewBeforeDays, &e.DaysRemaining)
		if err != nil {
			return nil, err
		}
		e.EmployeeDocument = doc
		out = append(out, e)
	}
	return out, rows.Err()
}

// ReportRow is one line of the employee compliance report.
type ReportRow struct {
	FolderCode     string
	TypeCode       string
	TypeName       string
	Status         string
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	CurrentVersion *int
}

func (s *Store) ReportRows(ctx context.Context, userID string) ([]ReportRow, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT t.folder_code, t.code, t.name, d.status, d.valid_from, d.valid_until, v.version_no
    FROM hr_employee_documents d
    JOIN hr_document_types t ON t.id = d.document_type_id
    LEFT JOIN hr_document_versions v ON v.id = d.current_version_id
    WHERE d.user_id = $1
    ORDER BY t.category, t.sequence_no, t.code
  `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		var r ReportRow
		if err := rows.Scan(&r.FolderCode, &r.TypeCode, &r.TypeName, &r.Status, &r.ValidFrom, &r.ValidUntil, &r.CurrentVersion); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
