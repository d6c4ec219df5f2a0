package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hrdocs/internal/platform/querier"
)

const versionColumns = `v.id, v.employee_document_id, v.file_id, v.version_no, v.uploaded_by::text, v.uploaded_at, v.approval_status,
    v.approved_by::text, v.approved_at, COALESCE(v.approval_note, ''), COALESCE(v.checksum, ''), v.file_metadata, v.valid_from, v.valid_until`

func scanVersion(row scanner, extra ...any) (DocumentVersion, error) {
	var v DocumentVersion
	dest := []any{&v.ID, &v.EmployeeDocumentID, &v.FileID, &v.VersionNo, &v.UploadedBy, &v.UploadedAt, &v.ApprovalStatus,
		&v.ApprovedBy, &v.ApprovedAt, &v.ApprovalNote, &v.Checksum, &v.FileMetadata, &v.ValidFrom, &v.ValidUntil}
	err := row.Scan(append(dest, extra...)...)
	return v, err
}

func (s *Store) NextVersionNoTx(ctx context.Context, tx pgx.Tx, documentID string) (int, error) {
	var next int
	err := tx.QueryRow(ctx, `
    SELECT COALESCE(MAX(version_no), 0) + 1
    FROM hr_document_versions
    WHERE employee_document_id = $1
  `, documentID).Scan(&next)
	return next, err
}

type newVersion struct {
	DocumentID     string
	FileID         string
	VersionNo      int
	UploadedBy     string
	ApprovalStatus string
	Checksum       *string
	Metadata       map[string]any
	Window         *validityWindow
}

func (s *Store) InsertVersionTx(ctx context.Context, tx pgx.Tx, in newVersion) (DocumentVersion, error) {
	metadata, err := json.Marshal(in.Metadata)
	if err != nil {
		return DocumentVersion{}, fmt.Errorf("%w: file metadata: %v", ErrValidation, err)
	}
	if in.Metadata == nil {
		metadata = []byte(`{}`)
	}

	var approvedBy any
	var approvedAt *time.Time
	var from, until *time.Time
	if in.ApprovalStatus == ApprovalApproved {
		approvedBy = nullIfEmpty(in.UploadedBy)
		now := time.Now().UTC()
		approvedAt = &now
		if in.Window != nil {
			from, until = in.Window.From, in.Window.Until
		}
	}

	v, err := scanVersion(tx.QueryRow(ctx, `
    WITH v AS (
      INSERT INTO hr_document_versions (employee_document_id, file_id, version_no, uploaded_by, approval_status,
        approved_by, approved_at, checksum, file_metadata, valid_from, valid_until)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
      RETURNING *
    )
    SELECT `+versionColumns+` FROM v
  `, in.DocumentID, in.FileID, in.VersionNo, nullIfEmpty(in.UploadedBy), in.ApprovalStatus,
		approvedBy, approvedAt, in.Checksum, metadata, from, until))
	if errors.Is(err, pgx.ErrNoRows) {
		return DocumentVersion{}, fmt.Errorf("%w: version insert returned no row", ErrInvariantViolation)
	}
	return v, err
}

// LockVersionTx locks the version and its parent document in one statement.
func (s *Store) LockVersionTx(ctx context.Context, tx pgx.Tx, versionID string) (DocumentVersion, lockedDocument, error) {
	var doc lockedDocument
	var d EmployeeDocument
	v, err := scanVersion(tx.QueryRow(ctx, `
    SELECT `+versionColumns+`,
           d.id, d.user_id, d.status, d.valid_from, d.valid_until, d.current_version_id::text,
           t.requires_approval, COALESCE(r.validity_days_override, t.default_validity_days)
    FROM hr_document_versions v
    JOIN hr_employee_documents d ON d.id = v.employee_document_id
    JOIN hr_document_types t ON t.id = d.document_type_id
    LEFT JOIN hr_document_requirements r ON r.id = d.requirement_id
    WHERE v.id = $1
    FOR UPDATE OF v, d
  `, versionID), &d.ID, &d.UserID, &d.Status, &d.ValidFrom, &d.ValidUntil, &d.CurrentVersionID, &doc.RequiresApproval, &doc.ValidityDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return DocumentVersion{}, doc, fmt.Errorf("%w: document version %s", ErrNotFound, versionID)
	}
	if err != nil {
		return DocumentVersion{}, doc, err
	}
	doc.EmployeeDocument = d
	return v, doc, nil
}

func (s *Store) ApproveVersionTx(ctx context.Context, tx pgx.Tx, versionID, approver string, note *string, window validityWindow) error {
	tag, err := tx.Exec(ctx, `
    UPDATE hr_document_versions
    SET approval_status = $1, approved_by = $2, approved_at = now(), approval_note = $3, valid_from = $4, valid_until = $5
    WHERE id = $6
  `, ApprovalApproved, nullIfEmpty(approver), note, window.From, window.Until, versionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: approve of version %s affected %d rows", ErrInvariantViolation, versionID, tag.RowsAffected())
	}
	return nil
}

func (s *Store) RejectVersionTx(ctx context.Context, tx pgx.Tx, versionID, approver string, note *string) error {
	tag, err := tx.Exec(ctx, `
    UPDATE hr_document_versions
    SET approval_status = $1, approved_by = $2, approved_at = now(), approval_note = $3
    WHERE id = $4
  `, ApprovalRejected, nullIfEmpty(approver), note, versionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: reject of version %s affected %d rows", ErrInvariantViolation, versionID, tag.RowsAffected())
	}
	return nil
}

// LatestApprovedVersionTx returns nil when the document has no approved version left.
func (s *Store) LatestApprovedVersionTx(ctx context.Context, tx pgx.Tx, documentID string) (*DocumentVersion, error) {
	v, err := scanVersion(tx.QueryRow(ctx, `
    SELECT `+versionColumns+`
    FROM hr_document_versions v
    WHERE v.employee_document_id = $1 AND v.approval_status = $2
    ORDER BY v.version_no DESC
    LIMIT 1
  `, documentID, ApprovalApproved))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) VersionStatusTx(ctx context.Context, tx pgx.Tx, versionID string) (string, error) {
	var status string
	err := tx.QueryRow(ctx, "SELECT approval_status FROM hr_document_versions WHERE id = $1", versionID).Scan(&status)
	return status, err
}

func (s *Store) GetVersion(ctx context.Context, q querier.Querier, id string) (DocumentVersion, error) {
	v, err := scanVersion(q.QueryRow(ctx, `SELECT `+versionColumns+` FROM hr_document_versions v WHERE v.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return DocumentVersion{}, fmt.Errorf("%w: document version %s", ErrNotFound, id)
	}
	return v, err
}

func (s *Store) ListVersions(ctx context.Context, q querier.Querier, documentID string) ([]DocumentVersion, error) {
	rows, err := q.Query(ctx, `
    SELECT `+versionColumns+`
    FROM hr_document_versions v
    WHERE v.employee_document_id = $1
    ORDER BY v.version_no
  `, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocumentVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
