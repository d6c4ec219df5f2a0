package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"hrdocs/internal/platform/querier"
)

const importJobColumns = `id, status, manifest_bucket, manifest_key, archive_bucket, archive_key, options, dry_run,
    total_rows, processed_rows, success_count, failure_count, summary, error_log, created_by::text, created_at, started_at, completed_at`

func scanImportJob(row scanner) (ImportJob, error) {
	var j ImportJob
	var options []byte
	err := row.Scan(&j.ID, &j.Status, &j.ManifestBucket, &j.ManifestKey, &j.ArchiveBucket, &j.ArchiveKey, &options, &j.DryRun,
		&j.TotalRows, &j.ProcessedRows, &j.SuccessCount, &j.FailureCount, &j.Summary, &j.ErrorLog, &j.CreatedBy, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return j, err
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &j.Options); err != nil {
			return j, fmt.Errorf("decode import options: %w", err)
		}
	}
	return j, nil
}

func (s *Store) InsertImportJob(ctx context.Context, j ImportJob) (ImportJob, error) {
	options, err := json.Marshal(j.Options)
	if err != nil {
		return ImportJob{}, err
	}
	return scanImportJob(s.DB.QueryRow(ctx, `
    INSERT INTO hr_document_import_jobs (status, manifest_bucket, manifest_key, archive_bucket, archive_key, options, dry_run, created_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING `+importJobColumns,
		JobStatusUploaded, j.ManifestBucket, j.ManifestKey, j.ArchiveBucket, j.ArchiveKey, options, j.DryRun, j.CreatedBy))
}

func (s *Store) GetImportJob(ctx context.Context, id string) (ImportJob, error) {
	j, err := scanImportJob(s.DB.QueryRow(ctx, `SELECT `+importJobColumns+` FROM hr_document_import_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ImportJob{}, fmt.Errorf("%w: import job %s", ErrNotFound, id)
	}
	return j, err
}

func (s *Store) ListImportJobs(ctx context.Context, limit, offset int) ([]ImportJob, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+importJobColumns+`
    FROM hr_document_import_jobs
    ORDER BY created_at DESC
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ImportJob
	for rows.Next() {
		j, err := scanImportJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ClaimImportJob atomically moves a job into processing. claimed is false when the
// job is already being processed or does not exist.
func (s *Store) ClaimImportJob(ctx context.Context, id string, dryRun bool) (bool, error) {
	var claimedID string
	err := s.DB.QueryRow(ctx, `
    UPDATE hr_document_import_jobs
    SET status = 'processing', dry_run = $2, started_at = now(), completed_at = NULL, error_log = NULL,
        total_rows = 0, processed_rows = 0, success_count = 0, failure_count = 0
    WHERE id = $1 AND status <> 'processing'
    RETURNING id
  `, id, dryRun).Scan(&claimedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ClearImportItems drops items from an earlier run so line numbers stay unique per job.
func (s *Store) ClearImportItems(ctx context.Context, jobID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM hr_document_import_items WHERE import_job_id = $1", jobID)
	return err
}

func (s *Store) InsertImportItem(ctx context.Context, q querier.Querier, item ImportItem) error {
	metadata := item.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	_, err := q.Exec(ctx, `
    INSERT INTO hr_document_import_items (import_job_id, line_number, employee_identifier, document_type_code, matched_user_id,
      status, error_message, generated_document_id, generated_version_id, metadata)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
  `, item.ImportJobID, item.LineNumber, item.EmployeeIdentifier, item.DocumentTypeCode, item.MatchedUserID,
		item.Status, item.ErrorMessage, item.GeneratedDocumentID, item.GeneratedVersionID, metadata)
	return err
}

func (s *Store) UpdateImportProgress(ctx context.Context, jobID string, total, processed, success, failure int) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE hr_document_import_jobs
    SET total_rows = $2, processed_rows = $3, success_count = $4, failure_count = $5
    WHERE id = $1
  `, jobID, total, processed, success, failure)
	return err
}

func (s *Store) FinishImportJob(ctx context.Context, jobID, status string, summary any, errorLog *string) (ImportJob, error) {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return ImportJob{}, err
	}
	j, err := scanImportJob(s.DB.QueryRow(ctx, `
    UPDATE hr_document_import_jobs
    SET status = $2, summary = $3, error_log = $4, completed_at = now()
    WHERE id = $1
    RETURNING `+importJobColumns, jobID, status, summaryJSON, errorLog))
	if errors.Is(err, pgx.ErrNoRows) {
		return ImportJob{}, fmt.Errorf("%w: import job %s vanished while finishing", ErrInvariantViolation, jobID)
	}
	return j, err
}

func (s *Store) ListImportItems(ctx context.Context, jobID string) ([]ImportItem, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, import_job_id, line_number, COALESCE(employee_identifier, ''), COALESCE(document_type_code, ''),
           matched_user_id::text, status, error_message, generated_document_id::text, generated_version_id::text, metadata, created_at
    FROM hr_document_import_items
    WHERE import_job_id = $1
    ORDER BY line_number
  `, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ImportItem
	for rows.Next() {
		var it ImportItem
		if err := rows.Scan(&it.ID, &it.ImportJobID, &it.LineNumber, &it.EmployeeIdentifier, &it.DocumentTypeCode,
			&it.MatchedUserID, &it.Status, &it.ErrorMessage, &it.GeneratedDocumentID, &it.GeneratedVersionID, &it.Metadata, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
