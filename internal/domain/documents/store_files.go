package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"hrdocs/internal/platform/querier"
)

func (s *Store) InsertFile(ctx context.Context, q querier.Querier, f FileRecord) (FileRecord, error) {
	err := q.QueryRow(ctx, `
    INSERT INTO files (bucket, object_key, original_name, content_type, size_bytes, checksum, uploaded_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id, created_at
  `, f.Bucket, f.ObjectKey, f.OriginalName, f.ContentType, f.SizeBytes, nullIfEmpty(f.Checksum), nullIfEmpty(f.UploadedBy)).Scan(&f.ID, &f.CreatedAt)
	return f, err
}

func (s *Store) GetFile(ctx context.Context, id string) (FileRecord, error) {
	var f FileRecord
	err := s.DB.QueryRow(ctx, `
    SELECT id, bucket, object_key, original_name, content_type, size_bytes, COALESCE(checksum, ''), COALESCE(uploaded_by::text, ''), created_at
    FROM files
    WHERE id = $1
  `, id).Scan(&f.ID, &f.Bucket, &f.ObjectKey, &f.OriginalName, &f.ContentType, &f.SizeBytes, &f.Checksum, &f.UploadedBy, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return FileRecord{}, fmt.Errorf("%w: file %s", ErrNotFound, id)
	}
	return f, err
}
