package documents

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

type statusTransition struct {
	DocumentID string
	OldStatus  string
	NewStatus  string
	ValidUntil *time.Time
}

// ExpireTx flips every active or pending document whose window ended before referenceDate.
func (s *Store) ExpireTx(ctx context.Context, tx pgx.Tx, referenceDate time.Time) ([]statusTransition, error) {
	return collectTransitions(tx.Query(ctx, `
    WITH candidates AS (
      SELECT id, status
      FROM hr_employee_documents
      WHERE status IN ('active', 'pending_approval')
        AND valid_until IS NOT NULL
        AND valid_until < $1::date
      FOR UPDATE
    )
    UPDATE hr_employee_documents d
    SET status = 'expired', last_status_check_at = now(), updated_at = now()
    FROM candidates c
    WHERE d.id = c.id
    RETURNING d.id, c.status, d.status, d.valid_until
  `, referenceDate))
}

// ReactivateTx flips expired documents whose window now covers referenceDate.
func (s *Store) ReactivateTx(ctx context.Context, tx pgx.Tx, referenceDate time.Time) ([]statusTransition, error) {
	return collectTransitions(tx.Query(ctx, `
    WITH candidates AS (
      SELECT id, status
      FROM hr_employee_documents
      WHERE status = 'expired'
        AND valid_until IS NOT NULL
        AND valid_until >= $1::date
      FOR UPDATE
    )
    UPDATE hr_employee_documents d
    SET status = 'active', last_status_check_at = now(), updated_at = now()
    FROM candidates c
    WHERE d.id = c.id
    RETURNING d.id, c.status, d.status, d.valid_until
  `, referenceDate))
}

func collectTransitions(rows pgx.Rows, err error) ([]statusTransition, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []statusTransition
	for rows.Next() {
		var t statusTransition
		if err := rows.Scan(&t.DocumentID, &t.OldStatus, &t.NewStatus, &t.ValidUntil); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertMissingDocumentsTx creates "missing" rows for every user lacking one at the scope.
// The scope unique index absorbs users that already have a row.
func (s *Store) InsertMissingDocumentsTx(ctx context.Context, tx pgx.Tx, userIDs []string, documentTypeID, requirementID string) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	tag, err := tx.Exec(ctx, `
    INSERT INTO hr_employee_documents (user_id, document_type_id, requirement_id, status)
    SELECT u.user_id, $2::uuid, $3::uuid, 'missing'
    FROM unnest($1::uuid[]) AS u(user_id)
    ON CONFLICT DO NOTHING
  `, userIDs, documentTypeID, requirementID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
