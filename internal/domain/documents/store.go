package documents

import (
	"context"

	"github.com/jackc/pgx/v5"

	"hrdocs/internal/platform/querier"
)

// Store holds every SQL statement of the document engine. Methods taking a querier.Querier
// run against whatever they are handed (pool or tx); Tx-suffixed methods expect the caller's
// transaction and usually its row locks.
type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.DB.Begin(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}
