package documents

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"hrdocs/internal/domain/audit"
	"hrdocs/internal/platform/storage"
)

// Directory resolves employees. Lookups return an error when no active user matches.
type Directory interface {
	UsersForRole(ctx context.Context, roleID string) ([]string, error)
	AllActiveUsers(ctx context.Context) ([]string, error)
	UserIDByUsername(ctx context.Context, username string) (string, error)
	UserIDByEmail(ctx context.Context, email string) (string, error)
}

type Counter interface {
	Inc(name string, delta int)
}

type noopCounter struct{}

func (noopCounter) Inc(string, int) {}

type Options struct {
	Bucket                string
	ShareLinkDefaultHours int
	RenewBeforeDays       int
}

type Service struct {
	Store     *Store
	Directory Directory
	Storage   storage.ObjectStorage
	Audit     *audit.Service
	Metrics   Counter
	Options   Options
	Now       func() time.Time
}

func NewService(store *Store, directory Directory, objects storage.ObjectStorage, auditSvc *audit.Service, metrics Counter, opts Options) *Service {
	if metrics == nil {
		metrics = noopCounter{}
	}
	if opts.ShareLinkDefaultHours <= 0 {
		opts.ShareLinkDefaultHours = 72
	}
	if opts.RenewBeforeDays <= 0 {
		opts.RenewBeforeDays = 30
	}
	return &Service{
		Store:     store,
		Directory: directory,
		Storage:   objects,
		Audit:     auditSvc,
		Metrics:   metrics,
		Options:   opts,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) today() time.Time {
	return *dateOnly(s.Now())
}

func rollback(ctx context.Context, tx pgx.Tx, op string) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Warn(op+" rollback failed", "err", err)
	}
}
