package documents

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"hrdocs/internal/domain/audit"
)

// RunExpiryCheck expires documents whose window ended before referenceDate and reactivates
// expired ones whose window covers it again. Transitions and their audit events commit together.
// An empty initiator is recorded as a system actor.
func (s *Service) RunExpiryCheck(ctx context.Context, referenceDate time.Time, initiator string) (ExpiryResult, error) {
	ref := *dateOnly(referenceDate)
	result := ExpiryResult{ReferenceDate: ref.Format(dateLayout)}

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return result, err
	}
	defer rollback(ctx, tx, "expiry check")

	expired, err := s.Store.ExpireTx(ctx, tx, ref)
	if err != nil {
		return result, err
	}
	if err := s.auditTransitions(ctx, tx, expired, ActionDocumentExpired, initiator, result.ReferenceDate); err != nil {
		return result, err
	}

	reactivated, err := s.Store.ReactivateTx(ctx, tx, ref)
	if err != nil {
		return result, err
	}
	if err := s.auditTransitions(ctx, tx, reactivated, ActionDocumentReactivated, initiator, result.ReferenceDate); err != nil {
		return result, err
	}

	if err := tx.Commit(ctx); err != nil {
		return result, err
	}

	result.ExpiredCount = len(expired)
	result.ReactivatedCount = len(reactivated)
	s.Metrics.Inc(MetricDocumentsExpired, result.ExpiredCount)
	s.Metrics.Inc(MetricDocsReactivated, result.ReactivatedCount)
	if result.ExpiredCount > 0 || result.ReactivatedCount > 0 {
		slog.Info("expiry check applied", "reference_date", result.ReferenceDate,
			"expired", result.ExpiredCount, "reactivated", result.ReactivatedCount)
	}
	return result, nil
}

func (s *Service) auditTransitions(ctx context.Context, tx pgx.Tx, transitions []statusTransition, action, initiator, referenceDate string) error {
	if s.Audit == nil {
		return nil
	}
	for _, t := range transitions {
		var validUntil string
		if t.ValidUntil != nil {
			validUntil = t.ValidUntil.Format(dateLayout)
		}
		err := s.Audit.RecordTx(ctx, tx, audit.Entry{
			ActorID:    initiator,
			Action:     action,
			EntityType: EntityEmployeeDocument,
			EntityID:   t.DocumentID,
			Before:     map[string]any{"status": t.OldStatus},
			After: map[string]any{
				"status":        t.NewStatus,
				"referenceDate": referenceDate,
				"validUntil":    validUntil,
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ListExpiring returns active documents due for renewal as of referenceDate.
func (s *Service) ListExpiring(ctx context.Context, referenceDate time.Time) ([]ExpiringDocument, error) {
	docs, err := s.Store.ListExpiring(ctx, *dateOnly(referenceDate), s.Options.RenewBeforeDays)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []ExpiringDocument{}
	}
	return docs, nil
}
