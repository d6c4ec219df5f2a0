package documents

import (
	"context"
	"fmt"
	"log/slog"
)

// SyncRequirement creates a "missing" employee document for every member of the
// requirement's audience who has none at that exact scope. Re-running creates nothing.
func (s *Service) SyncRequirement(ctx context.Context, requirementID, initiator string) (SyncResult, error) {
	result := SyncResult{RequirementID: requirementID}
	if err := requireUUID("requirement id", requirementID); err != nil {
		return result, err
	}

	requirement, err := s.Store.GetRequirement(ctx, s.Store.DB, requirementID)
	if err != nil {
		return result, err
	}

	var audience []string
	if requirement.RoleID != nil {
		audience, err = s.Directory.UsersForRole(ctx, *requirement.RoleID)
	} else {
		audience, err = s.Directory.AllActiveUsers(ctx)
	}
	if err != nil {
		return result, fmt.Errorf("resolve requirement audience: %w", err)
	}
	result.Processed = len(audience)

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return result, err
	}
	defer rollback(ctx, tx, "requirement sync")

	created, err := s.Store.InsertMissingDocumentsTx(ctx, tx, audience, requirement.DocumentTypeID, requirement.ID)
	if err != nil {
		return result, err
	}
	if err := tx.Commit(ctx); err != nil {
		return result, err
	}

	result.Created = created
	result.Existing = result.Processed - created
	s.Metrics.Inc(MetricSyncCreated, created)
	slog.Info("requirement synced", "requirementId", requirementID, "initiator", initiator,
		"processed", result.Processed, "created", result.Created, "existing", result.Existing)
	return result, nil
}
