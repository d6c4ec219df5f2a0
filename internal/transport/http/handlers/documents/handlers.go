package documentshandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hrdocs/internal/domain/audit"
	"hrdocs/internal/domain/auth"
	"hrdocs/internal/domain/documents"
	"hrdocs/internal/platform/jobs"
	"hrdocs/internal/transport/http/api"
	"hrdocs/internal/transport/http/middleware"
	"hrdocs/internal/transport/http/shared"
)

const multipartMemory = 32 << 20

// JobRunner runs engine work through the job queue so it lands in job_runs.
type JobRunner interface {
	RunExpiryCheck(ctx context.Context, referenceDate time.Time, initiator string) (documents.ExpiryResult, error)
	EnqueueImport(importJobID, initiator string, dryRun bool) bool
	ListRuns(ctx context.Context, jobType string, limit int) ([]jobs.Run, error)
}

type Handler struct {
	Service *documents.Service
	Jobs    JobRunner
	Audit   *audit.Service
}

func NewHandler(service *documents.Service, jobRunner JobRunner, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Jobs: jobRunner, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermDocumentsRead)
	manage := middleware.RequirePermission(auth.PermDocumentsManage)
	upload := middleware.RequirePermission(auth.PermDocumentsUpload)
	approve := middleware.RequirePermission(auth.PermDocumentsApprove)
	share := middleware.RequirePermission(auth.PermDocumentsShare)
	importer := middleware.RequirePermission(auth.PermDocumentsImport)

	r.Route("/hr-documents", func(r chi.Router) {
		r.With(read).Get("/types", h.handleListTypes)
		r.With(manage).Post("/types", h.handleCreateType)
		r.With(read).Get("/types/{id}", h.handleGetType)
		r.With(manage).Patch("/types/{id}", h.handleUpdateType)

		r.With(read).Get("/requirements", h.handleListRequirements)
		r.With(manage).Post("/requirements", h.handleCreateRequirement)
		r.With(read).Get("/requirements/{id}", h.handleGetRequirement)
		r.With(manage).Patch("/requirements/{id}", h.handleUpdateRequirement)
		r.With(manage).Post("/requirements/{id}/sync", h.handleSyncRequirement)

		r.With(read).Get("/documents", h.handleListDocuments)
		r.With(upload).Post("/documents", h.handleGetOrCreateDocument)
		r.With(read).Get("/documents/{id}", h.handleGetDocument)
		r.With(upload).Post("/documents/{id}/versions", h.handleUploadVersion)
		r.With(share).Get("/documents/{id}/share-links", h.handleListShareLinks)

		r.With(approve).Post("/versions/{id}/approve", h.handleApproveVersion)
		r.With(approve).Post("/versions/{id}/reject", h.handleRejectVersion)
		r.With(read).Get("/versions/{id}/download", h.handleDownloadVersion)

		r.With(share).Post("/share-links", h.handleCreateShareLink)
		r.With(share).Get("/share-links/{token}", h.handleGetShareLink)
		r.With(share).Post("/share-links/{token}/deactivate", h.handleDeactivateShareLink)

		r.With(manage).Post("/expiry/run", h.handleRunExpiry)
		r.With(read).Get("/expiring", h.handleListExpiring)

		r.With(importer).Get("/imports", h.handleListImports)
		r.With(importer).Post("/imports", h.handleStageImport)
		r.With(importer).Post("/imports/register", h.handleRegisterImport)
		r.With(importer).Get("/imports/{id}", h.handleGetImport)
		r.With(importer).Post("/imports/{id}/process", h.handleProcessImport)

		r.With(read).Get("/employees/{userID}/report.pdf", h.handleComplianceReport)
		r.With(manage).Get("/job-runs", h.handleListJobRuns)
	})
}

// writeError maps engine errors onto HTTP statuses. Unknown errors are logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetRequestID(r.Context())
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", reqID)
	case errors.Is(err, documents.ErrValidation):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), reqID)
	case errors.Is(err, documents.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), reqID)
	case errors.Is(err, documents.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), reqID)
	case errors.Is(err, documents.ErrExternalIO):
		slog.Warn("storage failure", "path", r.URL.Path, "requestId", reqID, "err", err)
		api.Fail(w, http.StatusBadGateway, "storage_error", "object storage unavailable", reqID)
	default:
		slog.Error("request failed", "path", r.URL.Path, "requestId", reqID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal error", reqID)
	}
}

func badPayload(w http.ResponseWriter, r *http.Request) {
	api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", middleware.GetRequestID(r.Context()))
}

// canSeeAll reports whether the caller may act on other employees' documents.
func canSeeAll(user auth.UserContext) bool {
	caps := auth.Capabilities(user.RoleName)
	return caps.Has(auth.PermDocumentsManage) || caps.Has(auth.PermDocumentsApprove)
}

func currentUser(r *http.Request) auth.UserContext {
	user, _ := middleware.GetUser(r.Context())
	return user
}

func (h *Handler) record(r *http.Request, action, entityType, entityID string, after any) {
	if h.Audit == nil {
		return
	}
	entry := audit.Entry{
		ActorID:    currentUser(r).UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
		After:      after,
	}
	if err := h.Audit.Record(r.Context(), entry); err != nil {
		slog.Warn("audit record failed", "action", action, "entityId", entityID, "err", err)
	}
}

// optionalDate reads a YYYY-MM-DD value; blank input yields nil.
func optionalDate(v *shared.Validator, field, raw string) *time.Time {
	if raw == "" {
		return nil
	}
	parsed, ok := v.Date(field, raw)
	if !ok {
		return nil
	}
	day := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
	return &day
}
