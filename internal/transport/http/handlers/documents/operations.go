package documentshandler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hrdocs/internal/domain/documents"
	"hrdocs/internal/platform/jobs"
	"hrdocs/internal/transport/http/api"
	"hrdocs/internal/transport/http/middleware"
	"hrdocs/internal/transport/http/shared"
)

type expiryRequest struct {
	ReferenceDate string `json:"referenceDate"`
}

type registerImportRequest struct {
	ManifestBucket string                  `json:"manifestBucket"`
	ManifestKey    string                  `json:"manifestKey"`
	ArchiveBucket  *string                 `json:"archiveBucket"`
	ArchiveKey     *string                 `json:"archiveKey"`
	Options        documents.ImportOptions `json:"options"`
}

func (h *Handler) handleCreateShareLink(w http.ResponseWriter, r *http.Request) {
	var payload documents.CreateShareLinkInput
	if err := shared.DecodeJSON(r, &payload); err != nil {
		badPayload(w, r)
		return
	}
	payload.CreatedBy = currentUser(r).UserID
	link, err := h.Service.CreateShareLink(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record(r, documents.ActionShareLinkCreated, documents.EntityShareLink, link.ID, map[string]any{
		"employeeDocumentId": link.EmployeeDocumentID,
		"expiresAt":          link.ExpiresAt,
		"maxViews":           link.MaxViews,
	})
	api.Created(w, link, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetShareLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.Service.GetShareLink(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, link, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeactivateShareLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.Service.DeactivateShareLink(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record(r, documents.ActionShareLinkRevoked, documents.EntityShareLink, link.ID, map[string]any{"deactivatedAt": link.DeactivatedAt})
	api.Success(w, link, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListShareLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.Service.ListShareLinks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, links, middleware.GetRequestID(r.Context()))
}

// referenceDate defaults to today (UTC) when raw is blank.
func referenceDate(w http.ResponseWriter, r *http.Request, raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	}
	v := shared.NewValidator()
	day := optionalDate(v, "referenceDate", raw)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return time.Time{}, false
	}
	return *day, true
}

func (h *Handler) handleRunExpiry(w http.ResponseWriter, r *http.Request) {
	var payload expiryRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		badPayload(w, r)
		return
	}
	ref, ok := referenceDate(w, r, payload.ReferenceDate)
	if !ok {
		return
	}
	initiator := currentUser(r).UserID

	var (
		result documents.ExpiryResult
		err    error
	)
	if h.Jobs != nil {
		result, err = h.Jobs.RunExpiryCheck(r.Context(), ref, initiator)
	} else {
		result, err = h.Service.RunExpiryCheck(r.Context(), ref, initiator)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListExpiring(w http.ResponseWriter, r *http.Request) {
	ref, ok := referenceDate(w, r, r.URL.Query().Get("referenceDate"))
	if !ok {
		return
	}
	docs, err := h.Service.ListExpiring(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := currentUser(r)
	if !canSeeAll(user) {
		own := make([]documents.ExpiringDocument, 0, len(docs))
		for _, d := range docs {
			if d.UserID == user.UserID {
				own = append(own, d)
			}
		}
		docs = own
	}
	api.Success(w, docs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListImports(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)
	list, err := h.Service.ListImportJobs(r.Context(), page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []documents.ImportJob{}
	}
	api.Success(w, list, middleware.GetRequestID(r.Context()))
}

// handleStageImport takes a multipart form with a manifest file, an optional archive file,
// and optional delimiter, encoding and matchStrategy fields.
func (h *Handler) handleStageImport(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	manifest, manifestName, _, err := readFormFile(r, "manifest")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if manifest == nil {
		api.Fail(w, http.StatusBadRequest, "validation_error", "manifest is required", middleware.GetRequestID(r.Context()))
		return
	}
	archive, archiveName, _, err := readFormFile(r, "archive")
	if err != nil {
		writeError(w, r, err)
		return
	}

	job, err := h.Service.StageImportJob(r.Context(), documents.StageImportInput{
		ManifestName: manifestName,
		ManifestData: manifest,
		ArchiveName:  archiveName,
		ArchiveData:  archive,
		Options: documents.ImportOptions{
			Delimiter:     r.FormValue("delimiter"),
			Encoding:      r.FormValue("encoding"),
			MatchStrategy: r.FormValue("matchStrategy"),
		},
		CreatedBy: currentUser(r).UserID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record(r, documents.ActionImportCreated, documents.EntityImportJob, job.ID, job)
	api.Created(w, job, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRegisterImport(w http.ResponseWriter, r *http.Request) {
	var payload registerImportRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		badPayload(w, r)
		return
	}
	job, err := h.Service.CreateImportJob(r.Context(), documents.CreateImportJobInput{
		ManifestBucket: payload.ManifestBucket,
		ManifestKey:    payload.ManifestKey,
		ArchiveBucket:  payload.ArchiveBucket,
		ArchiveKey:     payload.ArchiveKey,
		Options:        payload.Options,
		CreatedBy:      currentUser(r).UserID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record(r, documents.ActionImportCreated, documents.EntityImportJob, job.ID, job)
	api.Created(w, job, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetImport(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Service.GetImportJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, detail, middleware.GetRequestID(r.Context()))
}

// handleProcessImport runs the job inline, or on the job queue with async=true.
func (h *Handler) handleProcessImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dryRun"))
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	initiator := currentUser(r).UserID
	reqID := middleware.GetRequestID(r.Context())

	if async && h.Jobs != nil {
		detail, err := h.Service.GetImportJob(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if detail.Status == documents.JobStatusProcessing {
			api.Fail(w, http.StatusConflict, "invalid_state", "import job is already processing", reqID)
			return
		}
		if !h.Jobs.EnqueueImport(id, initiator, dryRun) {
			api.Fail(w, http.StatusServiceUnavailable, "queue_full", "job queue is full, retry later", reqID)
			return
		}
		h.record(r, documents.ActionImportProcessed, documents.EntityImportJob, id, map[string]any{"async": true, "dryRun": dryRun})
		api.Accepted(w, detail.ImportJob, reqID)
		return
	}

	job, err := h.Service.ProcessImportJob(r.Context(), id, initiator, dryRun)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record(r, documents.ActionImportProcessed, documents.EntityImportJob, id, map[string]any{
		"dryRun":       dryRun,
		"status":       job.Status,
		"successCount": job.SuccessCount,
		"failureCount": job.FailureCount,
	})
	api.Success(w, job, reqID)
}

func (h *Handler) handleListJobRuns(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		api.Success(w, []jobs.Run{}, middleware.GetRequestID(r.Context()))
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	runs, err := h.Jobs.ListRuns(r.Context(), r.URL.Query().Get("jobType"), page.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}
