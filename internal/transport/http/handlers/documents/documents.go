package documentshandler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrdocs/internal/domain/documents"
	"hrdocs/internal/transport/http/api"
	"hrdocs/internal/transport/http/middleware"
	"hrdocs/internal/transport/http/shared"
)

type getOrCreateRequest struct {
	UserID         string  `json:"userId"`
	DocumentTypeID string  `json:"documentTypeId"`
	RequirementID  *string `json:"requirementId"`
	Notes          *string `json:"notes"`
}

type decisionRequest struct {
	Note       *string `json:"note"`
	ValidFrom  string  `json:"validFrom"`
	ValidUntil string  `json:"validUntil"`
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	q := r.URL.Query()
	page := shared.ParsePagination(r, 50, 200)
	filter := documents.DocumentFilter{
		UserID:         q.Get("userId"),
		Status:         q.Get("status"),
		DocumentTypeID: q.Get("documentTypeId"),
		Limit:          page.Limit,
		Offset:         page.Offset,
	}
	if !canSeeAll(user) {
		filter.UserID = user.UserID
	}
	docs, err := h.Service.ListDocuments(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []documents.EmployeeDocument{}
	}
	api.Success(w, docs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetOrCreateDocument(w http.ResponseWriter, r *http.Request) {
	var payload getOrCreateRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		badPayload(w, r)
		return
	}
	user := currentUser(r)
	if payload.UserID == "" {
		payload.UserID = user.UserID
	}
	if payload.UserID != user.UserID && !canSeeAll(user) {
		forbidden(w, r)
		return
	}

	doc, created, err := h.Service.GetOrCreateDocument(r.Context(), payload.UserID, payload.DocumentTypeID, payload.RequirementID, payload.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if created {
		api.Created(w, doc, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, doc, middleware.GetRequestID(r.Context()))
}

// loadVisibleDocument fetches a document and enforces self-scope for callers that cannot see all.
func (h *Handler) loadVisibleDocument(w http.ResponseWriter, r *http.Request, id string) (documents.DocumentDetail, bool) {
	detail, err := h.Service.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return documents.DocumentDetail{}, false
	}
	user := currentUser(r)
	if detail.UserID != user.UserID && !canSeeAll(user) {
		forbidden(w, r)
		return documents.DocumentDetail{}, false
	}
	return detail, true
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.loadVisibleDocument(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	api.Success(w, detail, middleware.GetRequestID(r.Context()))
}

// handleUploadVersion takes a multipart form: file, and optional validFrom, validUntil and metadata (JSON object).
func (h *Handler) handleUploadVersion(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.loadVisibleDocument(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !parseMultipart(w, r) {
		return
	}
	data, name, contentType, err := readFormFile(r, "file")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if data == nil {
		api.Fail(w, http.StatusBadRequest, "validation_error", "file is required", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	validFrom := optionalDate(v, "validFrom", strings.TrimSpace(r.FormValue("validFrom")))
	validUntil := optionalDate(v, "validUntil", strings.TrimSpace(r.FormValue("validUntil")))
	var metadata map[string]any
	if raw := strings.TrimSpace(r.FormValue("metadata")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			v.Add("metadata", "must be a JSON object")
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	version, err := h.Service.UploadVersion(r.Context(), documents.UploadInput{
		DocumentID:  detail.ID,
		UploadedBy:  currentUser(r).UserID,
		FileName:    name,
		ContentType: contentType,
		Data:        data,
		Metadata:    metadata,
		ValidFrom:   validFrom,
		ValidUntil:  validUntil,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record(r, documents.ActionVersionUploaded, documents.EntityDocumentVersion, version.ID, version)
	api.Created(w, version, middleware.GetRequestID(r.Context()))
}

func parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	err := r.ParseMultipartForm(multipartMemory)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, r, err)
		return false
	}
	api.Fail(w, http.StatusBadRequest, "invalid_payload", "expected a multipart/form-data body", middleware.GetRequestID(r.Context()))
	return false
}

// readFormFile returns nil data when the part is absent.
func readFormFile(r *http.Request, field string) ([]byte, string, string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", "", nil
	}
	if err != nil {
		return nil, "", "", err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", "", err
	}
	return data, header.Filename, header.Header.Get("Content-Type"), nil
}

func (h *Handler) decisionInput(w http.ResponseWriter, r *http.Request) (documents.ApproveInput, bool) {
	var payload decisionRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		badPayload(w, r)
		return documents.ApproveInput{}, false
	}
	v := shared.NewValidator()
	in := documents.ApproveInput{
		VersionID:  chi.URLParam(r, "id"),
		Approver:   currentUser(r).UserID,
		Note:       payload.Note,
		ValidFrom:  optionalDate(v, "validFrom", strings.TrimSpace(payload.ValidFrom)),
		ValidUntil: optionalDate(v, "validUntil", strings.TrimSpace(payload.ValidUntil)),
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return documents.ApproveInput{}, false
	}
	return in, true
}

func (h *Handler) handleApproveVersion(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decisionInput(w, r)
	if !ok {
		return
	}
	version, err := h.Service.ApproveVersion(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record(r, documents.ActionVersionApproved, documents.EntityDocumentVersion, version.ID, version)
	api.Success(w, version, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRejectVersion(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decisionInput(w, r)
	if !ok {
		return
	}
	version, err := h.Service.RejectVersion(r.Context(), in.VersionID, in.Approver, in.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record(r, documents.ActionVersionRejected, documents.EntityDocumentVersion, version.ID, version)
	api.Success(w, version, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownloadVersion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !canSeeAll(currentUser(r)) {
		version, err := h.Service.GetVersion(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if _, ok := h.loadVisibleDocument(w, r, version.EmployeeDocumentID); !ok {
			return
		}
	}
	file, data, err := h.Service.DownloadVersion(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.OriginalName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleComplianceReport(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	user := currentUser(r)
	if userID != user.UserID && !canSeeAll(user) {
		forbidden(w, r)
		return
	}
	pdf, err := h.Service.ComplianceReport(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "compliance-" + userID + ".pdf"}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
