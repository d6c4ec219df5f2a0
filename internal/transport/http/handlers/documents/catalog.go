package documentshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrdocs/internal/domain/documents"
	"hrdocs/internal/transport/http/api"
	"hrdocs/internal/transport/http/middleware"
	"hrdocs/internal/transport/http/shared"
)

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("includeInactive") != "true"
	types, err := h.Service.ListTypes(r.Context(), activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if types == nil {
		types = []documents.DocumentType{}
	}
	api.Success(w, types, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	var payload documents.CreateTypeInput
	if err := shared.DecodeJSON(r, &payload); err != nil {
		badPayload(w, r)
		return
	}
	created, err := h.Service.CreateType(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record(r, documents.ActionTypeCreated, documents.EntityDocumentType, created.ID, created)
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetType(w http.ResponseWriter, r *http.Request) {
	dt, err := h.Service.GetType(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, dt, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateType(w http.ResponseWriter, r *http.Request) {
	var patch documents.DocumentTypePatch
	if err := shared.DecodeJSON(r, &patch); err != nil {
		badPayload(w, r)
		return
	}
	updated, err := h.Service.UpdateType(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record(r, documents.ActionTypeUpdated, documents.EntityDocumentType, updated.ID, patch)
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRequirements(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Service.ListRequirements(r.Context(), r.URL.Query().Get("documentTypeId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []documents.DocumentRequirement{}
	}
	api.Success(w, reqs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateRequirement(w http.ResponseWriter, r *http.Request) {
	var payload documents.CreateRequirementInput
	if err := shared.DecodeJSON(r, &payload); err != nil {
		badPayload(w, r)
		return
	}
	created, err := h.Service.CreateRequirement(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record(r, documents.ActionRequirementCreated, documents.EntityRequirement, created.ID, created)
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRequirement(w http.ResponseWriter, r *http.Request) {
	req, err := h.Service.GetRequirement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateRequirement(w http.ResponseWriter, r *http.Request) {
	var patch documents.RequirementPatch
	if err := shared.DecodeJSON(r, &patch); err != nil {
		badPayload(w, r)
		return
	}
	updated, err := h.Service.UpdateRequirement(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record(r, documents.ActionRequirementUpdated, documents.EntityRequirement, updated.ID, patch)
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSyncRequirement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.Service.SyncRequirement(r.Context(), id, currentUser(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record(r, documents.ActionRequirementSynced, documents.EntityRequirement, id, result)
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}
