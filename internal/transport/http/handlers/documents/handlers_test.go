package documentshandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"hrdocs/internal/domain/auth"
	"hrdocs/internal/domain/documents"
	"hrdocs/internal/transport/http/middleware"
)

func newTestRouter() http.Handler {
	svc := documents.NewService(documents.NewStore(nil), nil, nil, nil, nil, documents.Options{})
	h := NewHandler(svc, nil, nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func serve(t *testing.T, router http.Handler, method, path, body, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req = req.WithContext(middleware.WithUser(req.Context(), auth.UserContext{UserID: "00000000-0000-0000-0000-0000000000aa", RoleName: role}))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRoutePermissions(t *testing.T) {
	router := newTestRouter()
	tests := []struct {
		name   string
		method string
		path   string
		role   string
		status int
	}{
		{name: "anonymous read", method: http.MethodGet, path: "/hr-documents/types/x", status: http.StatusUnauthorized},
		{name: "employee creates type", method: http.MethodPost, path: "/hr-documents/types", role: auth.RoleEmployee, status: http.StatusForbidden},
		{name: "employee approves", method: http.MethodPost, path: "/hr-documents/versions/x/approve", role: auth.RoleEmployee, status: http.StatusForbidden},
		{name: "manager imports", method: http.MethodGet, path: "/hr-documents/imports", role: auth.RoleManager, status: http.StatusForbidden},
		{name: "employee runs expiry", method: http.MethodPost, path: "/hr-documents/expiry/run", role: auth.RoleEmployee, status: http.StatusForbidden},
		{name: "employee reads other report", method: http.MethodGet, path: "/hr-documents/employees/someone-else/report.pdf", role: auth.RoleEmployee, status: http.StatusForbidden},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, router, tc.method, tc.path, "", tc.role)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMalformedInputsRejectedBeforeStorage(t *testing.T) {
	router := newTestRouter()
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{name: "type id", method: http.MethodGet, path: "/hr-documents/types/not-a-uuid", status: http.StatusBadRequest, code: "validation_error"},
		{name: "document id", method: http.MethodGet, path: "/hr-documents/documents/not-a-uuid", status: http.StatusBadRequest, code: "validation_error"},
		{name: "bad status filter", method: http.MethodGet, path: "/hr-documents/documents?status=archived", status: http.StatusBadRequest, code: "validation_error"},
		{name: "approve bad date", method: http.MethodPost, path: "/hr-documents/versions/x/approve", body: `{"validUntil":"31/12/2030"}`, status: http.StatusBadRequest, code: "validation_error"},
		{name: "approve unknown field", method: http.MethodPost, path: "/hr-documents/versions/x/approve", body: `{"until":"2030-12-31"}`, status: http.StatusBadRequest, code: "invalid_payload"},
		{name: "expiry bad date", method: http.MethodPost, path: "/hr-documents/expiry/run", body: `{"referenceDate":"tomorrow"}`, status: http.StatusBadRequest, code: "validation_error"},
		{name: "create type invalid", method: http.MethodPost, path: "/hr-documents/types", body: `{"code":"","name":"x","category":"ONBOARDING","sequenceNo":1}`, status: http.StatusBadRequest, code: "validation_error"},
		{name: "share link missing document", method: http.MethodPost, path: "/hr-documents/share-links", body: `{"maxViews":0}`, status: http.StatusBadRequest, code: "validation_error"},
		{name: "stage import without multipart", method: http.MethodPost, path: "/hr-documents/imports", body: `{}`, status: http.StatusBadRequest, code: "invalid_payload"},
		{name: "register import missing key", method: http.MethodPost, path: "/hr-documents/imports/register", body: `{"manifestBucket":"b"}`, status: http.StatusBadRequest, code: "validation_error"},
		{name: "process bad id", method: http.MethodPost, path: "/hr-documents/imports/nope/process", status: http.StatusBadRequest, code: "validation_error"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, router, tc.method, tc.path, tc.body, auth.RoleSystemAdmin)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, body.Error.Code)
			}
		})
	}
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{err: fmt.Errorf("%w: bad", documents.ErrValidation), status: http.StatusBadRequest},
		{err: fmt.Errorf("%w: gone", documents.ErrNotFound), status: http.StatusNotFound},
		{err: fmt.Errorf("%w: decided", documents.ErrInvalidState), status: http.StatusConflict},
		{err: fmt.Errorf("%w: s3 down", documents.ErrExternalIO), status: http.StatusBadGateway},
		{err: fmt.Errorf("%w: lost row", documents.ErrInvariantViolation), status: http.StatusInternalServerError},
		{err: &http.MaxBytesError{Limit: 10}, status: http.StatusRequestEntityTooLarge},
		{err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("secret detail"))
	if strings.Contains(rec.Body.String(), "secret detail") {
		t.Fatal("internal errors must not leak their message")
	}
}
