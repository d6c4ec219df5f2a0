package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		remote    string
		want      string
	}{
		{name: "forwarded", forwarded: "203.0.113.5, 10.0.0.1", remote: "10.0.0.2:80", want: "203.0.113.5"},
		{name: "remote", remote: "198.51.100.7:4321", want: "198.51.100.7"},
		{name: "bare remote", remote: "unix", want: "unix"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := ClientIP(req); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var payload struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"nda"}`))
	if err := DecodeJSON(req, &payload); err != nil || payload.Name != "nda" {
		t.Fatalf("decode: %v %+v", err, payload)
	}
	empty := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := DecodeJSON(empty, &payload); err != nil {
		t.Fatalf("empty body should decode: %v", err)
	}
	unknown := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
	if err := DecodeJSON(unknown, &payload); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&offset=20", nil)
	page := ParsePagination(req, 50, 200)
	if page.Limit != 200 || page.Offset != 20 {
		t.Fatalf("unexpected page %+v", page)
	}
	bad := httptest.NewRequest(http.MethodGet, "/?limit=-1&offset=x", nil)
	page = ParsePagination(bad, 50, 200)
	if page.Limit != 50 || page.Offset != 0 {
		t.Fatalf("unexpected defaults %+v", page)
	}
}

func TestValidatorDates(t *testing.T) {
	v := NewValidator()
	start, _ := v.Date("validFrom", "2025-02-01")
	end, _ := v.Date("validUntil", "2025-01-01")
	v.DateOrder("validFrom", start, "validUntil", end)
	v.Date("referenceDate", "01/02/2025")
	issues := v.Issues()
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %+v", issues)
	}
	if issues[0].Field != "referenceDate" {
		t.Fatalf("issues not sorted: %+v", issues)
	}
}
