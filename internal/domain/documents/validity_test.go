package documents

import (
	"encoding/json"
	"testing"
	"time"
)

func day(value string) *time.Time {
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		panic(err)
	}
	return &d
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func formatDay(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func TestResolveValidity(t *testing.T) {
	today := *day("2024-05-01")
	tests := []struct {
		name      string
		days      *int
		sources   []validityWindow
		wantFrom  string
		wantUntil string
	}{
		{
			name:      "explicit until only",
			sources:   []validityWindow{{Until: day("2025-01-01")}},
			wantUntil: "2025-01-01",
		},
		{
			name:      "derived from today",
			days:      intPtr(30),
			wantUntil: "2024-05-31",
		},
		{
			name:      "derived from start",
			days:      intPtr(30),
			sources:   []validityWindow{{From: day("2024-01-01")}},
			wantFrom:  "2024-01-01",
			wantUntil: "2024-01-31",
		},
		{
			name: "first source wins per bound",
			sources: []validityWindow{
				{From: day("2024-02-01")},
				{From: day("2023-01-01"), Until: day("2024-12-31")},
			},
			wantFrom:  "2024-02-01",
			wantUntil: "2024-12-31",
		},
		{
			name:     "zero days derives nothing",
			days:     intPtr(0),
			sources:  []validityWindow{{From: day("2024-01-01")}},
			wantFrom: "2024-01-01",
		},
		{
			name: "empty sources",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := resolveValidity(today, tc.days, tc.sources...)
			if formatDay(got.From) != tc.wantFrom || formatDay(got.Until) != tc.wantUntil {
				t.Fatalf("got (%s, %s), want (%s, %s)", formatDay(got.From), formatDay(got.Until), tc.wantFrom, tc.wantUntil)
			}
		})
	}
}

func TestMetadataWindow(t *testing.T) {
	w := metadataWindow(json.RawMessage(`{"valid_from":"2024-01-01","valid_until":"2024-12-31T10:00:00Z","other":1}`))
	if formatDay(w.From) != "2024-01-01" || formatDay(w.Until) != "2024-12-31" {
		t.Fatalf("unexpected window %s..%s", formatDay(w.From), formatDay(w.Until))
	}

	w = metadataWindow(json.RawMessage(`not json`))
	if w.From != nil || w.Until != nil {
		t.Fatal("expected empty window for invalid metadata")
	}
	w = metadataWindow(json.RawMessage(`{"valid_from":42,"valid_until":"garbage"}`))
	if w.From != nil || w.Until != nil {
		t.Fatal("expected unusable values to be ignored")
	}
}

func TestWithValidityMetadata(t *testing.T) {
	original := map[string]any{"valid_until": "2020-01-01", "source": "upload"}
	out := withValidityMetadata(original, nil, day("2026-06-30"))
	if out["valid_until"] != "2026-06-30" || out["source"] != "upload" {
		t.Fatalf("unexpected metadata %v", out)
	}
	if _, ok := out["valid_from"]; ok {
		t.Fatal("valid_from should not be set")
	}
	if original["valid_until"] != "2020-01-01" {
		t.Fatal("input map was mutated")
	}
}

func TestParseDate(t *testing.T) {
	got, err := parseDate(" 2024-03-05 ")
	if err != nil || formatDay(got) != "2024-03-05" {
		t.Fatalf("unexpected %v %v", got, err)
	}
	got, err = parseDate("")
	if err != nil || got != nil {
		t.Fatalf("expected nil for blank, got %v %v", got, err)
	}
	if _, err := parseDate("05/03/2024"); err == nil {
		t.Fatal("expected error for unsupported layout")
	}
}

func TestSanitizeNote(t *testing.T) {
	got := sanitizeNote(strPtr("<b>looks good</b>"))
	if got == nil || *got != "looks good" {
		t.Fatalf("unexpected note %v", got)
	}
	if sanitizeNote(strPtr("  <i></i> ")) != nil {
		t.Fatal("expected empty note to become nil")
	}
	if sanitizeNote(nil) != nil {
		t.Fatal("expected nil passthrough")
	}
}

func TestCheckWindowOrder(t *testing.T) {
	if err := checkWindowOrder(day("2024-02-01"), day("2024-01-01")); err == nil {
		t.Fatal("expected error when until precedes from")
	}
	if err := checkWindowOrder(day("2024-01-01"), day("2024-01-01")); err != nil {
		t.Fatalf("same day should be valid: %v", err)
	}
	if err := checkWindowOrder(nil, day("2024-01-01")); err != nil {
		t.Fatalf("open start should be valid: %v", err)
	}
}
